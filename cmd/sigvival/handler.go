package main

import (
	"embed"
	"fmt"
	"html/template"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

const (
	BaseFilename = "_base.html"
)

//go:embed all:templates
var embeddedTemplates embed.FS

// handler provides global values that must be
// safe for concurrent use from multiple goroutines
// to each handler method.
type handler struct {
	*Global

	router *mux.Router

	// Cached values / do not use directly.
	assetsOnce sync.Once
	assets     string

	// Mutex protected values
	mu       sync.RWMutex
	template map[string]*template.Template
}

func (h *handler) Assets() string {
	h.assetsOnce.Do(func() {
		h.Global.log.Println("Initializing Assets")
		h.assets = fmt.Sprintf("/%s", RandHeteroglyphs(10))
	})

	return h.assets
}

var templateFuncs = template.FuncMap{
	"add":       func(a, b int) int { return a + b },
	"cleanDate": func(d time.Time) string { return d.Format("January 02, 2006") },
	"year":      func(d time.Time) string { return d.Format("2006") },
	"join":      strings.Join,
	"lines":     func(s string) []string { return strings.Split(s, "\n") },
	"fmt4": func(v interface{}) string {
		return fmt.Sprintf("%.4g", v)
	},
	"noescape": func(s string) template.HTML {
		return template.HTML(s)
	},
	"dataURI": func(s string) template.URL {
		return template.URL(s)
	},
}

func (h *handler) Template(templateFilename string) (*template.Template, error) {
	// Prevent execution of the BaseFilename template, which would prevent future copies
	templateName := templateFilename
	if templateFilename == BaseFilename {
		templateName = fmt.Sprintf("CLONE%s", BaseFilename)
	}

	h.mu.RLock()
	tpl, ok := h.template[templateName]
	h.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.template == nil {
		h.Global.log.Println("Initializing HTML templates")

		base, err := template.New(BaseFilename).Funcs(templateFuncs).ParseFS(embeddedTemplates, "templates/_*.html")
		if err != nil {
			return nil, fmt.Errorf(`handler.go:Template: %s`, err)
		}

		h.template = map[string]*template.Template{BaseFilename: base}
	}

	if tpl, ok := h.template[templateName]; ok {
		return tpl, nil
	}

	// Generate a clone of the base template so you don't contaminate it with the
	// derivative template's `define` statements.
	h.Global.log.Println("Initializing HTML template for", templateFilename)
	clone, err := h.template[BaseFilename].Clone()
	if err != nil {
		return nil, fmt.Errorf(`handler.go:Template: %s`, err)
	}

	if templateFilename != BaseFilename {
		if clone, err = clone.ParseFS(embeddedTemplates, "templates/"+templateFilename); err != nil {
			return nil, fmt.Errorf(`handler.go:Template: %s`, err)
		}
	}
	h.template[templateName] = clone

	return clone, nil
}
