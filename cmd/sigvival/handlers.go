package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/carbocation/sigvival/compileinfo"
	"github.com/carbocation/sigvival/export"
	"github.com/carbocation/sigvival/kmplot"
	"github.com/carbocation/sigvival/pipeline"
	"github.com/carbocation/sigvival/signature"
)

type formPage struct {
	CancerTypes []string
	CutPoints   []CutPointChoice
	Examples    []signature.Signature
	Message     string
}

func (h *handler) Index(w http.ResponseWriter, r *http.Request) {
	types, err := h.store.CancerTypes(r.Context())
	if err != nil {
		HTTPError(h, w, r, err)
		return
	}

	output := formPage{
		CancerTypes: types,
		CutPoints:   h.Global.CutPoints,
		Examples:    h.Global.Examples,
	}

	Render(h, w, r, h.Global.Site, "index.html", output, nil)
}

type resultsPage struct {
	Report      pipeline.Report
	Footer      string
	Preview     string
	RequestJSON string
	CancerTypes string
}

// Analyze runs the pipeline on the submitted form and shows the results.
func (h *handler) Analyze(w http.ResponseWriter, r *http.Request) {
	req, err := requestFromForm(r)
	if err != nil {
		HTTPError(h, w, r, err)
		return
	}

	started := time.Now()
	res, err := h.runner.Run(r.Context(), req)
	if err != nil {
		HTTPError(h, w, r, err)
		return
	}
	h.Global.log.Printf("Analyzed %s over %s in %s\n", res.Signature.Name, strings.Join(req.CancerTypes, ","), time.Since(started))

	img, err := res.Plot(kmplot.DefaultOptions())
	if err != nil {
		HTTPError(h, w, r, err)
		return
	}

	preview, err := kmplot.DataURI(kmplot.Preview(img, h.Global.PreviewWidth))
	if err != nil {
		HTTPError(h, w, r, err)
		return
	}

	reqJSON, err := json.Marshal(req)
	if err != nil {
		HTTPError(h, w, r, err)
		return
	}

	output := resultsPage{
		Report:      res.Report(),
		Footer:      kmplot.Footer(res.Comparison),
		Preview:     preview,
		RequestJSON: string(reqJSON),
		CancerTypes: strings.Join(req.CancerTypes, ", "),
	}

	Render(h, w, r, res.Signature.Name, "results.html", output, nil)
}

// Download re-runs the analysis, which is deterministic, and streams the
// archive.
func (h *handler) Download(w http.ResponseWriter, r *http.Request) {
	req, err := requestFromForm(r)
	if err != nil {
		HTTPError(h, w, r, err)
		return
	}

	res, err := h.runner.Run(r.Context(), req)
	if err != nil {
		HTTPError(h, w, r, err)
		return
	}

	now := time.Now()
	var buf bytes.Buffer
	if err := res.WriteArchive(&buf, now); err != nil {
		HTTPError(h, w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(now)))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	w.Write(buf.Bytes())
}

func (h *handler) APIGenes(w http.ResponseWriter, r *http.Request) {
	genes, err := h.store.GeneNames(r.Context())
	if err != nil {
		JSONError(h, w, r, err)
		return
	}

	Render(h, w, r, "", "", genes, &renderOpts{OutputFormat: JSON})
}

func (h *handler) APICancerTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.store.CancerTypes(r.Context())
	if err != nil {
		JSONError(h, w, r, err)
		return
	}

	Render(h, w, r, "", "", types, &renderOpts{OutputFormat: JSON})
}

type apiReport struct {
	pipeline.Report
	Plot string `json:"plot,omitempty"`
}

// APIAnalyze accepts a JSON request and returns the full report. With
// ?plot=true the report also carries the preview image as a data URI.
func (h *handler) APIAnalyze(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		JSONError(h, w, r, fmt.Errorf("could not decode the request: %v", err), http.StatusBadRequest)
		return
	}

	res, err := h.runner.Run(r.Context(), req)
	if err != nil {
		JSONError(h, w, r, err)
		return
	}

	output := apiReport{Report: res.Report()}
	if r.URL.Query().Get("plot") == "true" {
		img, err := res.Plot(kmplot.DefaultOptions())
		if err != nil {
			JSONError(h, w, r, err)
			return
		}
		if output.Plot, err = kmplot.DataURI(kmplot.Preview(img, h.Global.PreviewWidth)); err != nil {
			JSONError(h, w, r, err)
			return
		}
	}

	Render(h, w, r, "", "", output, &renderOpts{OutputFormat: JSON})
}

func (h *handler) Version(w http.ResponseWriter, r *http.Request) {
	Render(h, w, r, "", "", compileinfo.Get(), &renderOpts{OutputFormat: JSON})
}

func (h *handler) Goroutines(w http.ResponseWriter, r *http.Request) {
	goroutines := fmt.Sprintf("%d goroutines are currently active\n", runtime.NumGoroutine())

	w.Write([]byte(goroutines))
}
