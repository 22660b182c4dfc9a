package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/carbocation/sigvival"
)

// StatusCode maps an error to the HTTP status reported to the user.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, sigvival.ErrInvalidRequest),
		errors.Is(err, sigvival.ErrInvalidSignature),
		errors.Is(err, sigvival.ErrInsufficientSamples):
		return http.StatusBadRequest
	case errors.Is(err, sigvival.ErrDatasetUnavailable):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// The client went away; nobody will read this
		return 499
	}

	return http.StatusInternalServerError
}

func JSONError(h *handler, w http.ResponseWriter, r *http.Request, err error, code ...int) {
	if len(code) == 0 {
		code = []int{StatusCode(err)}
	}

	w.Header().Set("Content-Type", "application/json")
	unifiedError(h, w, r, err, code...)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(struct {
		Success   bool
		Message   string
		UserError bool
	}{
		false,
		err.Error(),
		sigvival.IsUserError(err),
	})
}

func HTTPError(h *handler, w http.ResponseWriter, r *http.Request, err error, code ...int) {
	if len(code) == 0 {
		code = []int{StatusCode(err)}
	}

	output := struct {
		StatusCode     int
		StatusCodeText string
		Error          string
		UserError      bool
	}{
		StatusCode:     code[0],
		StatusCodeText: http.StatusText(code[0]),
		Error:          err.Error(),
		UserError:      sigvival.IsUserError(err),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	unifiedError(h, w, r, err, code...)

	/*
		Built from the Render() function, but not calling Render()
		to avoid possibility of infinite loop
	*/
	page := Page{
		Title:     "Error",
		Site:      h.Global.Site,
		Company:   h.Global.Company,
		Email:     h.Global.Email,
		SnailMail: h.Global.SnailMail,
		Assets:    h.Assets(),
		Data:      output,
	}

	tpl, tplErr := h.Template("error.html")
	if tplErr == nil {
		tplErr = tpl.Execute(w, page)
	}
	if tplErr != nil {
		fmt.Fprintf(w, "Error (%d) (%v) with %+v", output.StatusCode, tplErr, page)
	}
}

func unifiedError(h *handler, w http.ResponseWriter, r *http.Request, err error, code ...int) {
	usedCode := http.StatusInternalServerError
	if len(code) > 0 {
		usedCode = code[0]
	}
	w.WriteHeader(usedCode)
	h.log.Println(r.Host, r.URL.Path, ":", usedCode, err)
}
