package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/carbocation/sigvival"
	"github.com/carbocation/sigvival/pipeline"
	"github.com/carbocation/sigvival/signature"
	"github.com/carbocation/sigvival/stratify"
)

// maxUploadBytes bounds a signature file upload
const maxUploadBytes = 8 << 20

// requestFromForm builds a pipeline request from the analysis form. A hidden
// "request" field holding a JSON request, as echoed by the results page, takes
// precedence over the individual fields.
func requestFromForm(r *http.Request) (pipeline.Request, error) {
	var req pipeline.Request

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return req, fmt.Errorf("could not read the form: %v: %w", err, sigvival.ErrInvalidRequest)
	}

	if raw := r.PostFormValue("request"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			return req, fmt.Errorf("could not read the request: %v: %w", err, sigvival.ErrInvalidRequest)
		}
		return req, nil
	}

	req.SignatureName = strings.TrimSpace(r.PostFormValue("signature_name"))
	req.Genes = signature.ParseList(r.PostFormValue("genes"))

	if file, header, err := r.FormFile("signature_file"); err == nil {
		defer file.Close()

		uploaded, err := signature.Read(file, header.Filename, req.SignatureName)
		if err != nil {
			return req, err
		}
		req.Genes = append(req.Genes, uploaded.Genes...)
		if req.SignatureName == "" {
			req.SignatureName = uploaded.Name
		}
	} else if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		return req, fmt.Errorf("could not read the uploaded file: %v: %w", err, sigvival.ErrInvalidRequest)
	}

	for _, v := range r.PostForm["cancer_types"] {
		req.CancerTypes = append(req.CancerTypes, signature.ParseList(v)...)
	}

	cut := r.PostFormValue("cut_point")
	switch cut {
	case "":
		cut = stratify.CutPoint{Policy: stratify.Median}.String()
	case "percentile":
		cut = fmt.Sprintf("percentile(%s)", strings.TrimSpace(r.PostFormValue("percentile")))
	}
	cutPoint, err := stratify.ParseCutPoint(cut)
	if err != nil {
		return req, err
	}
	req.CutPoint = cutPoint

	return req, nil
}
