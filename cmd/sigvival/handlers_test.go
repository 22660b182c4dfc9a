package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/carbocation/sigvival"
	"github.com/carbocation/sigvival/dataset"
	"github.com/carbocation/sigvival/pipeline"
	"github.com/carbocation/sigvival/survival"
)

type fakeCatalog struct {
	matrix  *dataset.Matrix
	records map[string]survival.Record
	reloads int
}

func (f *fakeCatalog) Expression(ctx context.Context, cancerTypes []string) (*dataset.Matrix, error) {
	for _, ct := range cancerTypes {
		if ct != "BRCA" {
			return nil, fmt.Errorf("%s: %w", ct, sigvival.ErrDatasetUnavailable)
		}
	}
	return f.matrix, nil
}

func (f *fakeCatalog) SurvivalRecords(ctx context.Context) (map[string]survival.Record, error) {
	return f.records, nil
}

func (f *fakeCatalog) GeneNames(ctx context.Context) ([]string, error) {
	return f.matrix.GeneNames(), nil
}

func (f *fakeCatalog) CancerTypes(ctx context.Context) ([]string, error) {
	return []string{"BRCA"}, nil
}

func (f *fakeCatalog) Reload() { f.reloads++ }

// newTestServer serves 8 BRCA samples whose signature scores rise with the
// sample number.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	genes := []string{"SIG1", "SIG2", "G2", "G3", "G4", "G5", "G6", "G7", "G8", "G9"}
	samples := make([]string, 8)
	columns := make([][]float64, 8)
	records := make(map[string]survival.Record)
	for j := range samples {
		samples[j] = fmt.Sprintf("S%d", j)
		col := make([]float64, len(genes))
		col[0] = 1.5*float64(j) + 1
		col[1] = 1.5*float64(j) + 1
		for i := 2; i < len(genes); i++ {
			col[i] = 1.5*float64(i) - 0.75
		}
		columns[j] = col
		records[samples[j]] = survival.Record{Sample: samples[j], Time: float64(400 - 40*j), Event: j%3 != 0}
	}

	m, err := dataset.NewMatrix(genes, samples, columns)
	if err != nil {
		t.Fatal(err)
	}

	catalog := &fakeCatalog{matrix: m, records: records}
	cfg := pipeline.DefaultConfig()
	cfg.Scoring.Threads = 2

	g := &Global{
		log:          log.New(io.Discard, "", 0),
		Site:         "SIGvival",
		PreviewWidth: 200,
		Examples:     exampleSignatures(),
		CutPoints:    cutPointChoices,
		store:        catalog,
		runner:       pipeline.NewRunner(catalog, cfg),
	}

	routing, err := router(g)
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(routing)
	t.Cleanup(srv.Close)

	return srv
}

const testRequest = `{"signature_name":"Sig","genes":["SIG1","SIG2"],"cancer_types":["BRCA"],"cut_point":"median"}`

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func TestIndex(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	body := readBody(t, resp)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	for _, want := range []string{`<option value="BRCA">`, "Tertile - Top &amp; Bottom only", "Hypoxia (Buffa)"} {
		if !bytes.Contains(body, []byte(want)) {
			t.Errorf("index page lacks %q", want)
		}
	}
}

func TestAPIAnalyze(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/analyze?plot=true", "application/json", strings.NewReader(testRequest))
	if err != nil {
		t.Fatal(err)
	}
	body := readBody(t, resp)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}

	var report struct {
		Signature     string `json:"signature"`
		SamplesScored int    `json:"samples_scored"`
		Plot          string `json:"plot"`
		Groups        []struct {
			Label string `json:"label"`
			N     int    `json:"n"`
		} `json:"groups"`
		Scores []json.RawMessage `json:"scores"`
	}
	if err := json.Unmarshal(body, &report); err != nil {
		t.Fatal(err)
	}

	if report.Signature != "Sig" || report.SamplesScored != 8 || len(report.Scores) != 8 {
		t.Errorf("unexpected report %+v", report)
	}
	if len(report.Groups) != 2 || report.Groups[0].N != 4 || report.Groups[1].N != 4 {
		t.Errorf("expected two groups of 4, got %+v", report.Groups)
	}
	if !strings.HasPrefix(report.Plot, "data:image/png;base64,") {
		t.Errorf("expected a PNG data URI, got %.40q", report.Plot)
	}
}

func TestAPIAnalyzeErrors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed", `{"genes":`, http.StatusBadRequest},
		{"unknown field", `{"signature":"x"}`, http.StatusBadRequest},
		{"no genes", `{"signature_name":"Sig","cancer_types":["BRCA"],"cut_point":"median"}`, http.StatusBadRequest},
		{"unknown genes", `{"signature_name":"Sig","genes":["NOPE"],"cancer_types":["BRCA"],"cut_point":"median"}`, http.StatusBadRequest},
		{"unavailable", `{"signature_name":"Sig","genes":["SIG1"],"cancer_types":["LUAD"],"cut_point":"median"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/analyze", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			body := readBody(t, resp)

			if resp.StatusCode != tt.code {
				t.Errorf("expected %d, got %d: %s", tt.code, resp.StatusCode, body)
			}

			var out struct {
				Success bool
				Message string
			}
			if err := json.Unmarshal(body, &out); err != nil {
				t.Fatal(err)
			}
			if out.Success || out.Message == "" {
				t.Errorf("expected an error message, got %+v", out)
			}
		})
	}
}

func TestAnalyzeForm(t *testing.T) {
	srv := newTestServer(t)

	form := url.Values{
		"signature_name": {"Sig"},
		"genes":          {"SIG1, SIG2 MISSING"},
		"cancer_types":   {"BRCA"},
		"cut_point":      {"median"},
	}
	resp, err := http.PostForm(srv.URL+"/", form)
	if err != nil {
		t.Fatal(err)
	}
	body := readBody(t, resp)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	for _, want := range []string{"data:image/png;base64,", `name="request"`, "MISSING", "Log-rank P"} {
		if !bytes.Contains(body, []byte(want)) {
			t.Errorf("results page lacks %q", want)
		}
	}
}

func TestAnalyzeFormError(t *testing.T) {
	srv := newTestServer(t)

	form := url.Values{
		"signature_name": {"Sig"},
		"genes":          {"SIG1"},
		"cancer_types":   {"BRCA"},
		"cut_point":      {"percentile"},
		"percentile":     {"150"},
	}
	resp, err := http.PostForm(srv.URL+"/", form)
	if err != nil {
		t.Fatal(err)
	}
	body := readBody(t, resp)

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
	if !bytes.Contains(body, []byte("Return to the form")) {
		t.Errorf("error page lacks the user-error hint: %s", body)
	}
}

func TestDownload(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.PostForm(srv.URL+"/download", url.Values{"request": {testRequest}})
	if err != nil {
		t.Fatal(err)
	}
	body := readBody(t, resp)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/zip" {
		t.Errorf("unexpected content type %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "sigvival_") || !strings.HasSuffix(cd, `.zip"`) {
		t.Errorf("unexpected content disposition %q", cd)
	}

	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		t.Fatal(err)
	}
	if len(zr.File) != 5 {
		t.Errorf("expected 5 archive entries, got %d", len(zr.File))
	}
}

func TestCatalogEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for path, want := range map[string]string{
		"/api/genes":       "SIG1",
		"/api/cancertypes": "BRCA",
		"/version":         "go_version",
		"/goroutines":      "goroutines",
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		body := readBody(t, resp)
		if resp.StatusCode != http.StatusOK || !bytes.Contains(body, []byte(want)) {
			t.Errorf("%s: status %d, body %s", path, resp.StatusCode, body)
		}
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("x: %w", sigvival.ErrInvalidRequest), http.StatusBadRequest},
		{fmt.Errorf("x: %w", sigvival.ErrInvalidSignature), http.StatusBadRequest},
		{fmt.Errorf("x: %w", sigvival.ErrInsufficientSamples), http.StatusBadRequest},
		{fmt.Errorf("x: %w", sigvival.ErrDatasetUnavailable), http.StatusNotFound},
		{context.Canceled, 499},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := StatusCode(tt.err); got != tt.code {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.code, got)
		}
	}
}

func TestTemplatesEmbedded(t *testing.T) {
	for _, name := range []string{"templates/" + BaseFilename, "templates/index.html", "templates/error.html", "templates/static/style.css"} {
		if _, err := fs.Stat(embeddedTemplates, name); err != nil {
			t.Errorf("%s is not embedded: %v", name, err)
		}
	}

	h := &handler{Global: &Global{log: log.New(io.Discard, "", 0)}}
	for _, name := range []string{BaseFilename, "index.html", "results.html", "error.html"} {
		if _, err := h.Template(name); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}
