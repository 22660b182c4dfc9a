package pipeline

import (
	"fmt"
	"strings"

	"github.com/carbocation/sigvival"
	"github.com/carbocation/sigvival/signature"
	"github.com/carbocation/sigvival/stratify"
)

// Request is one user submission.
type Request struct {
	SignatureName string            `json:"signature_name"`
	Genes         []string          `json:"genes"`
	CancerTypes   []string          `json:"cancer_types"`
	CutPoint      stratify.CutPoint `json:"cut_point"`
}

// Validate checks the request without touching any data. Failures wrap
// ErrInvalidRequest.
func (r Request) Validate() error {
	problems := make([]string, 0)

	if strings.TrimSpace(r.SignatureName) == "" {
		problems = append(problems, "a signature name is required")
	}

	genes := 0
	for _, g := range r.Genes {
		if strings.TrimSpace(g) != "" {
			genes++
		}
	}
	if genes == 0 {
		problems = append(problems, "at least one gene is required")
	}

	types := 0
	for _, ct := range r.CancerTypes {
		if strings.TrimSpace(ct) != "" {
			types++
		}
	}
	if types == 0 {
		problems = append(problems, "at least one cancer type is required")
	}

	if err := r.CutPoint.Validate(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s: %w", strings.Join(problems, "; "), sigvival.ErrInvalidRequest)
	}

	return nil
}

// Signature builds the gene signature named by the request.
func (r Request) Signature() (signature.Signature, error) {
	return signature.New(r.SignatureName, r.Genes)
}

// cancerTypes returns the trimmed, deduplicated cancer types in order.
func (r Request) cancerTypes() []string {
	out := make([]string, 0, len(r.CancerTypes))
	seen := make(map[string]struct{})
	for _, ct := range r.CancerTypes {
		ct = strings.TrimSpace(ct)
		if ct == "" {
			continue
		}
		if _, dupe := seen[ct]; dupe {
			continue
		}
		seen[ct] = struct{}{}
		out = append(out, ct)
	}

	return out
}
