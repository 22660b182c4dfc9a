// Package signature parses and normalizes gene signatures: a name plus a
// deduplicated list of gene identifiers.
package signature

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/carbocation/sigvival"
)

type Signature struct {
	Name  string
	Genes []string
}

// New trims and deduplicates genes, preserving the order of first occurrence.
// An empty result is an ErrInvalidSignature.
func New(name string, genes []string) (Signature, error) {
	out := Signature{Name: strings.TrimSpace(name), Genes: make([]string, 0, len(genes))}

	seen := make(map[string]struct{}, len(genes))
	for _, g := range genes {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if _, exists := seen[g]; exists {
			continue
		}
		seen[g] = struct{}{}
		out.Genes = append(out.Genes, g)
	}

	if len(out.Genes) == 0 {
		return out, fmt.Errorf("signature %q has no genes: %w", out.Name, sigvival.ErrInvalidSignature)
	}

	return out, nil
}

// ParseList splits free text on commas, semicolons, and whitespace.
func ParseList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
}

// Resolve splits the signature's genes into those for which present returns
// true and those for which it does not, preserving order.
func (s Signature) Resolve(present func(gene string) bool) (found, missing []string) {
	found = make([]string, 0, len(s.Genes))
	missing = make([]string, 0)
	for _, g := range s.Genes {
		if present(g) {
			found = append(found, g)
		} else {
			missing = append(missing, g)
		}
	}

	return
}

func (s Signature) String() string {
	return fmt.Sprintf("%s (%d genes)", s.Name, len(s.Genes))
}
