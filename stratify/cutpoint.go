package stratify

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/carbocation/sigvival"
)

// Policy is a rule for cutting a continuous score into groups.
type Policy int

const (
	Median Policy = iota
	Tertile
	TertileExtremes
	Quartile
	Quartiles
	Percentile
)

var policyNames = map[Policy]string{
	Median:          "median",
	Tertile:         "tertile",
	TertileExtremes: "tertile-extremes",
	Quartile:        "quartile",
	Quartiles:       "quartiles",
	Percentile:      "percentile",
}

// CutPoint selects a policy; Percentile is only consulted for the Percentile
// policy and must lie strictly between 0 and 100.
type CutPoint struct {
	Policy     Policy
	Percentile float64
}

func (c CutPoint) Validate() error {
	if _, known := policyNames[c.Policy]; !known {
		return fmt.Errorf("unknown cut-point policy %d: %w", int(c.Policy), sigvival.ErrInvalidRequest)
	}

	if c.Policy == Percentile && !(c.Percentile > 0 && c.Percentile < 100) {
		return fmt.Errorf("percentile must be between 0 and 100 exclusive, got %v: %w", c.Percentile, sigvival.ErrInvalidRequest)
	}

	return nil
}

func (c CutPoint) String() string {
	if c.Policy == Percentile {
		return fmt.Sprintf("percentile(%s)", strconv.FormatFloat(c.Percentile, 'g', -1, 64))
	}

	if name, known := policyNames[c.Policy]; known {
		return name
	}

	return fmt.Sprintf("Policy(%d)", int(c.Policy))
}

func (c CutPoint) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *CutPoint) UnmarshalText(text []byte) error {
	parsed, err := ParseCutPoint(string(text))
	if err != nil {
		return err
	}
	*c = parsed

	return nil
}

// Extremes reports whether the middle groups are dropped.
func (c CutPoint) Extremes() bool {
	return c.Policy == Quartile || c.Policy == TertileExtremes
}

var percentilePattern = regexp.MustCompile(`^(?:percentile|pct|p)\s*[(:=]?\s*([0-9]*\.?[0-9]+)\s*\)?$`)

// ParseCutPoint accepts the policy names ("median", "tertile",
// "tertile-extremes", "quartile", "quartiles", "percentile(75)"), a bare
// percentile such as "p75", and the labels of the original form ("Quartile -
// Top & Bottom only" and so on).
func ParseCutPoint(s string) (CutPoint, error) {
	norm := strings.ToLower(strings.TrimSpace(s))

	switch norm {
	case "median":
		return CutPoint{Policy: Median}, nil
	case "tertile", "tertiles":
		return CutPoint{Policy: Tertile}, nil
	case "tertile-extremes", "tertile - top & bottom only":
		return CutPoint{Policy: TertileExtremes}, nil
	case "quartile", "quartile-extremes", "quartile - top & bottom only":
		return CutPoint{Policy: Quartile}, nil
	case "quartiles", "all-quartiles":
		return CutPoint{Policy: Quartiles}, nil
	}

	if m := percentilePattern.FindStringSubmatch(norm); m != nil {
		p, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return CutPoint{}, fmt.Errorf("%q: %v: %w", s, err, sigvival.ErrInvalidRequest)
		}
		c := CutPoint{Policy: Percentile, Percentile: p}
		if err := c.Validate(); err != nil {
			return CutPoint{}, err
		}
		return c, nil
	}

	return CutPoint{}, fmt.Errorf("unknown cut-point %q: %w", s, sigvival.ErrInvalidRequest)
}

// probabilities are the quantiles at which scores are cut.
func (c CutPoint) probabilities() []float64 {
	switch c.Policy {
	case Median:
		return []float64{0.5}
	case Tertile, TertileExtremes:
		return []float64{1.0 / 3, 2.0 / 3}
	case Quartile, Quartiles:
		return []float64{0.25, 0.5, 0.75}
	case Percentile:
		return []float64{c.Percentile / 100}
	}

	return nil
}

func (c CutPoint) labels() []string {
	switch c.Policy {
	case Median:
		return []string{"Low: below median", "High: above median"}
	case Tertile, TertileExtremes:
		return []string{"Low: bottom tertile", "Medium: middle tertile", "High: top tertile"}
	case Quartile, Quartiles:
		return []string{"Low: bottom quartile", "Medium1: second quartile", "Medium2: third quartile", "High: top quartile"}
	case Percentile:
		p := strconv.FormatFloat(c.Percentile, 'g', -1, 64)
		return []string{"Low: <= P" + p, "High: > P" + p}
	}

	return nil
}

// Quantile returns the p-th quantile (0 <= p <= 1) of sorted by linear
// interpolation between the closest order statistics, which is the numpy and
// pandas default (type 7 in R).
func Quantile(p float64, sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}

	h := p * float64(n-1)
	lo := math.Floor(h)
	i := int(lo)
	if i >= n-1 {
		return sorted[n-1]
	}
	if i < 0 {
		return sorted[0]
	}

	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}
