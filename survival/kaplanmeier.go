package survival

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Point is one step of a Kaplan-Meier curve. Survival holds S(t) just after
// Time.
type Point struct {
	Time     float64
	AtRisk   int
	Events   int
	Censored int
	Survival float64
	StdErr   float64
	Lower    float64
	Upper    float64
}

// Curve is the Kaplan-Meier estimate for one group.
type Curve struct {
	Label  string
	N      int
	Events int

	// Points holds one entry per distinct observed time (event or censoring).
	Points []Point

	// CensorTimes lists the times of censored observations, with repeats, for
	// drawing tick marks.
	CensorTimes []float64

	// Median is the first time at which S(t) <= 0.5, or NaN if the curve never
	// drops that far.
	Median float64
}

// ConfidenceLevel of the pointwise intervals on every curve
const ConfidenceLevel = 0.95

// KaplanMeier fits the product-limit estimator. At each distinct event time the
// survival probability is multiplied by (1 - d/n), where d is the number of
// events at that time and n the number still at risk. Censored samples leave
// the risk set after their time without contributing an event. Standard errors
// use Greenwood's formula and intervals use the log(-log) transform.
func KaplanMeier(label string, recs []Record) Curve {
	sorted := byTime(recs)

	out := Curve{
		Label:       label,
		N:           len(sorted),
		Points:      make([]Point, 0),
		CensorTimes: make([]float64, 0),
		Median:      math.NaN(),
	}

	z := distuv.UnitNormal.Quantile(1 - (1-ConfidenceLevel)/2)

	surv := 1.0
	greenwood := 0.0
	n := len(sorted)

	for i := 0; i < len(sorted); {
		t := sorted[i].Time

		d, c := 0, 0
		for ; i < len(sorted) && sorted[i].Time == t; i++ {
			if sorted[i].Event {
				d++
			} else {
				c++
				out.CensorTimes = append(out.CensorTimes, t)
			}
		}

		if d > 0 {
			surv *= 1 - float64(d)/float64(n)
			if n > d {
				greenwood += float64(d) / (float64(n) * float64(n-d))
			} else {
				greenwood = math.Inf(1)
			}
		}

		p := Point{
			Time:     t,
			AtRisk:   n,
			Events:   d,
			Censored: c,
			Survival: surv,
		}
		p.StdErr, p.Lower, p.Upper = greenwoodInterval(surv, greenwood, z)

		out.Points = append(out.Points, p)
		out.Events += d

		if math.IsNaN(out.Median) && surv <= 0.5 {
			out.Median = t
		}

		n -= d + c
	}

	return out
}

func greenwoodInterval(surv, greenwood, z float64) (se, lower, upper float64) {
	if surv <= 0 || math.IsInf(greenwood, 1) {
		return 0, 0, 0
	}
	if surv >= 1 || greenwood == 0 {
		return 0, surv, surv
	}

	se = surv * math.Sqrt(greenwood)

	logS := math.Log(surv)
	v := math.Sqrt(greenwood / (logS * logS))
	lower = math.Pow(surv, math.Exp(z*v))
	upper = math.Pow(surv, math.Exp(-z*v))

	return se, lower, upper
}

// At returns S(t) for the curve's step function.
func (c Curve) At(t float64) float64 {
	s := 1.0
	for _, p := range c.Points {
		if p.Time > t {
			break
		}
		s = p.Survival
	}

	return s
}

// MaxTime is the last observed time on the curve, or 0 for an empty curve.
func (c Curve) MaxTime() float64 {
	if len(c.Points) == 0 {
		return 0
	}

	return c.Points[len(c.Points)-1].Time
}
