package survival

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// ErrDegenerateCox is returned when the partial likelihood carries no
// information about the covariate, e.g., because it is constant or because no
// events were observed.
var ErrDegenerateCox = errors.New("cox model has no information about the covariate")

// ErrCoxNotConverged is returned when Newton-Raphson does not settle, which
// happens when the groups are completely separated and the estimate diverges.
var ErrCoxNotConverged = errors.New("cox model did not converge")

const (
	coxMaxIterations = 50
	coxTolerance     = 1e-9
	coxMaxHalvings   = 20
)

// Cox is a fitted single-covariate proportional hazards model.
type Cox struct {
	Coef       float64
	SE         float64
	Z          float64
	P          float64
	HR         float64
	Lower      float64
	Upper      float64
	LogLik     float64
	Iterations int
	Converged  bool
}

// FitCox fits h(t|x) = h0(t) exp(beta*x) by Newton-Raphson on the Breslow
// partial likelihood for tied event times. x[i] is the covariate of recs[i].
// The hazard ratio is exp(beta), reported with a Wald confidence interval.
// When the fit does not converge the last iterate is returned along with
// ErrCoxNotConverged.
func FitCox(recs []Record, x []float64) (Cox, error) {
	if len(recs) != len(x) {
		return Cox{}, fmt.Errorf("%d records but %d covariate values", len(recs), len(x))
	}

	data := make([]coxObs, len(recs))
	for i, r := range recs {
		data[i] = coxObs{Time: r.Time, Event: r.Event, X: x[i]}
	}
	sort.SliceStable(data, func(i, j int) bool { return data[i].Time > data[j].Time })

	out := Cox{}

	beta := 0.0
	ll, grad, info := coxPartial(data, beta)
	if info <= 0 {
		return out, ErrDegenerateCox
	}

	for out.Iterations = 1; out.Iterations <= coxMaxIterations; out.Iterations++ {
		step := grad / info

		next := beta + step
		nextLL, nextGrad, nextInfo := coxPartial(data, next)
		for h := 0; h < coxMaxHalvings && (nextLL < ll || math.IsNaN(nextLL)); h++ {
			step /= 2
			next = beta + step
			nextLL, nextGrad, nextInfo = coxPartial(data, next)
		}

		beta, ll, grad, info = next, nextLL, nextGrad, nextInfo

		if math.Abs(step) < coxTolerance {
			out.Converged = true
			break
		}
		if info <= 0 {
			break
		}
	}
	if out.Iterations > coxMaxIterations {
		out.Iterations = coxMaxIterations
	}

	z := distuv.UnitNormal.Quantile(1 - (1-ConfidenceLevel)/2)

	out.Coef = beta
	out.LogLik = ll
	out.HR = math.Exp(beta)
	if info > 0 {
		out.SE = 1 / math.Sqrt(info)
		out.Z = beta / out.SE
		out.P = 2 * distuv.UnitNormal.Survival(math.Abs(out.Z))
		out.Lower = math.Exp(beta - z*out.SE)
		out.Upper = math.Exp(beta + z*out.SE)
	} else {
		out.SE = math.Inf(1)
		out.P = math.NaN()
		out.Lower = 0
		out.Upper = math.Inf(1)
	}

	if !out.Converged || info <= 0 {
		return out, fmt.Errorf("after %d iterations, beta=%g: %w", out.Iterations, beta, ErrCoxNotConverged)
	}

	return out, nil
}

type coxObs struct {
	Time  float64
	Event bool
	X     float64
}

// coxPartial returns the Breslow log partial likelihood, its first derivative
// and the observed information (negative second derivative) at beta. data must
// be sorted by descending time.
func coxPartial(data []coxObs, beta float64) (ll, grad, info float64) {
	var s0, s1, s2 float64

	for i := 0; i < len(data); {
		t := data[i].Time

		// Everyone with this time joins the risk set before the events at t
		// are scored.
		var d, sumX float64
		j := i
		for ; j < len(data) && data[j].Time == t; j++ {
			w := math.Exp(beta * data[j].X)
			s0 += w
			s1 += w * data[j].X
			s2 += w * data[j].X * data[j].X
			if data[j].Event {
				d++
				sumX += data[j].X
			}
		}
		i = j

		if d == 0 {
			continue
		}

		mean := s1 / s0
		ll += beta*sumX - d*math.Log(s0)
		grad += sumX - d*mean
		info += d * (s2/s0 - mean*mean)
	}

	return
}
