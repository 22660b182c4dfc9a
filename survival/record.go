package survival

import (
	"math"
	"sort"
)

// Record is one sample's time-to-event observation. Event is true when death
// (or progression) was observed and false when the sample was censored at Time.
type Record struct {
	Sample string
	Time   float64
	Event  bool
}

// Valid reports whether the record can be used by the estimators.
func (r Record) Valid() bool {
	return r.Time >= 0 && !math.IsNaN(r.Time) && !math.IsInf(r.Time, 0)
}

// byTime sorts records by ascending time. Events sort before censorings at the
// same time, which is the usual convention: a sample censored at t was still at
// risk for an event at t.
func byTime(recs []Record) []Record {
	out := make([]Record, len(recs))
	copy(out, recs)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].Event && !out[j].Event
	})

	return out
}

// eventTimes returns the distinct times at which at least one event occurred in
// any of the groups, ascending.
func eventTimes(groups [][]Record) []float64 {
	seen := make(map[float64]struct{})
	for _, g := range groups {
		for _, r := range g {
			if r.Event {
				seen[r.Time] = struct{}{}
			}
		}
	}

	out := make([]float64, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Float64s(out)

	return out
}

// atRisk counts records with Time >= t, and the events at exactly t.
func atRisk(recs []Record, t float64) (n, d int) {
	for _, r := range recs {
		if r.Time >= t {
			n++
			if r.Time == t && r.Event {
				d++
			}
		}
	}

	return
}
