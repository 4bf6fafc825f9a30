// Package sweep searches thresholds and cluster configurations for the
// flooded-area series that best correlates with gauge observations.
package sweep

import (
	"errors"
	"time"
)

var ErrNoValidResult = errors.New("no candidate produced a defined correlation")

// Params identifies one candidate configuration. Threshold is set on the
// threshold path, K and M on the cluster path.
type Params struct {
	Polarization string
	Threshold    float64
	K, M         int
}

// Result is the score of one candidate.
type Result struct {
	// Index is the position of the candidate in sweep order.
	Index       int
	Params      Params
	Coefficient float64
	// Defined is false when the correlation had a zero-variance series.
	Defined bool
	// Areas holds the flooded pixel count per date.
	Areas []int
}

// Better returns the better of two results. A defined result beats an
// undefined one, a higher coefficient wins and equal coefficients go to the
// lower Index. The choice does not depend on argument order.
func Better(a, b Result) Result {
	switch {
	case a.Defined != b.Defined:
		if a.Defined {
			return a
		}
		return b
	case a.Defined && a.Coefficient != b.Coefficient:
		if a.Coefficient > b.Coefficient {
			return a
		}
		return b
	case a.Index <= b.Index:
		return a
	}
	return b
}

// Best folds results with Better. It reports false when no result is
// defined.
func Best(results []Result) (Result, bool) {
	if len(results) == 0 {
		return Result{}, false
	}
	best := results[0]
	for _, r := range results[1:] {
		best = Better(best, r)
	}
	return best, best.Defined
}

// Recorder receives sweep measurements. observability.Metrics implements it.
type Recorder interface {
	Evaluated(kind string, defined bool)
	Fitted(k int, elapsed time.Duration)
	Best(kind string, coefficient float64)
}

type nopRecorder struct{}

func (nopRecorder) Evaluated(string, bool)    {}
func (nopRecorder) Fitted(int, time.Duration) {}
func (nopRecorder) Best(string, float64)      {}
