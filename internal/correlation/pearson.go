package correlation

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	ErrLengthMismatch = errors.New("series lengths differ")
	ErrEmpty          = errors.New("series is empty")
	// ErrUndefined reports a coefficient that cannot be computed because
	// one of the series has zero variance.
	ErrUndefined = errors.New("correlation is undefined")
)

// roundingSlack scales the rounding error bound n·ε·n·Σx² of n·Σx² − (Σx)².
// A variance at or below that bound is indistinguishable from the residue a
// constant non-integral series leaves behind.
const roundingSlack = 16

// Pearson computes the Pearson correlation coefficient between per-date
// flooded-area counts and an observation series using raw sums:
//
//	(n·ΣXY − ΣX·ΣY) / sqrt((n·ΣX² − (ΣX)²)·(n·ΣY² − (ΣY)²))
//
// A zero-variance series returns NaN together with ErrUndefined.
func Pearson(counts []int, series []float64) (float64, error) {
	if len(counts) != len(series) {
		return math.NaN(), fmt.Errorf("%w: %d counts, %d observations", ErrLengthMismatch, len(counts), len(series))
	}
	if len(counts) == 0 {
		return math.NaN(), ErrEmpty
	}
	x := make([]float64, len(counts))
	for i, c := range counts {
		x[i] = float64(c)
	}
	return Float64s(x, series)
}

// Float64s is Pearson for two real-valued series.
func Float64s(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return math.NaN(), fmt.Errorf("%w: %d and %d", ErrLengthMismatch, len(x), len(y))
	}
	if len(x) == 0 {
		return math.NaN(), ErrEmpty
	}
	n := float64(len(x))
	var (
		sumX  = floats.Sum(x)
		sumY  = floats.Sum(y)
		sumXY = floats.Dot(x, y)
		sumXX = floats.Dot(x, x)
		sumYY = floats.Dot(y, y)
	)
	varX := n*sumXX - sumX*sumX
	varY := n*sumYY - sumY*sumY
	if degenerate(varX, n, n*sumXX) || degenerate(varY, n, n*sumYY) {
		return math.NaN(), ErrUndefined
	}
	r := (n*sumXY - sumX*sumY) / math.Sqrt(varX*varY)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return math.NaN(), ErrUndefined
	}
	return math.Max(-1, math.Min(1, r)), nil
}

func degenerate(v, n, scale float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return true
	}
	const eps = 0x1p-52
	return v <= roundingSlack*n*eps*math.Abs(scale)
}
