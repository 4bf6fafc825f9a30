// Package area turns per-pixel flood decisions into per-date flooded pixel
// counts.
package area

import (
	"errors"
	"fmt"
)

var ErrInvalidBlock = errors.New("invalid block layout")

// Range is the half-open pixel index range [Start, End) owned by one date.
type Range struct {
	Start int `msgpack:"start"`
	End   int `msgpack:"end"`
}

func (r Range) Len() int { return r.End - r.Start }

// Blocks partitions n elements into contiguous ranges of rowsPerDate.
// A trailing partial block is dropped: only whole dates are counted.
func Blocks(n, rowsPerDate int) ([]Range, error) {
	if rowsPerDate <= 0 {
		return nil, fmt.Errorf("%w: rowsPerDate=%d", ErrInvalidBlock, rowsPerDate)
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: n=%d", ErrInvalidBlock, n)
	}
	ranges := make([]Range, n/rowsPerDate)
	for i := range ranges {
		ranges[i] = Range{Start: i * rowsPerDate, End: (i + 1) * rowsPerDate}
	}
	return ranges, nil
}

// Matcher reports whether a cluster label is a flood class.
type Matcher interface {
	Contains(label int) bool
}

// CountLabels counts, per block of rowsPerDate labels, the labels the
// matcher accepts.
func CountLabels(labels []int, flood Matcher, rowsPerDate int) ([]int, error) {
	ranges, err := Blocks(len(labels), rowsPerDate)
	if err != nil {
		return nil, err
	}
	return CountLabelsIn(labels, flood, ranges)
}

// CountLabelsIn is CountLabels over explicit per-date ranges.
func CountLabelsIn(labels []int, flood Matcher, ranges []Range) ([]int, error) {
	return count(len(labels), ranges, func(i int) bool { return flood.Contains(labels[i]) })
}

// CountBelow counts, per block of rowsPerDate pixels, the pixels strictly
// below threshold.
func CountBelow(pixels []float64, threshold float64, rowsPerDate int) ([]int, error) {
	ranges, err := Blocks(len(pixels), rowsPerDate)
	if err != nil {
		return nil, err
	}
	return CountBelowIn(pixels, threshold, ranges)
}

// CountBelowIn is CountBelow over explicit per-date ranges.
func CountBelowIn(pixels []float64, threshold float64, ranges []Range) ([]int, error) {
	return count(len(pixels), ranges, func(i int) bool { return pixels[i] < threshold })
}

// Below returns the per-pixel decision pixel < threshold.
func Below(pixels []float64, threshold float64) []bool {
	out := make([]bool, len(pixels))
	for i, v := range pixels {
		out[i] = v < threshold
	}
	return out
}

func count(n int, ranges []Range, flooded func(i int) bool) ([]int, error) {
	counts := make([]int, len(ranges))
	for d, r := range ranges {
		if r.Start < 0 || r.End < r.Start || r.End > n {
			return nil, fmt.Errorf("%w: range [%d,%d) outside %d elements", ErrInvalidBlock, r.Start, r.End, n)
		}
		for i := r.Start; i < r.End; i++ {
			if flooded(i) {
				counts[d]++
			}
		}
	}
	return counts, nil
}
