package sweep

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidRange = errors.New("invalid sweep range")

// DefaultThresholdStep is used when a threshold range omits its step.
const DefaultThresholdStep = 0.01

// maxCandidates bounds the number of generated candidates.
const maxCandidates = 1_000_000

// ThresholdRange returns start, start+step, ... up to end inclusive. The end
// bound is widened by 1e-9·step so accumulated rounding keeps the end point.
func ThresholdRange(start, end, step float64) ([]float64, error) {
	if !(step > 0) {
		return nil, fmt.Errorf("%w: step %v must be positive", ErrInvalidRange, step)
	}
	if end < start {
		return nil, fmt.Errorf("%w: end %v before start %v", ErrInvalidRange, end, start)
	}
	if n := (end - start) / step; n >= maxCandidates {
		return nil, fmt.Errorf("%w: more than %d thresholds", ErrInvalidRange, maxCandidates)
	}
	limit := end + 1e-9*step
	var out []float64
	for i := 0; ; i++ {
		v := start + float64(i)*step
		if v > limit {
			break
		}
		out = append(out, v)
	}
	return out, nil
}

// ClassRange returns kMin..kMax inclusive without k=1, which has no flood
// class to choose.
func ClassRange(kMin, kMax int) ([]int, error) {
	if kMin <= 0 || kMax < kMin {
		return nil, fmt.Errorf("%w: k range %d..%d", ErrInvalidRange, kMin, kMax)
	}
	if kMax-kMin >= maxCandidates {
		return nil, fmt.Errorf("%w: more than %d class counts", ErrInvalidRange, maxCandidates)
	}
	out := make([]int, 0, kMax-kMin+1)
	for k := max(kMin, 2); k <= kMax; k++ {
		out = append(out, k)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: k range %d..%d has no class count above 1", ErrInvalidRange, kMin, kMax)
	}
	return out, nil
}

// ParseCSVFloat64s parses "a,b,c" into floats.
func ParseCSVFloat64s(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidRange, p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ParseCSVInts parses "a,b,c" into ints.
func ParseCSVInts(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidRange, p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ParseThresholds parses "start,end[,step]" into a threshold range.
func ParseThresholds(s string) ([]float64, error) {
	v, err := ParseCSVFloat64s(s)
	if err != nil {
		return nil, err
	}
	switch len(v) {
	case 2:
		return ThresholdRange(v[0], v[1], DefaultThresholdStep)
	case 3:
		return ThresholdRange(v[0], v[1], v[2])
	}
	return nil, fmt.Errorf("%w: %q, want start,end[,step]", ErrInvalidRange, s)
}

// ParseClasses parses "kMin,kMax" into a class range.
func ParseClasses(s string) ([]int, error) {
	v, err := ParseCSVInts(s)
	if err != nil {
		return nil, err
	}
	if len(v) != 2 {
		return nil, fmt.Errorf("%w: %q, want kMin,kMax", ErrInvalidRange, s)
	}
	return ClassRange(v[0], v[1])
}
