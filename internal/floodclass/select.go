// Package floodclass picks the clusters that are treated as flooded.
//
// Backscatter is attenuated over open water, so the centroids with the lowest
// intensity are the flood candidates. This is a heuristic.
package floodclass

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/yyyoichi/floodsar/internal/kmeans"
)

var ErrInvalidCount = errors.New("invalid flood class count")

type Strategy string

const (
	VH  Strategy = "vh"
	VV  Strategy = "vv"
	Sum Strategy = "sum"
)

// ParseStrategy maps a user supplied name to a Strategy. Unknown names
// behave as VV.
func ParseStrategy(s string) Strategy {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case VH:
		return VH
	case Sum:
		return Sum
	default:
		return VV
	}
}

// Key is the sort key of a centroid under the strategy.
func (s Strategy) Key(c kmeans.Centroid) float64 {
	switch s {
	case VH:
		return c.VH
	case Sum:
		return c.VH + c.VV
	default:
		return c.VV
	}
}

// Select returns the labels of the m centroids with the lowest key, in
// ascending key order. Equal keys keep label order and undefined centroids
// sort last.
func Select(centroids []kmeans.Centroid, s Strategy, m int) ([]int, error) {
	if k := len(centroids); m < 1 || m >= k {
		return nil, fmt.Errorf("%w: m=%d with k=%d, need 1 <= m < k", ErrInvalidCount, m, k)
	}
	sorted := slices.Clone(centroids)
	slices.SortStableFunc(sorted, func(a, b kmeans.Centroid) int {
		ka, kb := s.Key(a), s.Key(b)
		switch na, nb := math.IsNaN(ka), math.IsNaN(kb); {
		case na && nb:
			return 0
		case na:
			return 1
		case nb:
			return -1
		}
		return cmp.Compare(ka, kb)
	})
	labels := make([]int, m)
	for i := range labels {
		labels[i] = sorted[i].Label
	}
	return labels, nil
}

// Set is a label membership table.
type Set []bool

func NewSet(k int, labels []int) Set {
	s := make(Set, k+1)
	for _, l := range labels {
		if l >= 0 && l <= k {
			s[l] = true
		}
	}
	return s
}

func (s Set) Contains(label int) bool {
	return label >= 0 && label < len(s) && s[label]
}
