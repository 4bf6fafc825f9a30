package floodclass

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yyyoichi/floodsar/internal/kmeans"
)

func TestSelect(t *testing.T) {
	centroids := []kmeans.Centroid{
		{VH: 0.30, VV: 0.05, Label: 1},
		{VH: 0.10, VV: 0.40, Label: 2},
		{VH: 0.20, VV: 0.20, Label: 3},
		{VH: 0.05, VV: 0.90, Label: 4},
	}
	test := []struct {
		name     string
		strategy Strategy
		m        int
		want     []int
	}{
		{name: "vh", strategy: VH, m: 3, want: []int{4, 2, 3}},
		{name: "vv", strategy: VV, m: 3, want: []int{1, 3, 2}},
		{name: "sum", strategy: Sum, m: 2, want: []int{1, 3}},
		{name: "unknown behaves as vv", strategy: ParseStrategy("median"), m: 3, want: []int{1, 3, 2}},
		{name: "single", strategy: VH, m: 1, want: []int{4}},
	}
	for _, tt := range test {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Select(centroids, tt.strategy, tt.m)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelect_StableOnEqualKeys(t *testing.T) {
	centroids := []kmeans.Centroid{
		{VH: 0.2, VV: 0.1, Label: 1},
		{VH: 0.1, VV: 0.1, Label: 2},
		{VH: 0.3, VV: 0.1, Label: 3},
	}
	got, err := Select(centroids, VV, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got)
}

func TestSelect_UndefinedSortLast(t *testing.T) {
	centroids := []kmeans.Centroid{
		{VH: math.NaN(), VV: math.NaN(), Label: 1},
		{VH: 0.4, VV: 0.4, Label: 2},
		{VH: 0.1, VV: 0.1, Label: 3},
	}
	got, err := Select(centroids, Sum, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, got)
}

func TestSelect_InvalidCount(t *testing.T) {
	centroids := []kmeans.Centroid{{Label: 1}, {Label: 2}, {Label: 3}}
	for _, m := range []int{0, -1, 3, 4} {
		_, err := Select(centroids, VV, m)
		assert.ErrorIs(t, err, ErrInvalidCount, "m=%d", m)
	}
}

func TestParseStrategy(t *testing.T) {
	assert.Equal(t, VH, ParseStrategy("VH"))
	assert.Equal(t, Sum, ParseStrategy(" sum "))
	assert.Equal(t, VV, ParseStrategy("vv"))
	assert.Equal(t, VV, ParseStrategy(""))
}

func TestSet(t *testing.T) {
	s := NewSet(4, []int{2, 4})
	assert.False(t, s.Contains(1))
	assert.True(t, s.Contains(2))
	assert.True(t, s.Contains(4))
	assert.False(t, s.Contains(5))
	assert.False(t, s.Contains(-1))
}
