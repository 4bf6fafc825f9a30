package kmeans

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blobs(r *rand.Rand, n int) (vh, vv []float64) {
	vh = make([]float64, n)
	vv = make([]float64, n)
	for i := range n {
		if i%2 == 0 {
			vh[i], vv[i] = 0.01+r.Float64()*0.01, 0.02+r.Float64()*0.01
		} else {
			vh[i], vv[i] = 0.5+r.Float64()*0.01, 0.6+r.Float64()*0.01
		}
	}
	return
}

func TestFit(t *testing.T) {
	vh, vv := blobs(rand.New(rand.NewSource(1)), 400)
	for _, k := range []int{2, 3, 5} {
		res, err := Fit(vh, vv, k, 10, 1, rand.New(rand.NewSource(int64(k))))
		require.NoError(t, err)
		assert.Len(t, res.Centroids, k)
		require.Len(t, res.Labels, len(vh))
		for _, l := range res.Labels {
			assert.GreaterOrEqual(t, l, 1)
			assert.LessOrEqual(t, l, k)
		}
		for j, c := range res.Centroids {
			assert.Equal(t, j+1, c.Label)
		}
		assert.Equal(t, len(vh), res.SampleSize)
		assert.LessOrEqual(t, res.Iterations, 10)
	}
}

func TestFit_SeparatesBlobs(t *testing.T) {
	vh, vv := blobs(rand.New(rand.NewSource(7)), 200)
	res, err := Fit(vh, vv, 2, 20, 1, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	if res.Labels[0] == res.Labels[1] {
		t.Skip("initial centroids collided")
	}
	for i := range res.Labels {
		assert.Equal(t, res.Labels[i%2], res.Labels[i], "point %d", i)
	}
	assert.True(t, res.Converged)
}

func TestFit_FractionLabelsAllPoints(t *testing.T) {
	vh, vv := blobs(rand.New(rand.NewSource(11)), 1000)
	res, err := Fit(vh, vv, 3, 10, 0.05, rand.New(rand.NewSource(5)))
	require.NoError(t, err)

	// floor(0.05·1000) = 50 is raised to the minimum working subset
	assert.Equal(t, MinSampleSize, res.SampleSize)
	require.Len(t, res.Labels, 1000)
	assert.Equal(t, Assign(res.Centroids, vh, vv), res.Labels)
	for i, l := range res.Labels {
		assert.NotZero(t, l, "point %d left unlabeled", i)
	}
}

func TestFit_SmallPopulation(t *testing.T) {
	vh := []float64{0, 0.1, 5, 5.1}
	vv := []float64{0, 0.1, 5, 5.1}
	res, err := Fit(vh, vv, 2, 10, 0.5, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	// the floor is capped at N
	assert.Equal(t, 4, res.SampleSize)
	assert.Len(t, res.Labels, 4)
}

func TestFit_EmptyClusters(t *testing.T) {
	vh := []float64{1, 1, 1, 1}
	vv := []float64{2, 2, 2, 2}
	res, err := Fit(vh, vv, 3, 10, 1, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	assert.Equal(t, []int{1, 1, 1, 1}, res.Labels)
	assert.Equal(t, []int{2, 3}, res.Empty)
	assert.True(t, res.Centroids[0].Defined())
	assert.False(t, res.Centroids[1].Defined())
	assert.False(t, res.Centroids[2].Defined())
	assert.True(t, res.Converged)
}

func TestFit_Deterministic(t *testing.T) {
	vh, vv := blobs(rand.New(rand.NewSource(2)), 500)
	a, err := Fit(vh, vv, 4, 10, 0.3, rand.New(rand.NewSource(99)))
	require.NoError(t, err)
	b, err := Fit(vh, vv, 4, 10, 0.3, rand.New(rand.NewSource(99)))
	require.NoError(t, err)
	assert.Equal(t, a.Labels, b.Labels)
	assert.Equal(t, a.Centroids, b.Centroids)
}

func TestFit_InvalidInput(t *testing.T) {
	rd := rand.New(rand.NewSource(1))
	test := []struct {
		name     string
		vh, vv   []float64
		k, iter  int
		fraction float64
	}{
		{name: "length mismatch", vh: []float64{1, 2}, vv: []float64{1}, k: 2, iter: 1, fraction: 1},
		{name: "empty", k: 2, iter: 1, fraction: 1},
		{name: "k=1", vh: []float64{1}, vv: []float64{1}, k: 1, iter: 1, fraction: 1},
		{name: "k=0", vh: []float64{1}, vv: []float64{1}, k: 0, iter: 1, fraction: 1},
		{name: "no iterations", vh: []float64{1}, vv: []float64{1}, k: 2, iter: 0, fraction: 1},
		{name: "zero fraction", vh: []float64{1}, vv: []float64{1}, k: 2, iter: 1, fraction: 0},
		{name: "fraction above one", vh: []float64{1}, vv: []float64{1}, k: 2, iter: 1, fraction: 1.5},
	}
	for _, tt := range test {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(tt.vh, tt.vv, tt.k, tt.iter, tt.fraction, rd)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestNearest_TieGoesToLowestIndex(t *testing.T) {
	centroids := []Centroid{{VH: 0, VV: 0, Label: 1}, {VH: 2, VV: 0, Label: 2}}
	assert.Equal(t, 1, nearest(centroids, 1, 0))
	assert.Equal(t, 2, nearest(centroids, 1.5, 0))

	dup := []Centroid{{VH: 1, VV: 1, Label: 1}, {VH: 1, VV: 1, Label: 2}}
	assert.Equal(t, 1, nearest(dup, 1, 1))
}

func TestAverageStore(t *testing.T) {
	var s AverageStore
	vh, vv := s.Average()
	assert.True(t, math.IsNaN(vh))
	assert.True(t, math.IsNaN(vv))

	s.Add(1, 2)
	s.Add(3, 6)
	vh, vv = s.Average()
	assert.Equal(t, 2.0, vh)
	assert.Equal(t, 4.0, vv)
	assert.Equal(t, 2, s.Count())

	s.Reset()
	assert.Zero(t, s.Count())
}
