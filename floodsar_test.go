package floodsar

import (
	"context"
	"math"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yyyoichi/floodsar/internal/dataset"
	"github.com/yyyoichi/floodsar/internal/floodclass"
	"github.com/yyyoichi/floodsar/internal/store"
	"github.com/yyyoichi/floodsar/internal/sweep"
)

func TestNew(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, DefaultSeed, c.seed)
	assert.Equal(t, 10, c.maxIterations)
	assert.Equal(t, 1.0, c.fraction)
	assert.Equal(t, floodclass.VV, c.strategy)
	assert.True(t, math.IsNaN(c.maxVV))
	assert.Positive(t, c.workers)
	assert.NotNil(t, c.Store())

	c, err = New(WithStrategy("SUM"), WithClip(math.NaN(), 0.5), WithSampleFraction(0.25))
	require.NoError(t, err)
	assert.Equal(t, floodclass.Sum, c.strategy)
	assert.True(t, c.clip)
	assert.Equal(t, 0.5, c.maxVH)
	assert.Equal(t, 0.25, c.fraction)

	c, err = New(WithSeed(0))
	require.NoError(t, err)
	assert.Equal(t, int64(0), c.seed)

	c, err = New(WithStrategy("nope"))
	require.NoError(t, err)
	assert.Equal(t, floodclass.VV, c.strategy)
}

func TestNew_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{name: "iterations", opt: WithMaxIterations(0)},
		{name: "zero fraction", opt: WithSampleFraction(0)},
		{name: "fraction above one", opt: WithSampleFraction(1.5)},
		{name: "NaN fraction", opt: WithSampleFraction(math.NaN())},
		{name: "workers", opt: WithWorkers(-1)},
		{name: "store", opt: WithStore(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opt)
			assert.ErrorIs(t, err, ErrInvalidOption)
		})
	}
}

func threeDates(t *testing.T) *Series {
	t.Helper()
	s, err := NewSeries(VH,
		[]string{"20190101", "20190201", "20190301"},
		[]float64{1, 2, 3},
		[][]float64{
			{0.05, 0.5, 0.5, 0.5},
			{0.05, 0.15, 0.5, 0.5},
			{0.05, 0.15, 0.25, 0.5},
		})
	require.NoError(t, err)
	return s
}

func TestCalibrator_SweepThresholds(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	clock := clockwork.NewFakeClock()
	c, err := New(WithStore(st), WithClock(clock), WithSeed(3))
	require.NoError(t, err)

	out, err := c.SweepThresholds(ctx, threeDates(t), []float64{0.1, 0.2, 0.3})
	require.NoError(t, err)
	assert.Equal(t, 0.3, out.Best.Params.Threshold)

	run, err := st.LatestRun(ctx, store.AlgorithmThreshold)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, store.AlgorithmThreshold, run.Algorithm)
	assert.Equal(t, int64(3), run.Seed)
	assert.Equal(t, []string{"20190101", "20190201", "20190301"}, run.Dates)
	assert.Equal(t, []float64{1, 2, 3}, run.Elevations)
	assert.Equal(t, 4, run.RowsPerDate)
	assert.True(t, clock.Now().Equal(run.FinishedAt))

	best, err := st.LoadThresholdBest(ctx, "VH")
	require.NoError(t, err)
	assert.Equal(t, out.Decisions, best.Decisions)
}

func TestCalibrator_SweepThresholds_NoValidResultKeepsRun(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	out, err := SweepThresholds(ctx, threeDates(t), []float64{0.01}, WithStore(st))
	assert.ErrorIs(t, err, sweep.ErrNoValidResult)
	require.NotNil(t, out)

	_, err = st.LatestRun(ctx, store.AlgorithmThreshold)
	assert.NoError(t, err)
}

func TestCalibrator_RejectedInputSavesNoRun(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	_, err := SweepThresholds(ctx, threeDates(t), nil, WithStore(st))
	assert.ErrorIs(t, err, sweep.ErrInvalidRange)
	_, err = SweepClusters(ctx, &SampleSet{}, 2, 3, WithStore(st))
	assert.ErrorIs(t, err, dataset.ErrEmpty)
	_, err = SweepClusters(ctx, &SampleSet{}, 3, 2, WithStore(st))
	assert.ErrorIs(t, err, sweep.ErrInvalidRange)

	_, err = st.LatestRun(ctx, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// floodedDates has 100, 200 and 300 flooded pixels out of 400 on dates with
// elevations 1, 2 and 3. Flooded pixels sit near 0.01, dry ones near 1.
func floodedDates(t *testing.T) *SampleSet {
	t.Helper()
	var vh, vv [][]float64
	i := 0
	for d := range 3 {
		dh := make([]float64, 400)
		for p := range dh {
			base := 1.0
			if p < 100*(d+1) {
				base = 0.01
			}
			dh[p] = base + 1e-5*float64(i)
			i++
		}
		vh = append(vh, dh)
		vv = append(vv, append([]float64(nil), dh...))
	}
	s, err := NewSampleSet([]string{"20190101", "20190201", "20190301"}, []float64{1, 2, 3}, vh, vv)
	require.NoError(t, err)
	return s
}

func TestCalibrator_SweepClusters(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{name: "intensity"},
		{name: "clipped log power", opts: []Option{WithClip(1.005, math.NaN()), WithLogPower(true)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			st := store.NewMemory()
			samples := floodedDates(t)
			opts := append([]Option{WithStore(st), WithSeed(42), WithWorkers(2)}, tt.opts...)

			out, err := SweepClusters(ctx, samples, 1, 3, opts...)
			require.NotNil(t, out)
			require.NoError(t, err)
			require.NotEmpty(t, out.Fits)
			assert.Empty(t, out.Fits[0].Empty)
			assert.Equal(t, 2, out.Best.Params.K)
			assert.Equal(t, 1, out.Best.Params.M)
			assert.InDelta(t, 1.0, out.Best.Coefficient, 1e-9)
			assert.Equal(t, []int{100, 200, 300}, out.Best.Areas)

			run, err := st.LatestRun(ctx, store.AlgorithmCluster)
			require.NoError(t, err)
			assert.Equal(t, store.AlgorithmCluster, run.Algorithm)
			assert.Equal(t, 400, run.RowsPerDate)
			assert.Len(t, run.Dates, 3)

			// the caller's samples are not transformed in place
			assert.InDelta(t, 1.0, samples.VH[len(samples.VH)-1], 0.02)
		})
	}
}

func TestCalibrator_NewBuilder(t *testing.T) {
	c, err := New(WithStrictRowsPerDate(true))
	require.NoError(t, err)
	b := c.NewBuilder(nil, nil)
	assert.True(t, b.Strict)
	assert.NotNil(t, b.Logger)
}
