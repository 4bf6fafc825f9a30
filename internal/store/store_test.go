package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yyyoichi/floodsar/internal/kmeans"
)

func implementations(t *testing.T) map[string]Store {
	t.Helper()
	dir, err := NewDir(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "floodsar.db"))
	require.NoError(t, err)
	stores := map[string]Store{
		"memory": NewMemory(),
		"dir":    dir,
		"sqlite": db,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStore_Runs(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.LatestRun(ctx, "")
			assert.ErrorIs(t, err, ErrNotFound)

			clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
			first := NewRun(clock, "2D", 7)
			first.Dates = []string{"20190101", "20190201"}
			first.Elevations = []float64{1.5, 2.5}
			first.Width, first.Height, first.RowsPerDate = 2, 1, 2
			require.NoError(t, s.SaveRun(ctx, first))

			clock.Advance(time.Hour)
			second := NewRun(clock, "1D", 8)
			second.Dates = []string{"20190301"}
			second.Elevations = []float64{3}
			require.NoError(t, s.SaveRun(ctx, second))
			assert.NotEqual(t, first.ID, second.ID)

			latest, err := s.LatestRun(ctx, "")
			require.NoError(t, err)
			assert.Equal(t, second.ID, latest.ID)
			assert.Equal(t, "1D", latest.Algorithm)
			assert.True(t, second.StartedAt.Equal(latest.StartedAt))
			assert.True(t, latest.FinishedAt.IsZero())

			clock.Advance(time.Minute)
			second.FinishedAt = clock.Now()
			require.NoError(t, s.SaveRun(ctx, second))
			latest, err = s.LatestRun(ctx, AlgorithmThreshold)
			require.NoError(t, err)
			assert.True(t, second.FinishedAt.Equal(latest.FinishedAt))
			assert.Equal(t, []string{"20190301"}, latest.Dates)
			assert.Equal(t, []float64{3}, latest.Elevations)
		})
	}
}

func TestStore_LatestRunByAlgorithm(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
			cluster := NewRun(clock, AlgorithmCluster, 1)
			cluster.Dates = []string{"20190101", "20190201"}
			require.NoError(t, s.SaveRun(ctx, cluster))

			_, err := s.LatestRun(ctx, AlgorithmThreshold)
			assert.ErrorIs(t, err, ErrNotFound)

			clock.Advance(time.Hour)
			threshold := NewRun(clock, AlgorithmThreshold, 1)
			threshold.Dates = []string{"20190101", "20190201", "20190301"}
			require.NoError(t, s.SaveRun(ctx, threshold))

			for _, tt := range []struct {
				algorithm string
				want      string
			}{
				{"", threshold.ID},
				{AlgorithmThreshold, threshold.ID},
				{AlgorithmCluster, cluster.ID},
			} {
				got, err := s.LatestRun(ctx, tt.algorithm)
				require.NoError(t, err, tt.algorithm)
				assert.Equal(t, tt.want, got.ID, tt.algorithm)
			}
		})
	}
}

func TestStore_Fits(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.LoadFit(ctx, 3)
			assert.ErrorIs(t, err, ErrNotFound)

			fit := Fit{
				K: 3,
				Centroids: []kmeans.Centroid{
					{VH: 0.1, VV: 0.2, Label: 0},
					{VH: 0.5, VV: 0.6, Label: 1},
					{VH: math.NaN(), VV: math.NaN(), Label: 2},
				},
				Labels: []int{0, 1, 1, 0, 2},
			}
			require.NoError(t, s.SaveFit(ctx, fit))
			got, err := s.LoadFit(ctx, 3)
			require.NoError(t, err)
			assert.Equal(t, 3, got.K)
			assert.Equal(t, fit.Labels, got.Labels)
			require.Len(t, got.Centroids, 3)
			assert.Equal(t, fit.Centroids[:2], got.Centroids[:2])
			assert.False(t, got.Centroids[2].Defined())

			fc := FloodClasses{K: 3, M: 2, Labels: []int{0, 2}}
			require.NoError(t, s.SaveFloodClasses(ctx, fc))
			gotFC, err := s.LoadFloodClasses(ctx, 3, 2)
			require.NoError(t, err)
			assert.Equal(t, fc, gotFC)
			_, err = s.LoadFloodClasses(ctx, 3, 1)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_Best(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.LoadClusterBest(ctx)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.SaveClusterBest(ctx, ClusterBest{K: 4, M: 1, Coefficient: 0.5}))
			require.NoError(t, s.SaveClusterBest(ctx, ClusterBest{K: 5, M: 2, Coefficient: 0.9}))
			best, err := s.LoadClusterBest(ctx)
			require.NoError(t, err)
			assert.Equal(t, ClusterBest{K: 5, M: 2, Coefficient: 0.9}, best)

			tb := ThresholdBest{
				Polarization: "VH",
				Threshold:    0.03,
				Coefficient:  0.8,
				Dates:        []string{"20190101", "20190201"},
				Decisions:    [][]bool{{true, false, true}, {false, false, true}},
			}
			require.NoError(t, s.SaveThresholdBest(ctx, tb))
			got, err := s.LoadThresholdBest(ctx, "VH")
			require.NoError(t, err)
			assert.Equal(t, tb, got)
			_, err = s.LoadThresholdBest(ctx, "VV")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_Evaluations(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			got, err := s.Evaluations(ctx, KindCluster)
			require.NoError(t, err)
			assert.Empty(t, got)

			require.NoError(t, s.SaveEvaluations(ctx, []Evaluation{
				{Kind: KindCluster, K: 2, M: 1, Coefficient: 0.4, Defined: true, Areas: []int{1, 2}},
				{Kind: KindCluster, K: 3, M: 1, Coefficient: 0.1, Defined: true, Areas: []int{3, 4}},
				{Kind: KindCluster, K: 3, M: 2, Defined: false, Areas: []int{5, 5}},
				{Kind: KindThreshold, Polarization: "VH", Threshold: 0.02, Coefficient: 0.7, Defined: true, Areas: []int{9, 8}},
			}))
			// upsert replaces the (k=2, m=1) row
			require.NoError(t, s.SaveEvaluations(ctx, []Evaluation{
				{Kind: KindCluster, K: 2, M: 1, Coefficient: 0.6, Defined: true, Areas: []int{2, 2}},
			}))

			got, err = s.Evaluations(ctx, KindCluster)
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.Equal(t, [][2]int{{2, 1}, {3, 2}, {3, 1}}, [][2]int{{got[0].K, got[0].M}, {got[1].K, got[1].M}, {got[2].K, got[2].M}})
			assert.Equal(t, 0.6, got[0].Coefficient)
			assert.Equal(t, []int{2, 2}, got[0].Areas)
			assert.False(t, got[1].Defined)
			assert.True(t, math.IsNaN(got[1].Coefficient))

			got, err = s.Evaluations(ctx, KindThreshold)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "VH", got[0].Polarization)
			assert.Equal(t, 0.02, got[0].Threshold)
			assert.Equal(t, []int{9, 8}, got[0].Areas)
		})
	}
}
