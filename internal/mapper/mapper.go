// Package mapper writes per-date flood masks from a calibrated store.
package mapper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/yyyoichi/floodsar/internal/area"
	"github.com/yyyoichi/floodsar/internal/floodclass"
	"github.com/yyyoichi/floodsar/internal/pool"
	"github.com/yyyoichi/floodsar/internal/raster"
	"github.com/yyyoichi/floodsar/internal/store"
)

var ErrLayout = errors.New("stored results do not match the run layout")

// Mapper writes one gray TIFF per date into OutDir, named <YYYYMMDD>.tif,
// with 1 for flooded and 0 for dry pixels.
type Mapper struct {
	Store   store.Store
	OutDir  string
	Workers int
	Logger  *zap.Logger
}

func (m *Mapper) logger() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}

// Threshold maps the stored best threshold decisions of pol.
func (m *Mapper) Threshold(ctx context.Context, pol raster.Polarization) ([]string, error) {
	best, err := m.Store.LoadThresholdBest(ctx, string(pol))
	if err != nil {
		return nil, err
	}
	if len(best.Dates) != len(best.Decisions) {
		return nil, fmt.Errorf("%w: %d dates, %d decision series", ErrLayout, len(best.Dates), len(best.Decisions))
	}
	width, height := 0, 0
	if run, err := m.Store.LatestRun(ctx, store.AlgorithmThreshold); err == nil {
		width, height = run.Width, run.Height
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	m.logger().Info("mapping threshold decisions",
		zap.String("polarization", string(pol)),
		zap.Float64("threshold", best.Threshold),
		zap.Int("dates", len(best.Dates)))
	return m.write(ctx, best.Dates, best.Decisions, width, height)
}

// Clusters maps the stored labels of k with the stored flood classes of
// (k, mm).
func (m *Mapper) Clusters(ctx context.Context, k, mm int) ([]string, error) {
	run, err := m.Store.LatestRun(ctx, store.AlgorithmCluster)
	if err != nil {
		return nil, err
	}
	fit, err := m.Store.LoadFit(ctx, k)
	if err != nil {
		return nil, err
	}
	fc, err := m.Store.LoadFloodClasses(ctx, k, mm)
	if err != nil {
		return nil, err
	}
	blocks, err := area.Blocks(len(fit.Labels), run.RowsPerDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLayout, err)
	}
	if len(blocks) != len(run.Dates) || len(fit.Labels) != run.RowsPerDate*len(run.Dates) {
		return nil, fmt.Errorf("%w: %d labels for %d dates of %d pixels", ErrLayout, len(fit.Labels), len(run.Dates), run.RowsPerDate)
	}

	flood := floodclass.NewSet(k, fc.Labels)
	decisions := make([][]bool, len(blocks))
	for d, b := range blocks {
		decisions[d] = make([]bool, b.Len())
		for i := range decisions[d] {
			decisions[d][i] = flood.Contains(fit.Labels[b.Start+i])
		}
	}
	m.logger().Info("mapping cluster labels",
		zap.Int("k", k),
		zap.Int("m", mm),
		zap.Ints("floodClasses", fc.Labels))
	return m.write(ctx, run.Dates, decisions, run.Width, run.Height)
}

// Auto maps the stored best (k, m).
func (m *Mapper) Auto(ctx context.Context) ([]string, error) {
	best, err := m.Store.LoadClusterBest(ctx)
	if err != nil {
		return nil, err
	}
	return m.Clusters(ctx, best.K, best.M)
}

func (m *Mapper) write(ctx context.Context, dates []string, decisions [][]bool, width, height int) ([]string, error) {
	if err := os.MkdirAll(m.OutDir, 0o755); err != nil {
		return nil, err
	}
	paths := make([]string, len(dates))
	err := pool.Each(ctx, m.Workers, len(dates), func(_ context.Context, i int) error {
		w, h := width, height
		if w*h != len(decisions[i]) {
			// unknown or mismatched raster shape: one row per date
			w, h = len(decisions[i]), 1
		}
		path := filepath.Join(m.OutDir, dates[i]+".tif")
		if err := raster.WriteMask(path, w, h, decisions[i]); err != nil {
			return fmt.Errorf("failed to write mask for %s: %w", dates[i], err)
		}
		paths[i] = path
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}
