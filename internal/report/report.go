package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/yyyoichi/floodsar/internal/dataset"
	"github.com/yyyoichi/floodsar/internal/raster"
	"github.com/yyyoichi/floodsar/internal/store"
)

// Writer renders every report the store has data for into OutDir.
type Writer struct {
	Store  store.Store
	OutDir string
	// Samples are drawn in the cluster scatter charts when they match the
	// stored labels. Without them only the centroids are drawn.
	Samples *dataset.SampleSet
	Logger  *zap.Logger
}

// Write returns the paths of the written files.
func (w *Writer) Write(ctx context.Context) ([]string, error) {
	log := w.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(w.OutDir, 0o755); err != nil {
		return nil, err
	}
	thresholdRun, err := w.Store.LatestRun(ctx, store.AlgorithmThreshold)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	clusterRun, err := w.Store.LatestRun(ctx, store.AlgorithmCluster)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	var paths []string
	html := func(name string, render func(*bytes.Buffer) error) error {
		var buf bytes.Buffer
		if err := render(&buf); err != nil {
			return fmt.Errorf("failed to render %s: %w", name, err)
		}
		path := filepath.Join(w.OutDir, name)
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return err
		}
		paths = append(paths, path)
		return nil
	}
	png := func(name string, s AreaSeries) error {
		path := filepath.Join(w.OutDir, name)
		if err := AreaPlot(path, s); err != nil {
			return err
		}
		paths = append(paths, path)
		return nil
	}

	thresholds, err := w.Store.Evaluations(ctx, store.KindThreshold)
	if err != nil {
		return nil, err
	}
	if len(thresholds) > 0 {
		if err := html("thresholds.html", func(b *bytes.Buffer) error { return ThresholdChart(b, thresholds) }); err != nil {
			return nil, err
		}
		for _, pol := range []raster.Polarization{raster.VH, raster.VV} {
			best, err := w.Store.LoadThresholdBest(ctx, string(pol))
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			e, ok := find(thresholds, func(e store.Evaluation) bool {
				return e.Polarization == string(pol) && e.Threshold == best.Threshold
			})
			if !ok || len(thresholdRun.Dates) != len(e.Areas) {
				log.Warn("skipping area plot, no matching evaluation", zap.String("polarization", string(pol)))
				continue
			}
			err = png(fmt.Sprintf("area_%s.png", pol), AreaSeries{
				Title:      fmt.Sprintf("%s threshold %g (r=%.3f)", pol, best.Threshold, best.Coefficient),
				Dates:      thresholdRun.Dates,
				Elevations: thresholdRun.Elevations,
				Areas:      e.Areas,
			})
			if err != nil {
				return nil, err
			}
		}
	}

	clusters, err := w.Store.Evaluations(ctx, store.KindCluster)
	if err != nil {
		return nil, err
	}
	if len(clusters) > 0 {
		if err := html("clusters.html", func(b *bytes.Buffer) error { return ClusterHeatmap(b, clusters) }); err != nil {
			return nil, err
		}
		seen := make(map[int]bool)
		for _, e := range clusters {
			if seen[e.K] {
				continue
			}
			seen[e.K] = true
			fit, err := w.Store.LoadFit(ctx, e.K)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			var vh, vv []float64
			if w.Samples != nil && w.Samples.Len() == len(fit.Labels) {
				vh, vv = w.Samples.VH, w.Samples.VV
			}
			name := fmt.Sprintf("scatter_k%d.html", fit.K)
			if err := html(name, func(b *bytes.Buffer) error { return ClusterScatter(b, fit, vh, vv) }); err != nil {
				return nil, err
			}
		}

		best, err := w.Store.LoadClusterBest(ctx)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return nil, err
		default:
			e, ok := find(clusters, func(e store.Evaluation) bool { return e.K == best.K && e.M == best.M })
			if ok && len(clusterRun.Dates) == len(e.Areas) {
				err := png("area_clusters.png", AreaSeries{
					Title:      fmt.Sprintf("k=%d m=%d (r=%.3f)", best.K, best.M, best.Coefficient),
					Dates:      clusterRun.Dates,
					Elevations: clusterRun.Elevations,
					Areas:      e.Areas,
				})
				if err != nil {
					return nil, err
				}
			} else {
				log.Warn("skipping area plot, no matching evaluation", zap.Int("k", best.K), zap.Int("m", best.M))
			}
		}
	}

	log.Info("reports written", zap.Strings("paths", paths))
	return paths, nil
}

func find(evals []store.Evaluation, match func(store.Evaluation) bool) (store.Evaluation, bool) {
	for _, e := range evals {
		if match(e) {
			return e, true
		}
	}
	return store.Evaluation{}, false
}
