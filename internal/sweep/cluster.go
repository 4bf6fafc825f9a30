package sweep

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"

	"go.uber.org/zap"

	"github.com/yyyoichi/floodsar/internal/area"
	"github.com/yyyoichi/floodsar/internal/dataset"
	"github.com/yyyoichi/floodsar/internal/floodclass"
	"github.com/yyyoichi/floodsar/internal/kmeans"
	"github.com/yyyoichi/floodsar/internal/pool"
	"github.com/yyyoichi/floodsar/internal/store"
)

var ErrInvalidConfig = errors.New("invalid cluster sweep configuration")

type ClusterConfig struct {
	MaxIterations int
	// Fraction of the points used to fit, in (0, 1].
	Fraction float64
	Strategy floodclass.Strategy
	// Seed of the fit for k is Seed+k.
	Seed int64
	// ReuseFits loads fits from the store instead of refitting when the
	// stored fit matches the sample set.
	ReuseFits bool
}

// FitInfo describes how the clustering for one k was obtained.
type FitInfo struct {
	K          int
	Reused     bool
	Iterations int
	Converged  bool
	SampleSize int
	Empty      []int
}

type ClusterOutcome struct {
	Best Result
	// Results holds every (k, m) in sweep order: k ascending, m descending.
	Results []Result
	Fits    []FitInfo
}

type clusterUnit struct {
	fit     FitInfo
	results []Result
}

// Clusters fits k-means for every k and scores each flood class count m
// from k-1 down to 1. Fits and flood classes are persisted per k and
// (k, m), and the best (k, m) is persisted once every k is done.
func Clusters(ctx context.Context, set *dataset.SampleSet, ks []int, cfg ClusterConfig, env Env) (*ClusterOutcome, error) {
	if set == nil || set.Len() == 0 || len(set.Records) == 0 {
		return nil, fmt.Errorf("%w: empty sample set", dataset.ErrEmpty)
	}
	if len(set.VH) != len(set.VV) {
		return nil, fmt.Errorf("%w: %d VH and %d VV pixels", dataset.ErrMismatch, len(set.VH), len(set.VV))
	}
	if len(ks) == 0 {
		return nil, fmt.Errorf("%w: no class counts", ErrInvalidRange)
	}
	for _, k := range ks {
		if k < 2 {
			return nil, fmt.Errorf("%w: k=%d, need at least 2 classes", ErrInvalidRange, k)
		}
	}
	if cfg.MaxIterations < 1 {
		return nil, fmt.Errorf("%w: maxIterations=%d", ErrInvalidConfig, cfg.MaxIterations)
	}
	if !(cfg.Fraction > 0 && cfg.Fraction <= 1) {
		return nil, fmt.Errorf("%w: sample fraction %v outside (0, 1]", ErrInvalidConfig, cfg.Fraction)
	}
	env = env.init()

	var (
		elevations = set.Elevations()
		ranges     = set.Ranges()
		offsets    = make([]int, len(ks))
		units      = make([]int, len(ks))
		out        = new(ClusterOutcome)
	)
	for i := range ks {
		units[i] = i
		if i > 0 {
			offsets[i] = offsets[i-1] + ks[i-1] - 1
		}
	}
	env.Logger.Info("cluster sweep started",
		zap.Int("dates", len(ranges)),
		zap.Int("pixels", set.Len()),
		zap.Ints("k", ks),
		zap.String("strategy", string(cfg.Strategy)))

	runErr := pool.Run(ctx, env.Workers, units,
		func(ctx context.Context, i int) (clusterUnit, error) {
			k := ks[i]
			fit, info, err := env.fitOrLoad(ctx, set, k, cfg)
			if err != nil {
				return clusterUnit{}, err
			}
			unit := clusterUnit{fit: info}
			for m := k - 1; m >= 1; m-- {
				if err := ctx.Err(); err != nil {
					return clusterUnit{}, err
				}
				labels, err := floodclass.Select(fit.Centroids, cfg.Strategy, m)
				if err != nil {
					return clusterUnit{}, err
				}
				if err := env.Store.SaveFloodClasses(ctx, store.FloodClasses{K: k, M: m, Labels: labels}); err != nil {
					return clusterUnit{}, fmt.Errorf("failed to persist flood classes k=%d m=%d: %w", k, m, err)
				}
				counts, err := area.CountLabelsIn(fit.Labels, floodclass.NewSet(k, labels), ranges)
				if err != nil {
					return clusterUnit{}, err
				}
				r, err := score(Result{
					Index:  offsets[i] + k - 1 - m,
					Params: Params{K: k, M: m},
					Areas:  counts,
				}, elevations)
				if err != nil {
					return clusterUnit{}, err
				}
				unit.results = append(unit.results, r)
			}
			return unit, nil
		},
		func(u clusterUnit) error {
			out.Fits = append(out.Fits, u.fit)
			for _, r := range u.results {
				out.Results = append(out.Results, r)
				env.observe(store.KindCluster, r)
			}
			return nil
		},
	)
	slices.SortFunc(out.Results, byIndex)
	slices.SortFunc(out.Fits, func(a, b FitInfo) int { return a.K - b.K })
	if err := env.saveEvaluations(ctx, store.KindCluster, out.Results); err != nil && runErr == nil {
		runErr = err
	}

	best, ok := Best(out.Results)
	if !ok {
		if runErr != nil {
			return out, runErr
		}
		return out, fmt.Errorf("%w: k %v", ErrNoValidResult, ks)
	}
	out.Best = best
	if runErr != nil {
		return out, runErr
	}

	env.Metrics.Best(string(store.KindCluster), best.Coefficient)
	env.Logger.Info("cluster sweep done",
		zap.Int("k", best.Params.K),
		zap.Int("m", best.Params.M),
		zap.Float64("coefficient", best.Coefficient))
	err := env.Store.SaveClusterBest(ctx, store.ClusterBest{
		K:           best.Params.K,
		M:           best.Params.M,
		Coefficient: best.Coefficient,
	})
	if err != nil {
		return out, fmt.Errorf("failed to persist cluster best: %w", err)
	}
	return out, nil
}

// fitOrLoad returns the clustering for k, persisted in the store before it
// is used.
func (e Env) fitOrLoad(ctx context.Context, set *dataset.SampleSet, k int, cfg ClusterConfig) (store.Fit, FitInfo, error) {
	log := e.Logger.With(zap.Int("k", k))
	if cfg.ReuseFits {
		fit, err := e.Store.LoadFit(ctx, k)
		switch {
		case err == nil && len(fit.Labels) == set.Len() && len(fit.Centroids) == k:
			log.Debug("reusing stored fit")
			return fit, FitInfo{K: k, Reused: true}, nil
		case err == nil:
			log.Warn("stored fit does not match the sample set, refitting",
				zap.Int("labels", len(fit.Labels)),
				zap.Int("pixels", set.Len()))
		case !errors.Is(err, store.ErrNotFound):
			return store.Fit{}, FitInfo{}, fmt.Errorf("failed to load fit k=%d: %w", k, err)
		}
	}

	started := e.Clock.Now()
	res, err := kmeans.Fit(set.VH, set.VV, k, cfg.MaxIterations, cfg.Fraction, rand.New(rand.NewSource(cfg.Seed+int64(k))))
	if err != nil {
		return store.Fit{}, FitInfo{}, err
	}
	e.Metrics.Fitted(k, e.Clock.Since(started))
	if len(res.Empty) > 0 {
		log.Warn("clusters lost every point", zap.Ints("labels", res.Empty))
	}
	log.Debug("fitted",
		zap.Int("iterations", res.Iterations),
		zap.Bool("converged", res.Converged),
		zap.Int("sampleSize", res.SampleSize))

	fit := store.Fit{K: k, Centroids: res.Centroids, Labels: res.Labels}
	if err := e.Store.SaveFit(ctx, fit); err != nil {
		return store.Fit{}, FitInfo{}, fmt.Errorf("failed to persist fit k=%d: %w", k, err)
	}
	return fit, FitInfo{
		K:          k,
		Iterations: res.Iterations,
		Converged:  res.Converged,
		SampleSize: res.SampleSize,
		Empty:      res.Empty,
	}, nil
}
