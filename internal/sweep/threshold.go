package sweep

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/yyyoichi/floodsar/internal/area"
	"github.com/yyyoichi/floodsar/internal/dataset"
	"github.com/yyyoichi/floodsar/internal/pool"
	"github.com/yyyoichi/floodsar/internal/raster"
	"github.com/yyyoichi/floodsar/internal/store"
)

type ThresholdOutcome struct {
	Polarization raster.Polarization
	Best         Result
	// Results holds every candidate in threshold order.
	Results []Result
	Dates   []string
	// Decisions[d][p] reports whether pixel p of Dates[d] is below the best
	// threshold.
	Decisions [][]bool
}

// Thresholds scores every threshold against the series: a pixel is flooded
// when its intensity is strictly below the threshold. The best threshold and
// its per-date decisions are persisted to env.Store.
//
// When no threshold yields a defined correlation the outcome carries every
// result and the error wraps ErrNoValidResult. When a candidate fails, the
// best of the results gathered so far is returned together with the error.
func Thresholds(ctx context.Context, series *dataset.Series, thresholds []float64, env Env) (*ThresholdOutcome, error) {
	if series == nil || len(series.Records) == 0 {
		return nil, fmt.Errorf("%w: empty series", dataset.ErrEmpty)
	}
	if len(thresholds) == 0 {
		return nil, fmt.Errorf("%w: no thresholds", ErrInvalidRange)
	}
	env = env.init()
	pol := string(series.Polarization)
	env.Logger = env.Logger.With(zap.String("polarization", pol))

	var (
		elevations = series.Elevations()
		ranges     = series.Ranges()
		units      = make([]int, len(thresholds))
		out        = &ThresholdOutcome{Polarization: series.Polarization, Dates: series.Dates()}
	)
	for i := range units {
		units[i] = i
	}
	env.Logger.Info("threshold sweep started",
		zap.Int("dates", len(ranges)),
		zap.Int("thresholds", len(thresholds)))

	runErr := pool.Run(ctx, env.Workers, units,
		func(_ context.Context, i int) (Result, error) {
			counts, err := area.CountBelowIn(series.Pixels, thresholds[i], ranges)
			if err != nil {
				return Result{}, err
			}
			return score(Result{
				Index:  i,
				Params: Params{Polarization: pol, Threshold: thresholds[i]},
				Areas:  counts,
			}, elevations)
		},
		func(r Result) error {
			out.Results = append(out.Results, r)
			env.observe(store.KindThreshold, r)
			return nil
		},
	)
	slices.SortFunc(out.Results, byIndex)
	if err := env.saveEvaluations(ctx, store.KindThreshold, out.Results); err != nil && runErr == nil {
		runErr = err
	}

	best, ok := Best(out.Results)
	if !ok {
		if runErr != nil {
			return out, runErr
		}
		return out, fmt.Errorf("%w: polarization %s over %d thresholds", ErrNoValidResult, pol, len(thresholds))
	}
	out.Best = best
	out.Decisions = make([][]bool, len(ranges))
	for d, r := range ranges {
		out.Decisions[d] = area.Below(series.Pixels[r.Start:r.End], best.Params.Threshold)
	}
	if runErr != nil {
		return out, runErr
	}

	env.Metrics.Best(string(store.KindThreshold), best.Coefficient)
	env.Logger.Info("threshold sweep done",
		zap.Float64("threshold", best.Params.Threshold),
		zap.Float64("coefficient", best.Coefficient))
	err := env.Store.SaveThresholdBest(ctx, store.ThresholdBest{
		Polarization: pol,
		Threshold:    best.Params.Threshold,
		Coefficient:  best.Coefficient,
		Dates:        out.Dates,
		Decisions:    out.Decisions,
	})
	if err != nil {
		return out, fmt.Errorf("failed to persist threshold best: %w", err)
	}
	return out, nil
}
