package sweep

import (
	"context"
	"errors"
	"math"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/yyyoichi/floodsar/internal/correlation"
	"github.com/yyyoichi/floodsar/internal/store"
)

// Env carries the collaborators shared by both sweeps. The zero value runs
// on GOMAXPROCS workers with a private in-memory store and no logging.
type Env struct {
	Workers int
	Store   store.Store
	Logger  *zap.Logger
	Metrics Recorder
	Clock   clockwork.Clock
}

func (e Env) init() Env {
	if e.Store == nil {
		e.Store = store.NewMemory()
	}
	if e.Logger == nil {
		e.Logger = zap.NewNop()
	}
	if e.Metrics == nil {
		e.Metrics = nopRecorder{}
	}
	if e.Clock == nil {
		e.Clock = clockwork.NewRealClock()
	}
	return e
}

// observe logs and counts one evaluated candidate.
func (e Env) observe(kind store.Kind, r Result) {
	e.Metrics.Evaluated(string(kind), r.Defined)
	fields := append(r.Params.fields(kind), zap.Ints("areas", r.Areas))
	if !r.Defined {
		e.Logger.Warn("correlation undefined", fields...)
		return
	}
	e.Logger.Debug("candidate evaluated", append(fields, zap.Float64("coefficient", r.Coefficient))...)
}

func (e Env) saveEvaluations(ctx context.Context, kind store.Kind, results []Result) error {
	evals := make([]store.Evaluation, len(results))
	for i, r := range results {
		evals[i] = store.Evaluation{
			Kind:         kind,
			Polarization: r.Params.Polarization,
			Threshold:    r.Params.Threshold,
			K:            r.Params.K,
			M:            r.Params.M,
			Coefficient:  r.Coefficient,
			Defined:      r.Defined,
			Areas:        r.Areas,
		}
	}
	return e.Store.SaveEvaluations(ctx, evals)
}

func (p Params) fields(kind store.Kind) []zap.Field {
	if kind == store.KindThreshold {
		return []zap.Field{zap.String("polarization", p.Polarization), zap.Float64("threshold", p.Threshold)}
	}
	return []zap.Field{zap.Int("k", p.K), zap.Int("m", p.M)}
}

// score correlates r.Areas with the elevations. Zero variance marks the
// result undefined; any other failure is a contract error.
func score(r Result, elevations []float64) (Result, error) {
	coefficient, err := correlation.Pearson(r.Areas, elevations)
	switch {
	case err == nil:
		r.Coefficient, r.Defined = coefficient, true
	case errors.Is(err, correlation.ErrUndefined):
		r.Coefficient, r.Defined = math.NaN(), false
	default:
		return Result{}, err
	}
	return r, nil
}

func byIndex(a, b Result) int { return a.Index - b.Index }
