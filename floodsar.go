// Package floodsar calibrates flood detection on SAR backscatter against a
// hydrological series: it sweeps intensity thresholds or k-means class
// counts and keeps the configuration whose per-date flooded area correlates
// best with the gauge.
package floodsar

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/yyyoichi/floodsar/internal/dataset"
	"github.com/yyyoichi/floodsar/internal/floodclass"
	"github.com/yyyoichi/floodsar/internal/raster"
	"github.com/yyyoichi/floodsar/internal/store"
	"github.com/yyyoichi/floodsar/internal/sweep"
)

var (
	ErrInvalidOption = errors.New("invalid calibration option")
)

type (
	DateRecord       = dataset.DateRecord
	Series           = dataset.Series
	SampleSet        = dataset.SampleSet
	Result           = sweep.Result
	ThresholdOutcome = sweep.ThresholdOutcome
	ClusterOutcome   = sweep.ClusterOutcome
	Store            = store.Store
	Recorder         = sweep.Recorder
	Polarization     = raster.Polarization
	Lookup           = dataset.Lookup
	PixelReader      = raster.PixelReader
)

const (
	VH = raster.VH
	VV = raster.VV
)

// SweepThresholds runs a threshold sweep with the specified options.
// This is a convenience function that creates a Calibrator and calls its SweepThresholds method.
func SweepThresholds(ctx context.Context, series *Series, thresholds []float64, opts ...Option) (*ThresholdOutcome, error) {
	c, err := New(opts...)
	if err != nil {
		return nil, err
	}
	return c.SweepThresholds(ctx, series, thresholds)
}

// SweepClusters runs a cluster sweep over k in [kMin, kMax] with the specified options.
// This is a convenience function that creates a Calibrator and calls its SweepClusters method.
func SweepClusters(ctx context.Context, samples *SampleSet, kMin, kMax int, opts ...Option) (*ClusterOutcome, error) {
	c, err := New(opts...)
	if err != nil {
		return nil, err
	}
	return c.SweepClusters(ctx, samples, kMin, kMax)
}

// NewSeries builds a single-polarization series from per-date pixels.
func NewSeries(pol Polarization, dates []string, elevations []float64, pixels [][]float64) (*Series, error) {
	return dataset.NewSeries(pol, dates, elevations, pixels)
}

// NewSampleSet builds a dual-polarization sample set from per-date pixels.
func NewSampleSet(dates []string, elevations []float64, vh, vv [][]float64) (*SampleSet, error) {
	return dataset.NewSampleSet(dates, elevations, vh, vv)
}

// ThresholdRange returns start, start+step, ... up to and including end.
func ThresholdRange(start, end, step float64) ([]float64, error) {
	return sweep.ThresholdRange(start, end, step)
}

type Calibrator struct {
	seed          int64
	maxIterations int
	fraction      float64
	strategy      floodclass.Strategy
	clip          bool
	maxVV, maxVH  float64
	logPower      bool
	reuseFits     bool
	strict        bool
	workers       int
	store         store.Store
	logger        *zap.Logger
	metrics       Recorder
	clock         clockwork.Clock
}

// New initializes a Calibrator. For default values, refer to the init function.
func New(opts ...Option) (*Calibrator, error) {
	c := new(Calibrator)
	if err := c.init(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

// SweepThresholds scores every threshold on the series and persists the
// evaluations, the best threshold with its per-pixel decisions and a run
// record describing the series.
//
// The outcome is returned together with any error so that the best valid
// threshold found before a failure is still available.
func (c *Calibrator) SweepThresholds(ctx context.Context, series *Series, thresholds []float64) (*ThresholdOutcome, error) {
	run := store.NewRun(c.clock, store.AlgorithmThreshold, c.seed)
	if series != nil {
		run.Dates = series.Dates()
		run.Elevations = series.Elevations()
		run.Width, run.Height = series.Width, series.Height
		if r := series.Ranges(); len(r) > 0 {
			run.RowsPerDate = r[0].Len()
		}
	}
	out, err := sweep.Thresholds(ctx, series, thresholds, c.env())
	if out == nil {
		return nil, err
	}
	return out, c.finish(ctx, run, err)
}

// SweepClusters clips and optionally log-transforms the samples, then fits
// k-means for every k in [kMin, kMax] (k=1 is skipped) and scores every
// flood class count. Fits, flood classes, evaluations, the best (k, m) and a
// run record are persisted.
//
// The outcome is returned together with any error so that the best valid
// (k, m) found before a failure is still available.
func (c *Calibrator) SweepClusters(ctx context.Context, samples *SampleSet, kMin, kMax int) (*ClusterOutcome, error) {
	ks, err := sweep.ClassRange(kMin, kMax)
	if err != nil {
		return nil, err
	}
	if samples == nil || samples.Len() == 0 {
		return nil, fmt.Errorf("%w: empty sample set", dataset.ErrEmpty)
	}
	set := c.Preprocess(samples)

	run := store.NewRun(c.clock, store.AlgorithmCluster, c.seed)
	run.Dates = set.Dates()
	run.Elevations = set.Elevations()
	run.Width, run.Height, run.RowsPerDate = set.Width, set.Height, set.RowsPerDate

	out, err := sweep.Clusters(ctx, set, ks, sweep.ClusterConfig{
		MaxIterations: c.maxIterations,
		Fraction:      c.fraction,
		Strategy:      c.strategy,
		Seed:          c.seed,
		ReuseFits:     c.reuseFits,
	}, c.env())
	if out == nil {
		return nil, err
	}
	return out, c.finish(ctx, run, err)
}

// Preprocess applies the clipping and log-power transform of c to a copy of
// samples. It is what SweepClusters fits on.
func (c *Calibrator) Preprocess(samples *SampleSet) *SampleSet {
	set := samples
	if c.clip {
		set = set.Clip(c.maxVV, c.maxVH)
	}
	if c.logPower {
		set = set.LogPower()
	}
	return set
}

// NewBuilder returns a dataset builder sharing the logger and strictness of c.
func (c *Calibrator) NewBuilder(catalog Lookup, reader PixelReader) *dataset.Builder {
	return &dataset.Builder{Catalog: catalog, Reader: reader, Logger: c.logger, Strict: c.strict}
}

// Store returns the store results are persisted in.
func (c *Calibrator) Store() Store { return c.store }

func (c *Calibrator) env() sweep.Env {
	return sweep.Env{
		Workers: c.workers,
		Store:   c.store,
		Logger:  c.logger,
		Metrics: c.metrics,
		Clock:   c.clock,
	}
}

// finish persists the run of a sweep that got past input validation.
func (c *Calibrator) finish(ctx context.Context, run store.Run, sweepErr error) error {
	run.FinishedAt = c.clock.Now().UTC()
	if err := c.store.SaveRun(ctx, run); err != nil {
		c.logger.Error("failed to persist run", zap.String("run", run.ID), zap.Error(err))
		return errors.Join(sweepErr, fmt.Errorf("failed to persist run: %w", err))
	}
	c.logger.Info("run finished",
		zap.String("run", run.ID),
		zap.String("algorithm", run.Algorithm),
		zap.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)))
	return sweepErr
}

func (c *Calibrator) init(opts ...Option) error {
	c.seed = DefaultSeed
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	if c.maxIterations == 0 {
		c.maxIterations = 10
	}
	if c.fraction == 0 {
		c.fraction = 1
	}
	if c.strategy == "" {
		c.strategy = floodclass.VV
	}
	if !c.clip {
		c.maxVV, c.maxVH = math.NaN(), math.NaN()
	}
	if c.workers == 0 {
		c.workers = runtime.GOMAXPROCS(0)
	}
	if c.store == nil {
		c.store = store.NewMemory()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	return nil
}
