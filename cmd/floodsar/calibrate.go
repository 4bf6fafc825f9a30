package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/yyyoichi/floodsar"
	"github.com/yyyoichi/floodsar/internal/config"
	"github.com/yyyoichi/floodsar/internal/hydro"
	"github.com/yyyoichi/floodsar/internal/observability"
	"github.com/yyyoichi/floodsar/internal/raster"
	"github.com/yyyoichi/floodsar/internal/report"
)

func bindCalibrate(fs *flag.FlagSet, cfg *config.Config) {
	bindStore(fs, cfg)
	fs.StringVar(&cfg.Algorithm, "algorithm", cfg.Algorithm, "1D (threshold sweep) or 2D (k-means sweep)")
	fs.StringVar(&cfg.Hydro, "hydro", cfg.Hydro, "CSV file of gauge observations")
	fs.StringVar(&cfg.HydroFormat, "hydro-format", cfg.HydroFormat, "plain (date,value) or hydrological (year,month,day,value)")
	fs.StringVar(&cfg.Range, "range", cfg.Range, "thresholds start,end[,step] for 1D or kMin,kMax for 2D")
	fs.StringVar(&cfg.Directory, "dir", cfg.Directory, "directory of raw SAR rasters")
	fs.StringVar(&cfg.Extension, "ext", cfg.Extension, "extension of raw SAR rasters")
	fs.StringVar(&cfg.AOI, "aoi", cfg.AOI, "raster or vector file bounding the area of interest")
	fs.StringVar(&cfg.EPSG, "epsg", cfg.EPSG, "target EPSG code, e.g. 32630")
	fs.BoolVar(&cfg.CacheOnly, "cache-only", cfg.CacheOnly, "skip raster preparation and use the aligned rasters in the cache")
	fs.BoolVar(&cfg.ReuseFits, "reuse-fits", cfg.ReuseFits, "reuse stored k-means fits that match the sample set")
	fs.StringVar(&cfg.Strategy, "strategy", cfg.Strategy, "flood class ordering: vh, vv or sum")
	fs.StringVar(&cfg.MaxValue, "max-value", cfg.MaxValue, "clip caps vv,vh or none")
	fs.BoolVar(&cfg.LogPower, "log-power", cfg.LogPower, "cluster on decibels")
	fs.IntVar(&cfg.MaxIterations, "maxiter", cfg.MaxIterations, "k-means iterations")
	fs.Float64Var(&cfg.Fraction, "fraction", cfg.Fraction, "fraction of pixels used to fit k-means")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	fs.BoolVar(&cfg.Strict, "strict", cfg.Strict, "reject dates whose raster size differs from the first date")
	fs.StringVar(&cfg.Metrics, "metrics", cfg.Metrics, "write Prometheus metrics to this textfile")
	fs.StringVar(&cfg.Report, "report", cfg.Report, "write HTML charts and PNG plots into this directory")
}

func calibrateMain(ctx context.Context, args []string) error {
	cfg, err := loadConfig(args, bindCalibrate)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := observability.NewLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	defer func() {
		if cfg.Metrics == "" {
			return
		}
		if err := metrics.WriteTextfile(cfg.Metrics); err != nil {
			logger.Error("failed to write metrics", zap.String("path", cfg.Metrics), zap.Error(err))
		}
	}()

	obs, err := hydro.ReadFile(cfg.Hydro, hydro.Format(cfg.HydroFormat))
	if err != nil {
		return err
	}
	logger.Info("observations loaded", zap.String("path", cfg.Hydro), zap.Int("dates", len(obs)))

	if !cfg.CacheOnly {
		if err := prepare(ctx, cfg, logger); err != nil {
			return err
		}
	}

	maxVV, maxVH, _ := cfg.MaxValues()
	opts := []floodsar.Option{
		floodsar.WithSeed(cfg.Seed),
		floodsar.WithMaxIterations(cfg.MaxIterations),
		floodsar.WithSampleFraction(cfg.Fraction),
		floodsar.WithStrategy(cfg.Strategy),
		floodsar.WithClip(maxVV, maxVH),
		floodsar.WithLogPower(cfg.LogPower),
		floodsar.WithReuseFits(cfg.ReuseFits),
		floodsar.WithStrictRowsPerDate(cfg.Strict),
		floodsar.WithStore(st),
		floodsar.WithLogger(logger),
		floodsar.WithMetrics(metrics),
	}
	if cfg.Workers > 0 {
		opts = append(opts, floodsar.WithWorkers(cfg.Workers))
	}
	c, err := floodsar.New(opts...)
	if err != nil {
		return err
	}
	builder := c.NewBuilder(raster.Catalog{Dir: filepath.Join(cfg.CacheDir, raster.CroppedDir)}, raster.DefaultReader())

	var samples *floodsar.SampleSet
	switch cfg.Algorithm {
	case config.Algorithm1D:
		thresholds, _ := cfg.Thresholds()
		var errs []error
		for _, pol := range raster.Polarizations {
			series, err := builder.Series(obs, pol)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			out, err := c.SweepThresholds(ctx, series, thresholds)
			if out != nil && out.Best.Defined {
				fmt.Printf("%s threshold=%g coefficient=%.6f\n", pol, out.Best.Params.Threshold, out.Best.Coefficient)
			}
			if err != nil {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			return err
		}
	case config.Algorithm2D:
		ks, _ := cfg.Classes()
		set, err := builder.SampleSet(obs)
		if err != nil {
			return err
		}
		out, err := c.SweepClusters(ctx, set, ks[0], ks[len(ks)-1])
		if out != nil && out.Best.Defined {
			fmt.Printf("k=%d m=%d coefficient=%.6f\n", out.Best.Params.K, out.Best.Params.M, out.Best.Coefficient)
		}
		if err != nil {
			return err
		}
		samples = c.Preprocess(set)
	}

	if cfg.Report != "" {
		w := &report.Writer{Store: st, OutDir: cfg.Report, Samples: samples, Logger: logger}
		if _, err := w.Write(ctx); err != nil {
			return err
		}
	}
	return nil
}

// prepare aligns the raw rasters of cfg.Directory into the cache.
func prepare(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	infos, err := raster.Scan(cfg.Directory, cfg.Extension)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		return fmt.Errorf("no %s rasters found in %s", cfg.Extension, cfg.Directory)
	}
	srs := cfg.EPSG
	if !strings.Contains(srs, ":") {
		srs = "EPSG:" + srs
	}
	p := &raster.Preparer{
		Tools:    raster.NewGDALTools(nil),
		CacheDir: cfg.CacheDir,
		SRS:      srs,
		Workers:  cfg.Workers,
		Logger:   logger,
	}
	_, err = p.Prepare(ctx, infos, cfg.AOI)
	return err
}
