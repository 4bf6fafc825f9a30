package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/yyyoichi/floodsar/internal/config"
	"github.com/yyyoichi/floodsar/internal/mapper"
	"github.com/yyyoichi/floodsar/internal/observability"
	"github.com/yyyoichi/floodsar/internal/raster"
	"github.com/yyyoichi/floodsar/internal/report"
)

type mapFlags struct {
	base string
	k, m int
	auto bool
	out  string
}

func mapMain(ctx context.Context, args []string) error {
	var mf mapFlags
	cfg, err := loadConfig(args, func(fs *flag.FlagSet, cfg *config.Config) {
		bindStore(fs, cfg)
		fs.StringVar(&mf.base, "base", "", "map the best threshold of this polarization (VH or VV)")
		fs.IntVar(&mf.k, "k", 0, "class count of the clustering to map")
		fs.IntVar(&mf.m, "m", 0, "flood class count of the clustering to map")
		fs.BoolVar(&mf.auto, "auto", false, "map the best (k, m) of the last cluster sweep")
		fs.StringVar(&mf.out, "out", "masks", "output directory")
	})
	if err != nil {
		return err
	}
	if cfg.Store == config.StoreMemory {
		return fmt.Errorf("%w: masks need a persistent store", config.ErrInvalid)
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

	m := &mapper.Mapper{Store: st, OutDir: mf.out, Workers: cfg.Workers, Logger: logger}
	var paths []string
	switch {
	case mf.base != "":
		pol, err := raster.ParsePolarization(mf.base)
		if err != nil {
			return err
		}
		paths, err = m.Threshold(ctx, pol)
		if err != nil {
			return err
		}
	case mf.auto:
		if paths, err = m.Auto(ctx); err != nil {
			return err
		}
	case mf.k > 1 && mf.m >= 1 && mf.m < mf.k:
		if paths, err = m.Clusters(ctx, mf.k, mf.m); err != nil {
			return err
		}
	default:
		return errors.New("one of -base, -auto or -k with 1 <= -m < -k is required")
	}
	logger.Info("masks written", zap.Int("count", len(paths)), zap.String("dir", mf.out))
	return nil
}

func scanMain(_ context.Context, args []string) error {
	cfg, err := loadConfig(args, func(fs *flag.FlagSet, cfg *config.Config) {
		fs.StringVar(&cfg.Directory, "dir", cfg.Directory, "directory of raw SAR rasters")
		fs.StringVar(&cfg.Extension, "ext", cfg.Extension, "extension of raw SAR rasters")
	})
	if err != nil {
		return err
	}
	infos, err := raster.Scan(cfg.Directory, cfg.Extension)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tPOLARIZATION\tPATH")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Date, info.Polarization, info.Path)
	}
	return tw.Flush()
}

func reportMain(ctx context.Context, args []string) error {
	var out string
	cfg, err := loadConfig(args, func(fs *flag.FlagSet, cfg *config.Config) {
		bindStore(fs, cfg)
		fs.StringVar(&out, "out", "report", "output directory")
	})
	if err != nil {
		return err
	}
	if cfg.Store == config.StoreMemory {
		return fmt.Errorf("%w: reports need a persistent store", config.ErrInvalid)
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

	paths, err := (&report.Writer{Store: st, OutDir: out, Logger: logger}).Write(ctx)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}
