// Command floodsar calibrates SAR flood detection against a gauge series and
// maps the calibrated flood extent.
//
// Usage:
//
//	floodsar calibrate -config floodsar.yaml
//	floodsar calibrate -algorithm 2D -hydro gauge.csv -range 2,8 -cache-only
//	floodsar map -auto -out masks
//	floodsar map -base VH -out masks
//	floodsar scan -dir data
//	floodsar report -out report
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/yyyoichi/floodsar/internal/config"
	"github.com/yyyoichi/floodsar/internal/store"
)

var commands = map[string]func(ctx context.Context, args []string) error{
	"calibrate": calibrateMain,
	"map":       mapMain,
	"scan":      scanMain,
	"report":    reportMain,
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := cmd(ctx, os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "floodsar %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: floodsar <calibrate|map|scan|report> [flags]")
}

// loadConfig parses args twice: once to find -config, then over the file
// values so flags given on the command line win.
func loadConfig(args []string, bind func(fs *flag.FlagSet, cfg *config.Config)) (*config.Config, error) {
	path, err := configPath(args)
	if err != nil {
		return nil, err
	}
	cfg := config.Default()
	if path != "" {
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	fs := flag.NewFlagSet(filepath.Base(os.Args[0]), flag.ContinueOnError)
	fs.String("config", path, "YAML configuration file")
	bind(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configPath(args []string) (string, error) {
	for i, a := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "config" {
			continue
		}
		if hasValue {
			return value, nil
		}
		if i+1 >= len(args) {
			return "", errors.New("flag needs an argument: -config")
		}
		return args[i+1], nil
	}
	return "", nil
}

// bindStore registers the flags every command reading results needs.
func bindStore(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "cache directory holding aligned rasters and results")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "result store: memory, sqlite or dir")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent workers (0 means GOMAXPROCS)")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "debug logging")
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return store.NewMemory(), nil
	case config.StoreSQLite:
		if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
			return nil, err
		}
		return store.OpenSQLite(filepath.Join(cfg.CacheDir, "floodsar.db"))
	case config.StoreDir:
		return store.NewDir(filepath.Join(cfg.CacheDir, "results"))
	}
	return nil, fmt.Errorf("%w: store %q", config.ErrInvalid, cfg.Store)
}
