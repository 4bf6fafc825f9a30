// Package config holds the settings of a calibration run, read from a YAML
// file and overridden by command-line flags.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/yyyoichi/floodsar/internal/sweep"
)

var ErrInvalid = errors.New("invalid configuration")

const (
	Algorithm1D = "1D"
	Algorithm2D = "2D"

	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreDir    = "dir"
)

type Config struct {
	// Algorithm is 1D (threshold sweep per polarization) or 2D (k-means).
	Algorithm string `yaml:"algorithm"`
	Directory string `yaml:"directory"`
	Extension string `yaml:"extension"`
	CacheDir  string `yaml:"cache_dir"`
	// CacheOnly skips raster preparation and uses the cropped cache as is.
	CacheOnly bool   `yaml:"cache_only"`
	AOI       string `yaml:"aoi"`
	EPSG      string `yaml:"epsg"`

	Hydro       string `yaml:"hydro"`
	HydroFormat string `yaml:"hydro_format"`

	// Range is "start,end[,step]" of thresholds for 1D and "kMin,kMax" for 2D.
	Range         string  `yaml:"range"`
	Strategy      string  `yaml:"strategy"`
	MaxValue      string  `yaml:"max_value"`
	LogPower      bool    `yaml:"log_power"`
	MaxIterations int     `yaml:"max_iterations"`
	Fraction      float64 `yaml:"fraction"`
	Seed          int64   `yaml:"seed"`
	ReuseFits     bool    `yaml:"reuse_fits"`
	Strict        bool    `yaml:"strict"`
	Workers       int     `yaml:"workers"`

	Store   string `yaml:"store"`
	Metrics string `yaml:"metrics,omitempty"`
	// Report is the directory HTML charts and PNG plots are written into
	// after a calibration. Empty disables them.
	Report  string `yaml:"report,omitempty"`
	Debug   bool   `yaml:"debug"`
}

func Default() *Config {
	return &Config{
		Algorithm:     Algorithm1D,
		Directory:     ".",
		Extension:     ".tif",
		CacheDir:      ".floodsar-cache",
		HydroFormat:   "plain",
		Strategy:      "vv",
		MaxValue:      "none",
		MaxIterations: 10,
		Fraction:      1,
		Seed:          1, // floodsar.DefaultSeed
		Store:         StoreDir,
	}
}

// Load reads path over the defaults. Keys absent from the file keep their
// default value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalid, path, err)
	}
	return cfg, nil
}

// Validate checks the settings a calibrate run needs.
func (c *Config) Validate() error {
	var errs []error
	switch c.Algorithm {
	case Algorithm1D, Algorithm2D:
	default:
		errs = append(errs, fmt.Errorf("algorithm %q, want 1D or 2D", c.Algorithm))
	}
	if c.Hydro == "" {
		errs = append(errs, errors.New("hydro file is required"))
	}
	if c.Range == "" {
		errs = append(errs, errors.New("range is required"))
	} else if c.Algorithm == Algorithm1D {
		if _, err := c.Thresholds(); err != nil {
			errs = append(errs, err)
		}
	} else if _, err := c.Classes(); err != nil {
		errs = append(errs, err)
	}
	if !c.CacheOnly {
		if c.AOI == "" {
			errs = append(errs, errors.New("aoi is required unless cache_only is set"))
		}
		if c.EPSG == "" || strings.EqualFold(c.EPSG, "none") {
			errs = append(errs, errors.New("epsg is required unless cache_only is set"))
		}
	}
	if c.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("max_iterations %d, want at least 1", c.MaxIterations))
	}
	if !(c.Fraction > 0 && c.Fraction <= 1) {
		errs = append(errs, fmt.Errorf("fraction %v outside (0, 1]", c.Fraction))
	}
	if _, _, err := c.MaxValues(); err != nil {
		errs = append(errs, err)
	}
	switch c.Store {
	case StoreMemory, StoreSQLite, StoreDir:
	default:
		errs = append(errs, fmt.Errorf("store %q, want memory, sqlite or dir", c.Store))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func (c *Config) Thresholds() ([]float64, error) { return sweep.ParseThresholds(c.Range) }

func (c *Config) Classes() ([]int, error) { return sweep.ParseClasses(c.Range) }

// MaxValues parses MaxValue, "vv,vh", into clipping caps. "none" or an
// empty value disables clipping and yields NaN caps.
func (c *Config) MaxValues() (maxVV, maxVH float64, err error) {
	if c.MaxValue == "" || strings.EqualFold(c.MaxValue, "none") {
		return math.NaN(), math.NaN(), nil
	}
	v, err := sweep.ParseCSVFloat64s(c.MaxValue)
	if err != nil {
		return 0, 0, fmt.Errorf("max_value: %w", err)
	}
	if len(v) != 2 {
		return 0, 0, fmt.Errorf("max_value %q, want vv,vh", c.MaxValue)
	}
	return v[0], v[1], nil
}
