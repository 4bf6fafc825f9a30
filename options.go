package floodsar

import (
	"fmt"
	"math"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/yyyoichi/floodsar/internal/floodclass"
)

type Option func(*Calibrator) error

// DefaultSeed is the seed used without WithSeed. It matches the seed of the
// command-line configuration, so both produce the same fits.
const DefaultSeed int64 = 1

// WithSeed seeds the k-means initialisation and sampling. The fit for k uses
// seed+k, so results do not depend on the number of workers. Default
// DefaultSeed; 0 is a valid seed.
func WithSeed(seed int64) Option {
	return func(c *Calibrator) error {
		c.seed = seed
		return nil
	}
}

// WithMaxIterations bounds the k-means refinement iterations. Default 10.
func WithMaxIterations(n int) Option {
	return func(c *Calibrator) error {
		if n < 1 {
			return fmt.Errorf("%w: max iterations %d", ErrInvalidOption, n)
		}
		c.maxIterations = n
		return nil
	}
}

// WithSampleFraction fits k-means on a random fraction of the pixels (at
// least 100 of them). Every pixel is still labelled. Default 1.
func WithSampleFraction(f float64) Option {
	return func(c *Calibrator) error {
		if !(f > 0 && f <= 1) {
			return fmt.Errorf("%w: sample fraction %v outside (0, 1]", ErrInvalidOption, f)
		}
		c.fraction = f
		return nil
	}
}

// WithStrategy orders centroids for flood class selection: "vh", "vv" or
// "sum". Unknown names behave as "vv".
func WithStrategy(name string) Option {
	return func(c *Calibrator) error {
		c.strategy = floodclass.ParseStrategy(name)
		return nil
	}
}

// WithClip caps VV and VH intensities before clustering. A NaN cap leaves
// that band unchanged.
func WithClip(maxVV, maxVH float64) Option {
	return func(c *Calibrator) error {
		if math.IsNaN(maxVV) && math.IsNaN(maxVH) {
			c.clip = false
			return nil
		}
		c.clip = true
		c.maxVV, c.maxVH = maxVV, maxVH
		return nil
	}
}

// WithLogPower clusters on 10·log10 of the (clipped) intensities.
func WithLogPower(enabled bool) Option {
	return func(c *Calibrator) error {
		c.logPower = enabled
		return nil
	}
}

// WithWorkers sets the number of candidates evaluated concurrently.
// Default GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *Calibrator) error {
		if n < 1 {
			return fmt.Errorf("%w: workers %d", ErrInvalidOption, n)
		}
		c.workers = n
		return nil
	}
}

// WithStore persists results in s instead of a private in-memory store.
func WithStore(s Store) Option {
	return func(c *Calibrator) error {
		if s == nil {
			return fmt.Errorf("%w: nil store", ErrInvalidOption)
		}
		c.store = s
		return nil
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Calibrator) error {
		c.logger = l
		return nil
	}
}

// WithMetrics reports evaluations, fits and best coefficients to r.
func WithMetrics(r Recorder) Option {
	return func(c *Calibrator) error {
		c.metrics = r
		return nil
	}
}

// WithReuseFits loads stored k-means fits instead of refitting when they
// match the sample set.
func WithReuseFits(enabled bool) Option {
	return func(c *Calibrator) error {
		c.reuseFits = enabled
		return nil
	}
}

// WithStrictRowsPerDate makes builders reject dates whose pixel count
// differs from the first date instead of warning.
func WithStrictRowsPerDate(enabled bool) Option {
	return func(c *Calibrator) error {
		c.strict = enabled
		return nil
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(c *Calibrator) error {
		c.clock = clock
		return nil
	}
}
