// Package store persists the artifacts of a calibration run: fitted
// clusters per k, flood classes per (k, m), sweep evaluations and the best
// configurations.
package store

import (
	"cmp"
	"context"
	"errors"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/yyyoichi/floodsar/internal/kmeans"
)

var ErrNotFound = errors.New("not found")

// Algorithms a run is recorded under.
const (
	AlgorithmThreshold = "1D"
	AlgorithmCluster   = "2D"
)

// Run describes one calibration run.
type Run struct {
	ID          string    `msgpack:"id"`
	Algorithm   string    `msgpack:"algorithm"`
	Seed        int64     `msgpack:"seed"`
	StartedAt   time.Time `msgpack:"started_at"`
	FinishedAt  time.Time `msgpack:"finished_at"`
	Dates       []string  `msgpack:"dates"`
	Elevations  []float64 `msgpack:"elevations"`
	Width       int       `msgpack:"width"`
	Height      int       `msgpack:"height"`
	RowsPerDate int       `msgpack:"rows_per_date"`
}

// NewRun starts a run record stamped by clock.
func NewRun(clock clockwork.Clock, algorithm string, seed int64) Run {
	return Run{
		ID:        uuid.NewString(),
		Algorithm: algorithm,
		Seed:      seed,
		StartedAt: clock.Now().UTC(),
	}
}

// Fit is the clustering of all sample pixels for one class count.
type Fit struct {
	K         int               `msgpack:"k"`
	Centroids []kmeans.Centroid `msgpack:"centroids"`
	Labels    []int             `msgpack:"labels"`
}

// FloodClasses are the labels selected as flooded for (K, M).
type FloodClasses struct {
	K      int   `msgpack:"k"`
	M      int   `msgpack:"m"`
	Labels []int `msgpack:"labels"`
}

type ClusterBest struct {
	K           int     `msgpack:"k"`
	M           int     `msgpack:"m"`
	Coefficient float64 `msgpack:"coefficient"`
}

// ThresholdBest is the best threshold of one polarization with the per-pixel
// flood decisions of every date at that threshold.
type ThresholdBest struct {
	Polarization string   `msgpack:"polarization"`
	Threshold    float64  `msgpack:"threshold"`
	Coefficient  float64  `msgpack:"coefficient"`
	Dates        []string `msgpack:"dates"`
	// Decisions[d][p] reports whether pixel p of Dates[d] is flooded.
	Decisions    [][]bool `msgpack:"-"`
}

type Kind string

const (
	KindThreshold Kind = "threshold"
	KindCluster   Kind = "cluster"
)

// Evaluation is the score of one candidate configuration.
type Evaluation struct {
	Kind         Kind    `msgpack:"kind"`
	Polarization string  `msgpack:"polarization,omitempty"`
	Threshold    float64 `msgpack:"threshold,omitempty"`
	K            int     `msgpack:"k,omitempty"`
	M            int     `msgpack:"m,omitempty"`
	Coefficient  float64 `msgpack:"coefficient"`
	Defined      bool    `msgpack:"defined"`
	Areas        []int   `msgpack:"areas"`
}

func (e Evaluation) key() string {
	return string(e.Kind) + "/" + e.Polarization + "/" +
		strconv.FormatFloat(e.Threshold, 'g', -1, 64) + "/" +
		strconv.Itoa(e.K) + "/" + strconv.Itoa(e.M)
}

// Store is implemented by Memory, Dir and SQLite.
type Store interface {
	SaveRun(ctx context.Context, run Run) error
	// LatestRun returns the most recently started run of algorithm, or of
	// any algorithm when it is empty.
	LatestRun(ctx context.Context, algorithm string) (Run, error)

	SaveFit(ctx context.Context, fit Fit) error
	LoadFit(ctx context.Context, k int) (Fit, error)
	SaveFloodClasses(ctx context.Context, fc FloodClasses) error
	LoadFloodClasses(ctx context.Context, k, m int) (FloodClasses, error)

	SaveClusterBest(ctx context.Context, best ClusterBest) error
	LoadClusterBest(ctx context.Context) (ClusterBest, error)
	SaveThresholdBest(ctx context.Context, best ThresholdBest) error
	LoadThresholdBest(ctx context.Context, polarization string) (ThresholdBest, error)

	// SaveEvaluations upserts evaluations keyed by their parameters.
	SaveEvaluations(ctx context.Context, evals []Evaluation) error
	// Evaluations lists one kind ordered by polarization, threshold, k and
	// descending m.
	Evaluations(ctx context.Context, kind Kind) ([]Evaluation, error)

	Close() error
}

func matchesAlgorithm(r Run, algorithm string) bool {
	return algorithm == "" || r.Algorithm == algorithm
}

func sortEvaluations(evals []Evaluation) {
	slices.SortFunc(evals, func(a, b Evaluation) int {
		return cmp.Or(
			cmp.Compare(a.Polarization, b.Polarization),
			cmp.Compare(a.Threshold, b.Threshold),
			cmp.Compare(a.K, b.K),
			cmp.Compare(b.M, a.M),
		)
	})
}

func normalize(e Evaluation) Evaluation {
	if !e.Defined {
		e.Coefficient = math.NaN()
	}
	return e
}
