package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/yyyoichi/floodsar/internal/kmeans"
)

// Dir stores every artifact as a msgpack file under a root directory:
//
//	runs/<id>.msgpack
//	kmeans/k<k>.msgpack
//	classes/k<k>_m<m>.msgpack
//	thresholds/<polarization>.msgpack
//	evaluations/<kind>.msgpack
//	best.msgpack
type Dir struct {
	root string
	mu   sync.Mutex
}

var _ Store = (*Dir)(nil)

type fitRecord struct {
	K         int               `msgpack:"k"`
	Centroids []kmeans.Centroid `msgpack:"centroids"`
	Labels    []byte            `msgpack:"labels"`
}

type thresholdRecord struct {
	Polarization string   `msgpack:"polarization"`
	Threshold    float64  `msgpack:"threshold"`
	Coefficient  float64  `msgpack:"coefficient"`
	Dates        []string `msgpack:"dates"`
	Lengths      []int    `msgpack:"lengths"`
	Decisions    []byte   `msgpack:"decisions"`
}

// NewDir creates root and its subdirectories if needed.
func NewDir(root string) (*Dir, error) {
	for _, sub := range []string{"runs", "kmeans", "classes", "thresholds", "evaluations"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	return &Dir{root: root}, nil
}

func (d *Dir) Root() string { return d.root }

func (d *Dir) write(rel string, v any) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", rel, err)
	}
	path := filepath.Join(d.root, rel)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (d *Dir) read(rel string, v any) error {
	data, err := os.ReadFile(filepath.Join(d.root, rel))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, rel)
	}
	if err != nil {
		return err
	}
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", rel, err)
	}
	return nil
}

func (d *Dir) SaveRun(_ context.Context, run Run) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.write(filepath.Join("runs", run.ID+".msgpack"), run)
}

func (d *Dir) LatestRun(_ context.Context, algorithm string) (Run, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entries, err := os.ReadDir(filepath.Join(d.root, "runs"))
	if err != nil {
		return Run{}, err
	}
	var latest Run
	found := false
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".msgpack") {
			continue
		}
		var r Run
		if err := d.read(filepath.Join("runs", e.Name()), &r); err != nil {
			return Run{}, err
		}
		if !matchesAlgorithm(r, algorithm) {
			continue
		}
		if !found || !r.StartedAt.Before(latest.StartedAt) {
			latest, found = r, true
		}
	}
	if !found {
		return Run{}, fmt.Errorf("%w: run %s", ErrNotFound, algorithm)
	}
	return latest, nil
}

func fitPath(k int) string { return filepath.Join("kmeans", fmt.Sprintf("k%d.msgpack", k)) }

func (d *Dir) SaveFit(_ context.Context, fit Fit) error {
	rec := fitRecord{K: fit.K, Centroids: fit.Centroids, Labels: PackInts(fit.Labels)}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.write(fitPath(fit.K), rec)
}

func (d *Dir) LoadFit(_ context.Context, k int) (Fit, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var rec fitRecord
	if err := d.read(fitPath(k), &rec); err != nil {
		return Fit{}, err
	}
	labels, err := UnpackInts(rec.Labels)
	if err != nil {
		return Fit{}, err
	}
	return Fit{K: rec.K, Centroids: rec.Centroids, Labels: labels}, nil
}

func classesPath(k, m int) string {
	return filepath.Join("classes", fmt.Sprintf("k%d_m%d.msgpack", k, m))
}

func (d *Dir) SaveFloodClasses(_ context.Context, fc FloodClasses) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.write(classesPath(fc.K, fc.M), fc)
}

func (d *Dir) LoadFloodClasses(_ context.Context, k, m int) (FloodClasses, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var fc FloodClasses
	err := d.read(classesPath(k, m), &fc)
	return fc, err
}

func (d *Dir) SaveClusterBest(_ context.Context, best ClusterBest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.write("best.msgpack", best)
}

func (d *Dir) LoadClusterBest(context.Context) (ClusterBest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var best ClusterBest
	err := d.read("best.msgpack", &best)
	return best, err
}

func (d *Dir) SaveThresholdBest(_ context.Context, best ThresholdBest) error {
	rec := thresholdRecord{
		Polarization: best.Polarization,
		Threshold:    best.Threshold,
		Coefficient:  best.Coefficient,
		Dates:        best.Dates,
	}
	rec.Lengths, rec.Decisions = PackDecisions(best.Decisions)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.write(filepath.Join("thresholds", best.Polarization+".msgpack"), rec)
}

func (d *Dir) LoadThresholdBest(_ context.Context, pol string) (ThresholdBest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var rec thresholdRecord
	if err := d.read(filepath.Join("thresholds", pol+".msgpack"), &rec); err != nil {
		return ThresholdBest{}, err
	}
	decisions, err := UnpackDecisions(rec.Lengths, rec.Decisions)
	if err != nil {
		return ThresholdBest{}, err
	}
	return ThresholdBest{
		Polarization: rec.Polarization,
		Threshold:    rec.Threshold,
		Coefficient:  rec.Coefficient,
		Dates:        rec.Dates,
		Decisions:    decisions,
	}, nil
}

func evaluationsPath(kind Kind) string {
	return filepath.Join("evaluations", string(kind)+".msgpack")
}

func (d *Dir) SaveEvaluations(_ context.Context, evals []Evaluation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	byKind := map[Kind][]Evaluation{}
	for _, e := range evals {
		byKind[e.Kind] = append(byKind[e.Kind], e)
	}
	for kind, batch := range byKind {
		var existing []Evaluation
		if err := d.read(evaluationsPath(kind), &existing); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		index := make(map[string]int, len(existing))
		for i, e := range existing {
			index[e.key()] = i
		}
		for _, e := range batch {
			e = normalize(e)
			if i, ok := index[e.key()]; ok {
				existing[i] = e
				continue
			}
			index[e.key()] = len(existing)
			existing = append(existing, e)
		}
		sortEvaluations(existing)
		if err := d.write(evaluationsPath(kind), existing); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dir) Evaluations(_ context.Context, kind Kind) ([]Evaluation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var evals []Evaluation
	if err := d.read(evaluationsPath(kind), &evals); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return evals, nil
}

func (d *Dir) Close() error { return nil }
