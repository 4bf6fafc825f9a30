package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Memory keeps everything in process memory. The zero value is not usable;
// use NewMemory.
type Memory struct {
	mu          sync.RWMutex
	runs        []Run
	fits        map[int]Fit
	classes     map[[2]int]FloodClasses
	clusterBest *ClusterBest
	thresholds  map[string]ThresholdBest
	evals       map[string]Evaluation
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		fits:       map[int]Fit{},
		classes:    map[[2]int]FloodClasses{},
		thresholds: map[string]ThresholdBest{},
		evals:      map[string]Evaluation{},
	}
}

func (m *Memory) SaveRun(_ context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.Dates = slices.Clone(run.Dates)
	run.Elevations = slices.Clone(run.Elevations)
	if i := slices.IndexFunc(m.runs, func(r Run) bool { return r.ID == run.ID }); i >= 0 {
		m.runs[i] = run
		return nil
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *Memory) LatestRun(_ context.Context, algorithm string) (Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest Run
	found := false
	for _, r := range m.runs {
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

func (m *Memory) SaveFit(_ context.Context, fit Fit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fit.Centroids = slices.Clone(fit.Centroids)
	fit.Labels = slices.Clone(fit.Labels)
	m.fits[fit.K] = fit
	return nil
}

func (m *Memory) LoadFit(_ context.Context, k int) (Fit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fit, ok := m.fits[k]
	if !ok {
		return Fit{}, fmt.Errorf("%w: fit k=%d", ErrNotFound, k)
	}
	fit.Centroids = slices.Clone(fit.Centroids)
	fit.Labels = slices.Clone(fit.Labels)
	return fit, nil
}

func (m *Memory) SaveFloodClasses(_ context.Context, fc FloodClasses) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fc.Labels = slices.Clone(fc.Labels)
	m.classes[[2]int{fc.K, fc.M}] = fc
	return nil
}

func (m *Memory) LoadFloodClasses(_ context.Context, k, mm int) (FloodClasses, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fc, ok := m.classes[[2]int{k, mm}]
	if !ok {
		return FloodClasses{}, fmt.Errorf("%w: flood classes k=%d m=%d", ErrNotFound, k, mm)
	}
	fc.Labels = slices.Clone(fc.Labels)
	return fc, nil
}

func (m *Memory) SaveClusterBest(_ context.Context, best ClusterBest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clusterBest = &best
	return nil
}

func (m *Memory) LoadClusterBest(context.Context) (ClusterBest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.clusterBest == nil {
		return ClusterBest{}, fmt.Errorf("%w: cluster best", ErrNotFound)
	}
	return *m.clusterBest, nil
}

func (m *Memory) SaveThresholdBest(_ context.Context, best ThresholdBest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thresholds[best.Polarization] = cloneThresholdBest(best)
	return nil
}

func (m *Memory) LoadThresholdBest(_ context.Context, pol string) (ThresholdBest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	best, ok := m.thresholds[pol]
	if !ok {
		return ThresholdBest{}, fmt.Errorf("%w: threshold best %s", ErrNotFound, pol)
	}
	return cloneThresholdBest(best), nil
}

func (m *Memory) SaveEvaluations(_ context.Context, evals []Evaluation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range evals {
		e.Areas = slices.Clone(e.Areas)
		m.evals[e.key()] = normalize(e)
	}
	return nil
}

func (m *Memory) Evaluations(_ context.Context, kind Kind) ([]Evaluation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Evaluation
	for _, e := range m.evals {
		if e.Kind == kind {
			e.Areas = slices.Clone(e.Areas)
			out = append(out, e)
		}
	}
	sortEvaluations(out)
	return out, nil
}

func (m *Memory) Close() error { return nil }

func cloneThresholdBest(b ThresholdBest) ThresholdBest {
	b.Dates = slices.Clone(b.Dates)
	decisions := make([][]bool, len(b.Decisions))
	for i, d := range b.Decisions {
		decisions[i] = slices.Clone(d)
	}
	b.Decisions = decisions
	return b
}
