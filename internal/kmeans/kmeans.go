package kmeans

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"slices"
)

var ErrInvalidInput = errors.New("invalid clustering input")

// MinSampleSize is the floor applied to the working subset when only a
// fraction of the points is used for fitting.
const MinSampleSize = 100

// Centroid is a cluster center in (VH, VV) space. Labels start at 1.
type Centroid struct {
	VH    float64 `msgpack:"vh"`
	VV    float64 `msgpack:"vv"`
	Label int     `msgpack:"label"`
}

// Defined reports whether the centroid has finite coordinates. A centroid
// becomes undefined when its cluster lost every point during fitting.
func (c Centroid) Defined() bool {
	return !math.IsNaN(c.VH) && !math.IsNaN(c.VV)
}

type Result struct {
	Centroids []Centroid
	// Labels holds one label in [1, k] per input point.
	Labels     []int
	Iterations int
	Converged  bool
	SampleSize int
	// Empty lists the labels whose cluster had no points at the last
	// centroid update.
	Empty []int
}

// Fit clusters the index-aligned VH/VV points into k clusters.
//
// Initial centroids are k points drawn with replacement from the whole
// population. Fitting runs on a working subset of floor(fraction·N) points
// drawn without replacement (at least min(MinSampleSize, N)), stops after
// maxIterations passes or once no label changes, and finishes with one
// labeling pass over all N points.
func Fit(vh, vv []float64, k, maxIterations int, fraction float64, rd *rand.Rand) (*Result, error) {
	switch {
	case len(vh) != len(vv):
		return nil, fmt.Errorf("%w: %d VH and %d VV points", ErrInvalidInput, len(vh), len(vv))
	case len(vh) == 0:
		return nil, fmt.Errorf("%w: no points", ErrInvalidInput)
	case k < 2:
		return nil, fmt.Errorf("%w: k=%d, need at least 2 classes", ErrInvalidInput, k)
	case maxIterations < 1:
		return nil, fmt.Errorf("%w: maxIterations=%d", ErrInvalidInput, maxIterations)
	case !(fraction > 0 && fraction <= 1):
		return nil, fmt.Errorf("%w: sample fraction %v outside (0, 1]", ErrInvalidInput, fraction)
	}
	n := len(vh)

	subset := sample(n, fraction, rd)
	centroids := make([]Centroid, k)
	for j := range centroids {
		i := rd.Intn(n)
		centroids[j] = Centroid{VH: vh[i], VV: vv[i], Label: j + 1}
	}

	var (
		res      = &Result{SampleSize: len(subset)}
		assigned = make([]int, len(subset))
		stores   = make([]AverageStore, k)
	)
	for iter := range maxIterations {
		res.Iterations = iter + 1
		changed := false
		for s, i := range subset {
			label := nearest(centroids, vh[i], vv[i])
			if assigned[s] != label {
				assigned[s] = label
				changed = true
			}
		}
		if !changed {
			res.Converged = true
			break
		}

		for j := range stores {
			stores[j].Reset()
		}
		for s, i := range subset {
			stores[assigned[s]-1].Add(vh[i], vv[i])
		}
		res.Empty = res.Empty[:0]
		for j := range centroids {
			if stores[j].Count() == 0 {
				res.Empty = append(res.Empty, j+1)
			}
			centroids[j].VH, centroids[j].VV = stores[j].Average()
		}
	}

	res.Labels = Assign(centroids, vh, vv)
	res.Centroids = centroids
	return res, nil
}

// Assign labels every point with its nearest centroid.
func Assign(centroids []Centroid, vh, vv []float64) []int {
	labels := make([]int, len(vh))
	for i := range labels {
		labels[i] = nearest(centroids, vh[i], vv[i])
	}
	return labels
}

// nearest returns the label of the closest centroid by squared Euclidean
// distance. Ties go to the lowest index. Points not comparable to any
// centroid (NaN distances) fall into the first cluster.
func nearest(centroids []Centroid, vh, vv float64) int {
	var (
		best  = math.Inf(1)
		label = centroids[0].Label
	)
	for _, c := range centroids {
		dh, dv := vh-c.VH, vv-c.VV
		if d := dh*dh + dv*dv; d < best {
			best = d
			label = c.Label
		}
	}
	return label
}

// sample returns the sorted working subset of point indices.
func sample(n int, fraction float64, rd *rand.Rand) []int {
	size := n
	if fraction < 1 {
		size = int(math.Floor(fraction * float64(n)))
		if floor := min(MinSampleSize, n); size < floor {
			size = floor
		}
	}
	index := make([]int, n)
	for i := range index {
		index[i] = i
	}
	if size == n {
		return index
	}
	// partial Fisher-Yates
	for i := range size {
		j := i + rd.Intn(n-i)
		index[i], index[j] = index[j], index[i]
	}
	subset := index[:size:size]
	slices.Sort(subset)
	return subset
}
