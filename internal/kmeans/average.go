package kmeans

import "math"

// AverageStore accumulates the running mean of the points assigned to one
// centroid.
type AverageStore struct {
	vh, vv float64
	count  int
}

func (s *AverageStore) Add(vh, vv float64) {
	s.vh += vh
	s.vv += vv
	s.count += 1
}

// Average returns the mean point. An empty store yields NaN coordinates.
func (s *AverageStore) Average() (vh, vv float64) {
	if s.count == 0 {
		return math.NaN(), math.NaN()
	}
	n := float64(s.count)
	return s.vh / n, s.vv / n
}

func (s *AverageStore) Count() int { return s.count }

func (s *AverageStore) Reset() {
	s.vh, s.vv, s.count = 0, 0, 0
}
