package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "floodsar"

// Metrics holds the counters, histograms and gauges of a calibration run.
type Metrics struct {
	Evaluations     *prometheus.CounterVec // labels: kind={threshold,cluster}, outcome={defined,undefined}
	Fits            *prometheus.CounterVec // labels: k
	FitDuration     prometheus.Histogram
	BestCoefficient *prometheus.GaugeVec // labels: kind

	registry *prometheus.Registry
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Candidate configurations scored, by sweep kind and outcome.",
		}, []string{"kind", "outcome"}),
		Fits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kmeans_fits_total",
			Help:      "K-means fits computed, by class count.",
		}, []string{"k"}),
		FitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kmeans_fit_duration_seconds",
			Help:      "Duration of one k-means fit.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),
		BestCoefficient: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_coefficient",
			Help:      "Correlation coefficient of the best configuration, by sweep kind.",
		}, []string{"kind"}),
		registry: reg,
	}
	reg.MustRegister(m.Evaluations, m.Fits, m.FitDuration, m.BestCoefficient)
	return m
}

// NewMetricsForTesting creates Metrics on a fresh registry.
func NewMetricsForTesting() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Evaluated(kind string, defined bool) {
	outcome := "defined"
	if !defined {
		outcome = "undefined"
	}
	m.Evaluations.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) Fitted(k int, elapsed time.Duration) {
	m.Fits.WithLabelValues(strconv.Itoa(k)).Inc()
	m.FitDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) Best(kind string, coefficient float64) {
	m.BestCoefficient.WithLabelValues(kind).Set(coefficient)
}

// WriteTextfile writes every registered metric to path in the text format
// read by node_exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
