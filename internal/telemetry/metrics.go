// Package telemetry records run metrics with Prometheus and spans with
// OpenTelemetry.
//
// A training run is a batch job, so metrics are written once to a node
// exporter textfile instead of being scraped.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/YuminosukeSato/findhome/pkg/errors"
	"github.com/YuminosukeSato/findhome/tuning"
)

const namespace = "findhome"

// Metrics holds the collectors of one run. A nil *Metrics discards every
// observation.
type Metrics struct {
	registry *prometheus.Registry

	trials        *prometheus.CounterVec
	trialDuration prometheus.Histogram
	bestLoss      prometheus.Gauge
	stageDuration *prometheus.HistogramVec
	evalMAE       prometheus.Gauge
	evalR2        prometheus.Gauge
	samples       *prometheus.GaugeVec

	best     float64
	haveBest bool
}

// NewMetrics registers the run collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		trials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tuning",
			Name:      "trials_total",
			Help:      "Hyperparameter trials by outcome.",
		}, []string{"status"}),
		trialDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tuning",
			Name:      "trial_duration_seconds",
			Help:      "Wall time of one trial.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		bestLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tuning",
			Name:      "best_loss",
			Help:      "Lowest validation loss seen so far.",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 12),
		}, []string{"stage"}),
		evalMAE: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "test_mae",
			Help:      "Mean absolute error on the test split, natural scale.",
		}),
		evalR2: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "cv_r2",
			Help:      "Mean cross-validated R2 on the training split.",
		}),
		samples: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "samples",
			Help:      "Rows per dataset split.",
		}, []string{"split"}),
	}
	m.registry.MustRegister(m.trials, m.trialDuration, m.bestLoss, m.stageDuration, m.evalMAE, m.evalR2, m.samples)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// TrialFinished implements tuning.Observer.
func (m *Metrics) TrialFinished(t tuning.Trial, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if t.Failed() {
		status = "failed"
	}
	m.trials.WithLabelValues(status).Inc()
	m.trialDuration.Observe(elapsed.Seconds())
	if !t.Failed() && (!m.haveBest || t.Loss < m.best) {
		m.best, m.haveBest = t.Loss, true
		m.bestLoss.Set(t.Loss)
	}
}

// ObserveStage records the duration of a named stage.
func (m *Metrics) ObserveStage(stage string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// SetSamples records the row count of a split.
func (m *Metrics) SetSamples(split string, n int) {
	if m == nil {
		return
	}
	m.samples.WithLabelValues(split).Set(float64(n))
}

// SetEvaluation records the evaluation report.
func (m *Metrics) SetEvaluation(mae, r2 float64) {
	if m == nil {
		return
	}
	m.evalMAE.Set(mae)
	m.evalR2.Set(r2)
}

// WriteTextfile writes the registry in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.NewDataAccessError("telemetry.WriteTextfile", path, "cannot write metrics", err)
	}
	return nil
}

var _ tuning.Observer = (*Metrics)(nil)
