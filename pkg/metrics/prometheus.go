package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	decisionsTotal *prometheus.CounterVec
	checksTotal    *prometheus.CounterVec
	dropsTotal     *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	dailyPnL       prometheus.Gauge
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		decisionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalgate_decisions_total",
				Help: "Admission verdicts by symbol, reason and eligibility",
			},
			[]string{"symbol", "reason", "eligible"},
		),
		checksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalgate_guard_checks_total",
				Help: "Guard check evaluations by name and outcome",
			},
			[]string{"check", "passed"},
		),
		dropsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalgate_dropped_candidates_total",
				Help: "Candidates dropped before admission",
			},
			[]string{"reason"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalgate_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		dailyPnL: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "signalgate_daily_realized_pnl",
				Help: "Realized PnL accumulated over the current UTC day",
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalgate_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordDecision records one admission verdict.
func (r *Recorder) RecordDecision(symbol, reason string, eligible bool) {
	r.decisionsTotal.WithLabelValues(symbol, reason, boolLabel(eligible)).Inc()
}

// RecordCheck records one guard check outcome.
func (r *Recorder) RecordCheck(name string, passed bool) {
	r.checksTotal.WithLabelValues(name, boolLabel(passed)).Inc()
}

// RecordDrop records a candidate dropped before admission.
func (r *Recorder) RecordDrop(reason string) {
	r.dropsTotal.WithLabelValues(reason).Inc()
}

// RecordDailyPnL records the running realized PnL for the current day.
func (r *Recorder) RecordDailyPnL(value float64) {
	r.dailyPnL.Set(value)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
