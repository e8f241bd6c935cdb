// Package metrics exposes the scheduler's operational counters and the
// status HTTP endpoints.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/quantrail-lab/quantrail/internal/types"
)

// Metrics holds the process collectors. Everything hangs off an explicit
// registry so tests run isolated and nothing leaks through package globals.
type Metrics struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	signals       *prometheus.CounterVec
	skips         *prometheus.CounterVec
	admissions    *prometheus.CounterVec
	consecFailed  prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scan_cycles_total",
				Help: "Scan cycles by outcome (ok|partial|failed)",
			},
			[]string{"outcome"},
		),
		cycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scan_cycle_duration_seconds",
				Help:    "Wall time of one scan cycle",
				Buckets: prometheus.DefBuckets,
			},
		),
		signals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scan_signals_total",
				Help: "Signals produced, by strategy",
			},
			[]string{"strategy"},
		),
		skips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scan_skips_total",
				Help: "Skipped evaluations, by reason",
			},
			[]string{"reason"},
		),
		admissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admissions_total",
				Help: "Admission outcomes (EXECUTED|REJECTED|FAILED)",
			},
			[]string{"status"},
		),
		consecFailed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "scan_consecutive_failed_cycles",
				Help: "Fully-failed scan cycles in a row",
			},
		),
	}

	m.registry.MustRegister(
		m.cycles,
		m.cycleDuration,
		m.signals,
		m.skips,
		m.admissions,
		m.consecFailed,
	)

	return m
}

// Registry returns the backing registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCycle folds one scan report into the collectors.
func (m *Metrics) ObserveCycle(report *types.ScanReport, consecutiveFailed int) {
	outcome := "ok"

	switch {
	case report.FullyFailed():
		outcome = "failed"
	case report.PairsFailed > 0:
		outcome = "partial"
	}

	m.cycles.WithLabelValues(outcome).Inc()
	m.cycleDuration.Observe(report.Duration.Seconds())
	m.consecFailed.Set(float64(consecutiveFailed))

	for strategyName, count := range report.SignalsByStrategy {
		m.signals.WithLabelValues(strategyName).Add(float64(count))
	}

	for reason, count := range report.SkipsByReason {
		m.skips.WithLabelValues(string(reason)).Add(float64(count))
	}

	m.admissions.WithLabelValues(string(types.AdmissionExecuted)).Add(float64(report.Executed))
	m.admissions.WithLabelValues(string(types.AdmissionRejected)).Add(float64(report.Rejected))
	m.admissions.WithLabelValues(string(types.AdmissionFailed)).Add(float64(report.Failed))
}
