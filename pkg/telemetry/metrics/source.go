package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/bulwark/pkg/config"
)

// SourceMetrics tracks compilation and configuration reloads.
//
// Metrics:
//   - bulwark_policy_resolve_duration_seconds: Compile duration histogram
//   - bulwark_policy_resolve_errors_total: Errors reported by the compiler
//   - bulwark_policy_reloads_total: Loads by source and result
//   - bulwark_policy_reload_duration_seconds: Load duration by source
type SourceMetrics struct {
	resolveDuration prometheus.Histogram
	resolveErrors   prometheus.Counter
	reloadsTotal    *prometheus.CounterVec
	reloadDuration  *prometheus.HistogramVec
}

// NewSourceMetrics creates and registers source metrics.
func NewSourceMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *SourceMetrics {
	sm := &SourceMetrics{
		resolveDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "resolve_duration_seconds",
				Help:      "Duration of policy compilation in seconds",
				Buckets:   cfg.ResolveDurationBuckets,
			},
		),

		resolveErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "resolve_errors_total",
				Help:      "Total number of errors reported by policy compilation",
			},
		),

		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "reloads_total",
				Help:      "Total number of configuration loads",
			},
			[]string{"source", "result"},
		),

		reloadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "reload_duration_seconds",
				Help:      "Duration of configuration loads in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8), // 1ms to 16s
			},
			[]string{"source"},
		),
	}

	registry.MustRegister(
		sm.resolveDuration,
		sm.resolveErrors,
		sm.reloadsTotal,
		sm.reloadDuration,
	)

	return sm
}

// RecordResolve records one compilation.
func (sm *SourceMetrics) RecordResolve(duration time.Duration, errCount int) {
	sm.resolveDuration.Observe(duration.Seconds())
	if errCount > 0 {
		sm.resolveErrors.Add(float64(errCount))
	}
}

// RecordReload records one load.
func (sm *SourceMetrics) RecordReload(source, result string, duration time.Duration) {
	sm.reloadsTotal.WithLabelValues(source, result).Inc()
	sm.reloadDuration.WithLabelValues(source).Observe(duration.Seconds())
}
