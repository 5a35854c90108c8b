package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/bulwark/pkg/config"
	"mercator-hq/bulwark/pkg/policy"
)

// PolicyMetrics exports the installed per-command policy values so
// dashboards can show what each command is running with.
//
// Metrics:
//   - bulwark_policy_command_timeout_seconds
//   - bulwark_policy_command_concurrency
//   - bulwark_policy_command_error_threshold_percentage
//   - bulwark_policy_command_fallback_enabled
type PolicyMetrics struct {
	timeout        *prometheus.GaugeVec
	concurrency    *prometheus.GaugeVec
	errorThreshold *prometheus.GaugeVec
	fallback       *prometheus.GaugeVec
}

// NewPolicyMetrics creates and registers the per-command gauges.
func NewPolicyMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PolicyMetrics {
	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      name,
				Help:      help,
			},
			[]string{"command"},
		)
	}

	pm := &PolicyMetrics{
		timeout:        gauge("command_timeout_seconds", "Execution timeout of the command"),
		concurrency:    gauge("command_concurrency", "Concurrency limit of the command"),
		errorThreshold: gauge("command_error_threshold_percentage", "Circuit breaker error threshold of the command"),
		fallback:       gauge("command_fallback_enabled", "1 if the command's fallback is enabled"),
	}

	registry.MustRegister(
		pm.timeout,
		pm.concurrency,
		pm.errorThreshold,
		pm.fallback,
	)

	return pm
}

// Update replaces every series with the given policies. Commands removed by
// a reload disappear from the output.
func (pm *PolicyMetrics) Update(policies []*policy.ResolvedPolicy) {
	pm.timeout.Reset()
	pm.concurrency.Reset()
	pm.errorThreshold.Reset()
	pm.fallback.Reset()

	for _, p := range policies {
		name := p.Name()
		tp := p.ThreadPool()
		pm.timeout.WithLabelValues(name).Set(tp.Timeout.Seconds())
		pm.concurrency.WithLabelValues(name).Set(float64(tp.Concurrency))
		pm.errorThreshold.WithLabelValues(name).Set(float64(p.CircuitBreaker().ErrorThresholdPercentage))
		fallback := 0.0
		if p.FallbackEnabled() {
			fallback = 1
		}
		pm.fallback.WithLabelValues(name).Set(fallback)
	}
}
