package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/bulwark/pkg/config"
)

// RegistryMetrics tracks the policy registry.
//
// Metrics:
//   - bulwark_policy_lookups_total: Lookups by result
//   - bulwark_policy_installs_total: Install and replace attempts by op and result
//   - bulwark_policy_installed_commands: Commands in the installed snapshot
//   - bulwark_policy_snapshot_info: Always 1, labelled with the installed version
//   - bulwark_policy_last_install_timestamp_seconds: Unix time of the last install
type RegistryMetrics struct {
	lookupsTotal       *prometheus.CounterVec
	installsTotal      *prometheus.CounterVec
	installedCommands  prometheus.Gauge
	snapshotInfo       *prometheus.GaugeVec
	lastInstallSeconds prometheus.Gauge
}

// NewRegistryMetrics creates and registers registry metrics.
func NewRegistryMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RegistryMetrics {
	rm := &RegistryMetrics{
		lookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "lookups_total",
				Help:      "Total number of policy lookups",
			},
			[]string{"result"},
		),

		installsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "installs_total",
				Help:      "Total number of snapshot install attempts",
			},
			[]string{"op", "result"},
		),

		installedCommands: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "installed_commands",
				Help:      "Number of commands in the installed snapshot",
			},
		),

		snapshotInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "snapshot_info",
				Help:      "Installed snapshot version",
			},
			[]string{"version"},
		),

		lastInstallSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "last_install_timestamp_seconds",
				Help:      "Unix time of the last successful install",
			},
		),
	}

	registry.MustRegister(
		rm.lookupsTotal,
		rm.installsTotal,
		rm.installedCommands,
		rm.snapshotInfo,
		rm.lastInstallSeconds,
	)

	return rm
}

// RecordLookup counts one lookup.
func (rm *RegistryMetrics) RecordLookup(result string) {
	rm.lookupsTotal.WithLabelValues(result).Inc()
}

// RecordInstall counts one install attempt.
func (rm *RegistryMetrics) RecordInstall(op, result string) {
	rm.installsTotal.WithLabelValues(op, result).Inc()
}

// UpdateSnapshot replaces the snapshot gauges. Only the current version keeps
// a snapshot_info series.
func (rm *RegistryMetrics) UpdateSnapshot(version string, commands int, at time.Time) {
	rm.snapshotInfo.Reset()
	rm.snapshotInfo.WithLabelValues(version).Set(1)
	rm.installedCommands.Set(float64(commands))
	rm.lastInstallSeconds.Set(float64(at.Unix()))
}
