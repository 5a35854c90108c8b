package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mercator-hq/bulwark/pkg/config"
	"mercator-hq/bulwark/pkg/telemetry/health"
	"mercator-hq/bulwark/pkg/telemetry/logging"
	"mercator-hq/bulwark/pkg/telemetry/metrics"
	"mercator-hq/bulwark/pkg/telemetry/tracing"
)

// Telemetry bundles the process-wide observability components.
type Telemetry struct {
	Logger  *slog.Logger
	Metrics *metrics.Collector
	Tracer  *tracing.Tracer
	Health  *health.Checker
	Version health.VersionInfo
}

// Option configures New.
type Option func(*options)

type options struct {
	logWriter io.Writer
	tracing   []tracing.Option
}

// WithLogWriter sends log output to w instead of stderr.
func WithLogWriter(w io.Writer) Option {
	return func(o *options) {
		o.logWriter = w
	}
}

// WithTracingOptions passes options through to tracing.New.
func WithTracingOptions(opts ...tracing.Option) Option {
	return func(o *options) {
		o.tracing = append(o.tracing, opts...)
	}
}

// New builds every component from cfg. The metrics registry also carries
// the Go runtime and process collectors.
func New(cfg *config.TelemetryConfig, version health.VersionInfo, opts ...Option) (*Telemetry, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logCfg := logging.FromConfig(cfg.Logging)
	logCfg.Writer = o.logWriter
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(&cfg.Metrics, promRegistry)

	tracer, err := tracing.New(&cfg.Tracing, append([]tracing.Option{tracing.WithServiceVersion(version.Version)}, o.tracing...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	return &Telemetry{
		Logger:  logger,
		Metrics: collector,
		Tracer:  tracer,
		Health:  health.New(cfg.Health.CheckTimeout),
		Version: version,
	}, nil
}

// Shutdown flushes pending spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.Tracer.Shutdown(ctx)
}
