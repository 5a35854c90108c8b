// Package telemetry assembles Bulwark's observability stack from the
// telemetry section of the service configuration.
//
// # Components
//
//   - logging: slog loggers with context fields
//   - metrics: Prometheus collector, also the registry recorder
//   - tracing: OpenTelemetry spans exported over OTLP gRPC
//   - health: liveness and readiness probes
//
// # Usage
//
//	tel, err := telemetry.New(&cfg.Telemetry, health.NewVersionInfo(version, commit, buildTime))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	reg := registry.New(
//	    registry.WithLogger(tel.Logger),
//	    registry.WithRecorder(tel.Metrics),
//	)
package telemetry
