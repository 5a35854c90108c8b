// Package metrics exports Bulwark's Prometheus metrics.
//
// A Collector is created once per process. It implements registry.Recorder,
// so registry lookups and installs are counted without the registry
// importing Prometheus:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	reg := registry.New(registry.WithRecorder(collector))
//	http.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// The policy manager reports compilations with RecordResolve and
// configuration loads with RecordReload.
//
// Per-command gauges are capped at DefaultMaxCommands distinct commands.
// When metrics are disabled in configuration every Record method is a no-op.
package metrics
