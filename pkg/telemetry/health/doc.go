// Package health implements the liveness and readiness probes of the
// Bulwark admin server.
//
// Liveness always succeeds while the process can serve HTTP. Readiness runs
// the registered checks concurrently, each bounded by the check timeout:
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("registry", health.RegistryCheck(reg))
//	checker.RegisterCheck("source", health.LastErrorCheck(mgr.LastLoadError))
//	checker.RegisterCheck("history", health.PingCheck(store))
//
// A failed reload makes the service not ready while the previous snapshot
// keeps serving lookups.
package health
