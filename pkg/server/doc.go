// Package server provides the admin HTTP server.
//
// The server exposes the installed resilience policies read-only, together
// with the service's probes and metrics:
//
//	GET  /health                 liveness probe
//	GET  /ready                  readiness probe
//	GET  /metrics                Prometheus metrics
//	GET  /version                build information
//	GET  /v1/snapshot            the installed snapshot document
//	GET  /v1/commands            every resolved command policy
//	GET  /v1/commands/{name}     one policy and its Setter
//	GET  /v1/properties          flat property key space (?format=json, ?compact=true)
//	GET  /v1/history             install history (?limit=N)
//	GET  /v1/history/{id}        one history entry with its document
//	POST /v1/reload              reload from the configured source
//
// Probe and metrics paths come from the telemetry configuration. Lookups
// before the first install answer 503; unknown commands answer 404.
//
// Requests pass through recovery, request ID, tracing and logging
// middleware, outermost first.
package server
