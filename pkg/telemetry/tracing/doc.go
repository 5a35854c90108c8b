// Package tracing provides OpenTelemetry tracing for Bulwark.
//
// The policy manager wraps each configuration load in a policy.load span
// with child spans for decoding, compilation and installation. The admin
// server wraps requests with HTTPMiddleware, which honours an incoming W3C
// traceparent header.
//
// Spans are exported over OTLP gRPC:
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, tracing.WithServiceVersion(version))
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
// When telemetry.tracing.enabled is false, New returns a tracer whose spans
// are noops.
//
// Sampling is "always", "never" or "ratio". Every sampler is parent based,
// so a request that arrives sampled stays sampled.
package tracing
