package tracing

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/bulwark/pkg/policy"
)

// Span names used by the policy manager and admin server.
const (
	SpanLoad    = "policy.load"
	SpanDecode  = "policy.decode"
	SpanResolve = "policy.resolve"
	SpanInstall = "policy.install"
)

// Attribute keys use the "bulwark.*" namespace.
const (
	AttrSource          = "bulwark.source"
	AttrRevision        = "bulwark.revision"
	AttrSnapshotVersion = "bulwark.snapshot.version"
	AttrCommandCount    = "bulwark.snapshot.commands"
	AttrCommand         = "bulwark.command"
	AttrOperation       = "bulwark.operation"
	AttrErrorCount      = "bulwark.error.count"
)

// SetSourceAttributes records where a configuration was read from.
func SetSourceAttributes(span trace.Span, source, revision string) {
	attrs := []attribute.KeyValue{attribute.String(AttrSource, source)}
	if revision != "" {
		attrs = append(attrs, attribute.String(AttrRevision, revision))
	}
	span.SetAttributes(attrs...)
}

// SetSnapshotAttributes records the version and size of snap.
func SetSnapshotAttributes(span trace.Span, snap *policy.Snapshot) {
	if snap == nil {
		return
	}
	span.SetAttributes(
		attribute.String(AttrSnapshotVersion, snap.Version()),
		attribute.Int(AttrCommandCount, snap.Len()),
	)
}

// SetResolveErrors records the number of compiler errors in err.
func SetResolveErrors(span trace.Span, err error) {
	if err == nil {
		return
	}
	count := 1
	var list *policy.ErrorList
	if errors.As(err, &list) {
		count = len(list.Errors)
	}
	span.SetAttributes(attribute.Int(AttrErrorCount, count))
}
