package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for admin API request IDs.
	RequestIDKey contextKey = "request_id"

	// CommandKey is the context key for command names.
	CommandKey contextKey = "command"

	// SnapshotKey is the context key for snapshot versions.
	SnapshotKey contextKey = "snapshot_version"

	// SourceKey is the context key for the configuration source.
	SourceKey contextKey = "source"
)

var contextKeys = []contextKey{RequestIDKey, CommandKey, SnapshotKey, SourceKey}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

// WithCommand adds a command name to the context.
func WithCommand(ctx context.Context, command string) context.Context {
	return context.WithValue(ctx, CommandKey, command)
}

// GetCommand retrieves the command name from the context.
func GetCommand(ctx context.Context) string {
	return stringValue(ctx, CommandKey)
}

// WithSnapshot adds a snapshot version to the context.
func WithSnapshot(ctx context.Context, version string) context.Context {
	return context.WithValue(ctx, SnapshotKey, version)
}

// GetSnapshot retrieves the snapshot version from the context.
func GetSnapshot(ctx context.Context) string {
	return stringValue(ctx, SnapshotKey)
}

// WithSource adds the configuration source to the context.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, SourceKey, source)
}

// GetSource retrieves the configuration source from the context.
func GetSource(ctx context.Context) string {
	return stringValue(ctx, SourceKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// contextHandler adds context fields to each record before passing it on.
type contextHandler struct {
	next slog.Handler
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, key := range contextKeys {
		if v := stringValue(ctx, key); v != "" {
			r.AddAttrs(slog.String(string(key), v))
		}
	}
	return h.next.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: h.next.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name)}
}
