package logging

import (
	"context"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = WithCommand(ctx, "getUser")
	ctx = WithSnapshot(ctx, "v1")
	ctx = WithSource(ctx, "file")

	if got := GetRequestID(ctx); got != "req-123" {
		t.Errorf("GetRequestID() = %q", got)
	}
	if got := GetCommand(ctx); got != "getUser" {
		t.Errorf("GetCommand() = %q", got)
	}
	if got := GetSnapshot(ctx); got != "v1" {
		t.Errorf("GetSnapshot() = %q", got)
	}
	if got := GetSource(ctx); got != "file" {
		t.Errorf("GetSource() = %q", got)
	}
}

func TestContextHelpers_Missing(t *testing.T) {
	ctx := context.Background()
	if got := GetRequestID(ctx); got != "" {
		t.Errorf("GetRequestID() = %q, want empty", got)
	}
	if got := GetCommand(ctx); got != "" {
		t.Errorf("GetCommand() = %q, want empty", got)
	}
}
