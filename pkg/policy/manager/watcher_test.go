package manager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_CoalescesTriggers(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	var calls atomic.Int32
	for i := 0; i < 10; i++ {
		d.Trigger(func() { calls.Add(1) })
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(200 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	d.Stop()
	d.Trigger(func() { calls.Add(1) })

	time.Sleep(150 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("calls = %d after Stop, want 0", got)
	}
}

func TestNewFileWatcher_Validation(t *testing.T) {
	if _, err := NewFileWatcher("", time.Second, nil); err == nil {
		t.Error("expected error for empty path")
	}

	fw, err := NewFileWatcher("resilience.yaml", 0, nil)
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v", err)
	}
	if !filepath.IsAbs(fw.path) {
		t.Errorf("path = %q, want absolute", fw.path)
	}
	if fw.debounce.interval != 100*time.Millisecond {
		t.Errorf("debounce = %v, want 100ms", fw.debounce.interval)
	}
	_ = fw.watcher.Close()
}

func TestFileWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resilience.yaml")
	writeFile(t, path, ordersYAML)

	fw, err := NewFileWatcher(path, 20*time.Millisecond, quietLogger())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- fw.Watch(ctx, func() error {
			reloads.Add(1)
			return errors.New("ignored")
		})
	}()
	time.Sleep(100 * time.Millisecond)

	writeFile(t, filepath.Join(dir, "other.yaml"), "x: 1\n")
	time.Sleep(150 * time.Millisecond)
	if got := reloads.Load(); got != 0 {
		t.Errorf("reloads = %d after sibling write, want 0", got)
	}

	// Replace by rename, as editors do.
	tmp := filepath.Join(dir, ".resilience.yaml.tmp")
	writeFile(t, tmp, ordersV2YAML)
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for reloads.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for reload")
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch() error = %v", err)
	}
}

func TestFileWatcher_RejectsSecondWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resilience.yaml")
	writeFile(t, path, ordersYAML)

	fw, err := NewFileWatcher(path, 0, quietLogger())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fw.Watch(ctx, func() error { return nil }) }()
	time.Sleep(50 * time.Millisecond)

	if err := fw.Watch(ctx, func() error { return nil }); !errors.Is(err, ErrWatchRunning) {
		t.Errorf("second Watch() error = %v, want ErrWatchRunning", err)
	}

	cancel()
	<-done
}
