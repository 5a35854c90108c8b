package manager

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/bulwark/pkg/config"
	"mercator-hq/bulwark/pkg/history"
	"mercator-hq/bulwark/pkg/policy"
	"mercator-hq/bulwark/pkg/policy/registry"
	"mercator-hq/bulwark/pkg/telemetry/tracing"
)

const ordersYAML = `
commands:
  - name: orders
    thread_pool:
      concurrency: 25
      timeout: 1s
  - name: payments
`

const ordersV2YAML = `
commands:
  - name: orders
    thread_pool:
      concurrency: 40
      timeout: 1s
  - name: payments
  - name: refunds
`

const duplicateYAML = `
commands:
  - name: orders
  - name: orders
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func fileConfig(t *testing.T, content string) (*config.Config, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resilience.yaml")
	writeFile(t, path, content)

	cfg := config.Default()
	cfg.Source.Mode = ModeFile
	cfg.Source.FilePath = path
	cfg.Source.Debounce = 20 * time.Millisecond
	return cfg, path
}

func inlineConfig(names ...string) *config.Config {
	cfg := config.Default()
	cfg.Source.Mode = ModeInline
	for _, n := range names {
		cfg.Resilience.Commands = append(cfg.Resilience.Commands, policy.CommandSpec{Name: n})
	}
	return cfg
}

func newManager(t *testing.T, cfg *config.Config, opts ...Option) (*Manager, *registry.Registry) {
	t.Helper()
	reg := registry.New(registry.WithLogger(quietLogger()))
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	m, err := New(cfg, reg, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m, reg
}

type reloadCall struct {
	source string
	result string
}

type fakeMetrics struct {
	mu       sync.Mutex
	resolves []int
	reloads  []reloadCall
}

func (f *fakeMetrics) RecordResolve(_ time.Duration, errCount int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolves = append(f.resolves, errCount)
}

func (f *fakeMetrics) RecordReload(source, result string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads = append(f.reloads, reloadCall{source: source, result: result})
}

func (f *fakeMetrics) results() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.reloads))
	for i, r := range f.reloads {
		out[i] = r.result
	}
	return out
}

func TestNew_Validation(t *testing.T) {
	reg := registry.New()

	if _, err := New(nil, reg); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := New(inlineConfig(), nil); err == nil {
		t.Error("expected error for nil registry")
	}

	cfg := config.Default()
	cfg.Source.Mode = "ftp"
	if _, err := New(cfg, reg); err == nil {
		t.Error("expected error for unknown source mode")
	}
}

func TestManager_LoadInline(t *testing.T) {
	m, reg := newManager(t, inlineConfig("orders", "payments"))

	if reg.State() != registry.StateUninitialized {
		t.Fatalf("State() = %v before Load", reg.State())
	}
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if reg.State() != registry.StateReady {
		t.Errorf("State() = %v, want ready", reg.State())
	}
	if _, err := reg.Lookup("orders"); err != nil {
		t.Errorf("Lookup(orders) error = %v", err)
	}
	if m.Source() != ModeInline {
		t.Errorf("Source() = %q", m.Source())
	}
	if m.LastLoadTime().IsZero() {
		t.Error("LastLoadTime() is zero after Load")
	}
	if m.LastLoadError() != nil {
		t.Errorf("LastLoadError() = %v", m.LastLoadError())
	}
}

func TestManager_LoadResolveErrorInstallsNothing(t *testing.T) {
	m, reg := newManager(t, inlineConfig("orders", "orders"))

	err := m.Load(context.Background())
	if err == nil {
		t.Fatal("expected error for duplicate commands")
	}

	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("error type = %T, want *LoadError", err)
	}
	if loadErr.Stage != StageResolve {
		t.Errorf("Stage = %q, want %q", loadErr.Stage, StageResolve)
	}
	if !errors.Is(err, policy.ErrDuplicateCommand) {
		t.Errorf("error %v does not wrap ErrDuplicateCommand", err)
	}
	if reg.State() != registry.StateUninitialized {
		t.Error("registry was initialized by a failed load")
	}
	if m.LastLoadError() == nil {
		t.Error("LastLoadError() = nil after failure")
	}
}

func TestManager_LoadTwiceRejectedByRegistry(t *testing.T) {
	m, _ := newManager(t, inlineConfig("orders"))
	ctx := context.Background()

	if err := m.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	err := m.Load(ctx)
	if !errors.Is(err, policy.ErrAlreadyInstalled) {
		t.Fatalf("second Load() error = %v, want ErrAlreadyInstalled", err)
	}

	var loadErr *LoadError
	if errors.As(err, &loadErr) && loadErr.Stage != StageInstall {
		t.Errorf("Stage = %q, want %q", loadErr.Stage, StageInstall)
	}
}

func TestManager_ReloadKeepsLastGoodSnapshot(t *testing.T) {
	cfg, path := fileConfig(t, ordersYAML)
	m, reg := newManager(t, cfg)
	ctx := context.Background()

	if err := m.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.LastRevision() != path {
		t.Errorf("LastRevision() = %q, want %q", m.LastRevision(), path)
	}
	first := reg.Version()

	writeFile(t, path, duplicateYAML)
	if err := m.Reload(ctx); err == nil {
		t.Fatal("expected reload error for duplicate commands")
	}
	if reg.Version() != first {
		t.Errorf("Version() = %q after failed reload, want %q", reg.Version(), first)
	}
	if m.LastLoadError() == nil {
		t.Error("LastLoadError() = nil after failed reload")
	}

	writeFile(t, path, "commands: [")
	err := m.Reload(ctx)
	var loadErr *LoadError
	if !errors.As(err, &loadErr) || loadErr.Stage != StageRead {
		t.Errorf("Reload() error = %v, want read stage LoadError", err)
	}

	writeFile(t, path, ordersV2YAML)
	if err := m.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if reg.Version() == first {
		t.Error("Version() unchanged after successful reload")
	}
	if m.LastLoadError() != nil {
		t.Errorf("LastLoadError() = %v after recovery", m.LastLoadError())
	}

	p, err := reg.Lookup("orders")
	if err != nil {
		t.Fatalf("Lookup(orders) error = %v", err)
	}
	if got := p.ThreadPool().Concurrency; got != 40 {
		t.Errorf("Concurrency = %d, want 40", got)
	}
	if _, err := reg.Lookup("refunds"); err != nil {
		t.Errorf("Lookup(refunds) error = %v", err)
	}
}

func TestManager_ReloadUnchanged(t *testing.T) {
	rec := &fakeMetrics{}
	store := history.NewMemoryStore()
	m, reg := newManager(t, inlineConfig("orders"), WithMetrics(rec), WithHistory(store))
	ctx := context.Background()

	if err := m.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	installedAt := reg.InstalledAt()

	if err := m.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if !reg.InstalledAt().Equal(installedAt) {
		t.Error("unchanged reload reinstalled the snapshot")
	}

	want := []string{ResultSuccess, ResultUnchanged}
	got := rec.results()
	if len(got) != len(want) {
		t.Fatalf("reload results = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("reload result %d = %q, want %q", i, got[i], want[i])
		}
	}

	entries, err := store.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("history entries = %d, want 1", len(entries))
	}
}

func TestManager_PreviewDoesNotInstall(t *testing.T) {
	m, reg := newManager(t, inlineConfig("orders", "payments"))

	snap, err := m.Preview(context.Background())
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if snap.Len() != 2 {
		t.Errorf("Len() = %d, want 2", snap.Len())
	}
	if reg.State() != registry.StateUninitialized {
		t.Error("Preview installed a snapshot")
	}
}

func TestManager_RecordsHistory(t *testing.T) {
	cfg, path := fileConfig(t, ordersYAML)
	store := history.NewMemoryStore()
	m, reg := newManager(t, cfg, WithHistory(store))
	ctx := context.Background()

	if err := m.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	writeFile(t, path, ordersV2YAML)
	if err := m.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	entries, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}

	ops := map[string]bool{}
	for _, e := range entries {
		ops[e.Operation] = true
		if e.Source != ModeFile {
			t.Errorf("Source = %q, want file", e.Source)
		}
		if e.Revision != path {
			t.Errorf("Revision = %q, want %q", e.Revision, path)
		}
	}
	if !ops[registry.OpInstall] || !ops[registry.OpReplace] {
		t.Errorf("operations = %v, want install and replace", ops)
	}

	found := false
	for _, e := range entries {
		got, err := store.Get(ctx, e.ID)
		if err != nil {
			t.Fatalf("Get(%s) error = %v", e.ID, err)
		}
		if got.Version == reg.Version() {
			found = true
		}
	}
	if !found {
		t.Errorf("no entry matches installed version %q", reg.Version())
	}
}

func TestManager_MetricsCountResolveErrors(t *testing.T) {
	rec := &fakeMetrics{}
	cfg := inlineConfig("orders", "orders", "")
	m, _ := newManager(t, cfg, WithMetrics(rec))

	if err := m.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.resolves) != 1 || rec.resolves[0] < 2 {
		t.Errorf("resolve error counts = %v, want one call with at least 2", rec.resolves)
	}
	if len(rec.reloads) != 1 || rec.reloads[0] != (reloadCall{source: ModeInline, result: ResultError}) {
		t.Errorf("reloads = %v", rec.reloads)
	}
}

func TestManager_Spans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tracer, err := tracing.New(&config.TracingConfig{
		Enabled:     true,
		Sampler:     tracing.SamplerAlways,
		ServiceName: "bulwark-test",
	}, tracing.WithExporter(exp), tracing.WithoutGlobal())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = tracer.Shutdown(context.Background()) }()

	m, _ := newManager(t, inlineConfig("orders"), WithTracer(tracer))
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := tracer.ForceFlush(context.Background()); err != nil {
		t.Fatal(err)
	}

	names := map[string]bool{}
	for _, s := range exp.GetSpans() {
		names[s.Name] = true
	}
	for _, want := range []string{tracing.SpanLoad, tracing.SpanDecode, tracing.SpanResolve, tracing.SpanInstall} {
		if !names[want] {
			t.Errorf("missing span %q in %v", want, names)
		}
	}
}

func TestManager_WatchInlineUnsupported(t *testing.T) {
	m, _ := newManager(t, inlineConfig("orders"))
	if err := m.Watch(context.Background()); !errors.Is(err, ErrWatchUnsupported) {
		t.Errorf("Watch() error = %v, want ErrWatchUnsupported", err)
	}
}

func TestManager_WatchFileReloads(t *testing.T) {
	cfg, path := fileConfig(t, ordersYAML)
	m, reg := newManager(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	first := reg.Version()

	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, ordersV2YAML)

	deadline := time.Now().Add(5 * time.Second)
	for reg.Version() == first {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for reload")
		}
		time.Sleep(20 * time.Millisecond)
	}
	if _, err := reg.Lookup("refunds"); err != nil {
		t.Errorf("Lookup(refunds) error = %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestManager_CloseStopsWatch(t *testing.T) {
	cfg, _ := fileConfig(t, ordersYAML)
	m, _ := newManager(t, cfg)
	ctx := context.Background()

	if err := m.Load(ctx); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()
	time.Sleep(50 * time.Millisecond)

	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after Close")
	}

	if err := m.Reload(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Reload() after Close error = %v, want ErrClosed", err)
	}
}

func TestManager_WatchAfterClose(t *testing.T) {
	cfg, _ := fileConfig(t, ordersYAML)
	m, _ := newManager(t, cfg)
	if err := m.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Watch(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Watch() after Close error = %v, want ErrClosed", err)
	}
}

func TestManager_WatchRacingCloseAlwaysStops(t *testing.T) {
	for i := 0; i < 20; i++ {
		cfg, _ := fileConfig(t, ordersYAML)
		m, _ := newManager(t, cfg)
		if err := m.Load(context.Background()); err != nil {
			t.Fatal(err)
		}

		done := make(chan error, 1)
		start := make(chan struct{})
		go func() {
			<-start
			done <- m.Watch(context.Background())
		}()
		close(start)
		if err := m.Close(); err != nil {
			t.Fatal(err)
		}

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, ErrClosed) {
				t.Fatalf("Watch() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("iteration %d: Watch still running after Close", i)
		}
	}
}

func TestManager_GitSource(t *testing.T) {
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit() error = %v", err)
	}
	commit := func(content string) string {
		t.Helper()
		writeFile(t, filepath.Join(dir, "resilience.yaml"), content)
		wt, err := repo.Worktree()
		if err != nil {
			t.Fatal(err)
		}
		if _, err := wt.Add("resilience.yaml"); err != nil {
			t.Fatal(err)
		}
		hash, err := wt.Commit("update resilience", &gogit.CommitOptions{
			Author: &object.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()},
		})
		if err != nil {
			t.Fatal(err)
		}
		return hash.String()
	}
	firstSHA := commit(ordersYAML)

	head, err := repo.Head()
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Source.Mode = ModeGit
	cfg.Source.Git.Repository = dir
	cfg.Source.Git.Branch = head.Name().Short()
	cfg.Source.Git.Path = "resilience.yaml"
	cfg.Source.Git.Auth.Type = "none"
	cfg.Source.Git.Clone.LocalPath = filepath.Join(t.TempDir(), "clone")
	cfg.Source.Git.Clone.Depth = 0

	store := history.NewMemoryStore()
	m, reg := newManager(t, cfg, WithHistory(store))
	ctx := context.Background()

	if err := m.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.LastRevision() != firstSHA {
		t.Errorf("LastRevision() = %q, want %q", m.LastRevision(), firstSHA)
	}
	if c, err := m.Commit(); err != nil || c.SHA != firstSHA {
		t.Errorf("Commit() = %v, %v", c, err)
	}

	secondSHA := commit(ordersV2YAML)
	if err := m.Sync(ctx); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if m.LastRevision() != secondSHA {
		t.Errorf("LastRevision() = %q after sync, want %q", m.LastRevision(), secondSHA)
	}
	if _, err := reg.Lookup("refunds"); err != nil {
		t.Errorf("Lookup(refunds) error = %v", err)
	}

	entries, err := store.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Source != ModeGit {
			t.Errorf("Source = %q, want git", e.Source)
		}
	}
}

func TestManager_SyncRequiresGit(t *testing.T) {
	m, _ := newManager(t, inlineConfig("orders"))
	if err := m.Sync(context.Background()); err == nil {
		t.Error("expected error syncing an inline source")
	}
	if _, err := m.Commit(); err == nil {
		t.Error("expected error for Commit outside git mode")
	}
}

type failingSource struct {
	openErr error
	opens   int
}

func (s *failingSource) Mode() string { return "test" }

func (s *failingSource) Open(context.Context) error {
	s.opens++
	return s.openErr
}

func (s *failingSource) Read(context.Context) (*policy.Config, string, error) {
	return &policy.Config{Commands: []policy.CommandSpec{{Name: "orders"}}}, "r1", nil
}

func TestManager_OpenErrorRetried(t *testing.T) {
	src := &failingSource{openErr: errors.New("clone failed")}
	m, reg := newManager(t, inlineConfig(), WithSource(src))
	ctx := context.Background()

	err := m.Load(ctx)
	var loadErr *LoadError
	if !errors.As(err, &loadErr) || loadErr.Stage != StageRead {
		t.Fatalf("Load() error = %v, want read stage LoadError", err)
	}

	src.openErr = nil
	if err := m.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := m.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if src.opens != 2 {
		t.Errorf("opens = %d, want 2", src.opens)
	}
	if reg.State() != registry.StateReady {
		t.Error("registry not ready")
	}
	if m.LastRevision() != "r1" {
		t.Errorf("LastRevision() = %q", m.LastRevision())
	}
}
