package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/bulwark/pkg/config"
	"mercator-hq/bulwark/pkg/history"
	"mercator-hq/bulwark/pkg/policy"
	"mercator-hq/bulwark/pkg/policy/compiler"
	"mercator-hq/bulwark/pkg/policy/git"
	"mercator-hq/bulwark/pkg/policy/registry"
	"mercator-hq/bulwark/pkg/telemetry/logging"
	"mercator-hq/bulwark/pkg/telemetry/tracing"
)

// Reload results passed to MetricsRecorder.RecordReload.
const (
	ResultSuccess   = "success"
	ResultError     = "error"
	ResultUnchanged = "unchanged"
)

// MetricsRecorder receives load and compile measurements.
// *metrics.Collector implements it.
type MetricsRecorder interface {
	RecordResolve(duration time.Duration, errCount int)
	RecordReload(source, result string, duration time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RecordResolve(time.Duration, int)             {}
func (nopMetrics) RecordReload(string, string, time.Duration) {}

// Manager reads the resilience configuration from its source, compiles it
// and installs the result into a registry. After the first Load it keeps the
// registry current through Reload and Watch.
//
// A failed reload never disturbs the installed snapshot: the previous
// snapshot keeps serving and the error is available from LastLoadError.
type Manager struct {
	cfg      *config.Config
	registry *registry.Registry
	source   Source
	logger   *slog.Logger
	history  history.Store
	metrics  MetricsRecorder
	tracer   *tracing.Tracer

	// loadMu serialises Load, Reload and Preview.
	loadMu sync.Mutex
	opened bool

	mu            sync.RWMutex
	lastLoadTime  time.Time
	lastLoadError error
	lastRevision  string
	closed        bool

	watchMu     sync.Mutex
	watchCancel context.CancelFunc
	watchDone   chan struct{}
	poller      *git.Poller
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithHistory records every installed snapshot in store.
func WithHistory(store history.Store) Option {
	return func(m *Manager) {
		m.history = store
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(rec MetricsRecorder) Option {
	return func(m *Manager) {
		if rec != nil {
			m.metrics = rec
		}
	}
}

// WithTracer sets the tracer used for load spans.
func WithTracer(t *tracing.Tracer) Option {
	return func(m *Manager) {
		if t != nil {
			m.tracer = t
		}
	}
}

// WithSource overrides the source selected by configuration.
func WithSource(src Source) Option {
	return func(m *Manager) {
		m.source = src
	}
}

// New creates a manager for cfg that installs into reg. Nothing is read
// until Load is called.
func New(cfg *config.Config, reg *registry.Registry, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}

	m := &Manager{
		cfg:      cfg,
		registry: reg,
		logger:   logging.Discard(),
		metrics:  nopMetrics{},
		tracer:   tracing.Noop(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.source == nil {
		src, err := NewSource(cfg)
		if err != nil {
			return nil, err
		}
		m.source = src
	}
	m.logger = m.logger.With("component", "policy_manager", "source", m.source.Mode())

	return m, nil
}

// Source returns the configuration source mode.
func (m *Manager) Source() string {
	return m.source.Mode()
}

// Registry returns the registry the manager installs into.
func (m *Manager) Registry() *registry.Registry {
	return m.registry
}

// Load reads, compiles and installs the configuration for the first time.
// It follows the registry's reinstall policy when a snapshot is already
// installed.
func (m *Manager) Load(ctx context.Context) error {
	_, err := m.apply(ctx, registry.OpInstall)
	return err
}

// Reload reads and compiles the configuration again and swaps the result in.
// On any failure the installed snapshot is kept and the error is returned.
func (m *Manager) Reload(ctx context.Context) error {
	_, err := m.apply(ctx, registry.OpReplace)
	return err
}

// Preview reads and compiles the configuration without installing it.
func (m *Manager) Preview(ctx context.Context) (*policy.Snapshot, error) {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	if err := m.open(ctx); err != nil {
		return nil, err
	}
	snap, _, err := m.compile(ctx)
	return snap, err
}

func (m *Manager) open(ctx context.Context) error {
	if m.isClosed() {
		return ErrClosed
	}
	if m.opened {
		return nil
	}
	if err := m.source.Open(ctx); err != nil {
		return &LoadError{Source: m.source.Mode(), Stage: StageRead, Cause: err}
	}
	m.opened = true
	return nil
}

// compile reads the source and resolves it.
func (m *Manager) compile(ctx context.Context) (*policy.Snapshot, string, error) {
	mode := m.source.Mode()

	readCtx, span := m.tracer.Start(ctx, tracing.SpanDecode)
	cfg, revision, err := m.source.Read(readCtx)
	tracing.SetSourceAttributes(span, mode, revision)
	tracing.SetStatus(span, err)
	span.End()
	if err != nil {
		return nil, revision, &LoadError{Source: mode, Revision: revision, Stage: StageRead, Cause: err}
	}

	_, span = m.tracer.Start(ctx, tracing.SpanResolve)
	start := time.Now()
	snap, err := compiler.Resolve(cfg)
	m.metrics.RecordResolve(time.Since(start), errorCount(err))
	tracing.SetSnapshotAttributes(span, snap)
	tracing.SetResolveErrors(span, err)
	tracing.SetStatus(span, err)
	span.End()
	if err != nil {
		return nil, revision, &LoadError{Source: mode, Revision: revision, Stage: StageResolve, Cause: err}
	}

	return snap, revision, nil
}

// apply runs one load. op is registry.OpInstall or registry.OpReplace.
func (m *Manager) apply(ctx context.Context, op string) (*policy.Snapshot, error) {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	mode := m.source.Mode()
	start := time.Now()
	ctx = logging.WithSource(ctx, mode)
	ctx, span := m.tracer.Start(ctx, tracing.SpanLoad)
	defer span.End()

	snap, revision, err := m.load(ctx, op)
	tracing.SetSourceAttributes(span, mode, revision)
	tracing.SetSnapshotAttributes(span, snap)
	tracing.SetStatus(span, err)

	result := ResultSuccess
	switch {
	case err != nil:
		result = ResultError
	case snap == nil:
		result = ResultUnchanged
	}
	m.metrics.RecordReload(mode, result, time.Since(start))

	m.mu.Lock()
	m.lastLoadError = err
	if err == nil {
		m.lastLoadTime = time.Now()
		m.lastRevision = revision
	}
	m.mu.Unlock()

	if err != nil {
		attrs := []any{"operation", op, "error", err, "duration", time.Since(start)}
		if current := m.registry.Version(); current != "" {
			attrs = append(attrs, "active_version", current)
		}
		m.logger.ErrorContext(ctx, "Failed to load resilience configuration", attrs...)
		return nil, err
	}

	if snap == nil {
		m.logger.InfoContext(ctx, "Resilience configuration unchanged",
			"version", m.registry.Version(),
			"revision", revision,
		)
		return nil, nil
	}

	ctx = logging.WithSnapshot(ctx, snap.Version())
	m.record(ctx, snap, op, revision)
	m.logger.InfoContext(ctx, "Resilience configuration loaded",
		"operation", op,
		"commands", snap.Len(),
		"revision", revision,
		"duration", time.Since(start),
	)
	return snap, nil
}

// load compiles and installs. It returns a nil snapshot without error when
// a replace would install the version that is already active.
func (m *Manager) load(ctx context.Context, op string) (*policy.Snapshot, string, error) {
	if err := m.open(ctx); err != nil {
		return nil, "", err
	}

	snap, revision, err := m.compile(ctx)
	if err != nil {
		return nil, revision, err
	}

	if op == registry.OpReplace && m.registry.Version() == snap.Version() {
		return nil, revision, nil
	}

	_, span := m.tracer.Start(ctx, tracing.SpanInstall)
	if op == registry.OpReplace {
		err = m.registry.Replace(snap)
	} else {
		err = m.registry.Install(snap)
	}
	tracing.SetSnapshotAttributes(span, snap)
	tracing.SetStatus(span, err)
	span.End()
	if err != nil {
		return nil, revision, &LoadError{Source: m.source.Mode(), Revision: revision, Stage: StageInstall, Cause: err}
	}

	return snap, revision, nil
}

// record appends snap to the install history. Failures are logged only; the
// snapshot is already serving.
func (m *Manager) record(ctx context.Context, snap *policy.Snapshot, op, revision string) {
	if m.history == nil {
		return
	}
	entry, err := history.NewEntry(snap, op, m.source.Mode(), revision)
	if err == nil {
		err = m.history.Record(ctx, entry)
	}
	if err != nil {
		m.logger.WarnContext(ctx, "Failed to record install history", "error", err)
	}
}

// Watch keeps the registry current until ctx is cancelled or Close is
// called. File sources are watched with fsnotify; git sources are polled on
// the configured schedule. Load must have succeeded first.
func (m *Manager) Watch(ctx context.Context) error {
	if m.isClosed() {
		return ErrClosed
	}

	mode := m.source.Mode()
	if mode == ModeInline {
		return ErrWatchUnsupported
	}

	m.watchMu.Lock()
	// Close marks the manager closed before it reads watchCancel, so either
	// it sees this watch or this check sees the flag.
	if m.isClosed() {
		m.watchMu.Unlock()
		return ErrClosed
	}
	if m.watchCancel != nil {
		m.watchMu.Unlock()
		return ErrWatchRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.watchCancel = cancel
	m.watchDone = done
	m.watchMu.Unlock()

	defer func() {
		cancel()
		close(done)
		m.watchMu.Lock()
		m.watchCancel = nil
		m.poller = nil
		m.watchMu.Unlock()
	}()

	switch src := m.source.(type) {
	case *gitSource:
		return m.watchGit(ctx, src)
	case *fileSource:
		return m.watchFile(ctx, src.path)
	default:
		return fmt.Errorf("watch is not supported for %s source", mode)
	}
}

func (m *Manager) watchFile(ctx context.Context, path string) error {
	fw, err := NewFileWatcher(path, m.cfg.Source.Debounce, m.logger)
	if err != nil {
		return err
	}
	return fw.Watch(ctx, func() error {
		return m.Reload(ctx)
	})
}

func (m *Manager) watchGit(ctx context.Context, src *gitSource) error {
	poller, err := git.NewPoller(src.repo, m.cfg.Source.Git.Poll.Schedule, func(ctx context.Context, commit *git.CommitInfo) error {
		m.logger.InfoContext(ctx, "Resilience file changed in repository",
			"commit", commit.Short(),
			"author", commit.Author,
		)
		return m.Reload(ctx)
	}, m.logger)
	if err != nil {
		return err
	}
	if err := poller.Start(ctx); err != nil {
		return err
	}

	m.watchMu.Lock()
	m.poller = poller
	m.watchMu.Unlock()

	<-ctx.Done()
	poller.Stop()
	return nil
}

// Sync polls the git source once, reloading if the resilience file changed.
// It fails outside git mode.
func (m *Manager) Sync(ctx context.Context) error {
	src, ok := m.source.(*gitSource)
	if !ok {
		return fmt.Errorf("sync requires a git source, have %s", m.source.Mode())
	}

	m.watchMu.Lock()
	poller := m.poller
	m.watchMu.Unlock()
	if poller != nil {
		return poller.Check(ctx)
	}

	if _, err := src.repo.Pull(ctx); err != nil {
		return err
	}
	return m.Reload(ctx)
}

// Commit returns the checked out commit of a git source.
func (m *Manager) Commit() (*git.CommitInfo, error) {
	src, ok := m.source.(*gitSource)
	if !ok {
		return nil, fmt.Errorf("not in git mode")
	}
	return src.repo.HeadCommit()
}

// LastLoadTime returns the time of the last successful load.
func (m *Manager) LastLoadTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastLoadTime
}

// LastLoadError returns the error of the last load attempt, or nil if it
// succeeded.
func (m *Manager) LastLoadError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastLoadError
}

// LastRevision returns the revision of the last successful load.
func (m *Manager) LastRevision() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRevision
}

// Close stops Watch and waits for it to return. The registry keeps its
// snapshot.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.watchMu.Lock()
	cancel, done := m.watchCancel, m.watchDone
	m.watchMu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}

	m.logger.Info("Policy manager closed")
	return nil
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func errorCount(err error) int {
	if err == nil {
		return 0
	}
	var list *policy.ErrorList
	if errors.As(err, &list) {
		return list.Len()
	}
	return 1
}
