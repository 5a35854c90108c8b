package registry

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/bulwark/pkg/policy"
	"mercator-hq/bulwark/pkg/policy/compiler"
)

// State is the lifecycle state of a Registry.
type State int

const (
	// StateUninitialized means no snapshot has been installed yet.
	StateUninitialized State = iota

	// StateReady means a snapshot is installed and lookups succeed.
	StateReady
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateReady:
		return "READY"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ReinstallPolicy decides what a second Install does.
type ReinstallPolicy int

const (
	// ReinstallReject fails every Install after the first with ErrAlreadyInstalled.
	ReinstallReject ReinstallPolicy = iota

	// ReinstallSwap atomically replaces the installed snapshot.
	ReinstallSwap
)

// String returns the policy name as used in configuration files.
func (p ReinstallPolicy) String() string {
	switch p {
	case ReinstallReject:
		return "reject"
	case ReinstallSwap:
		return "swap"
	default:
		return fmt.Sprintf("ReinstallPolicy(%d)", int(p))
	}
}

// ParseReinstallPolicy parses "reject" or "swap". An empty string means reject.
func ParseReinstallPolicy(s string) (ReinstallPolicy, error) {
	switch s {
	case "", "reject":
		return ReinstallReject, nil
	case "swap":
		return ReinstallSwap, nil
	default:
		return 0, fmt.Errorf("unknown reinstall policy %q (expected reject or swap)", s)
	}
}

// Lookup outcomes passed to Recorder.RecordLookup.
const (
	LookupHit            = "hit"
	LookupUnknown        = "unknown"
	LookupNotInitialized = "not_initialized"
)

// Install operations passed to Recorder.RecordInstall.
const (
	OpInstall = "install"
	OpReplace = "replace"
)

// Recorder receives registry events. Implementations must be safe for
// concurrent use; RecordLookup is called on the lookup hot path.
type Recorder interface {
	RecordLookup(result string)
	RecordInstall(op string, snap *policy.Snapshot, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordLookup(string)                           {}
func (nopRecorder) RecordInstall(string, *policy.Snapshot, error) {}

// installed pairs a snapshot with the time it became visible.
type installed struct {
	snap *policy.Snapshot
	at   time.Time
}

// Registry holds the installed policy snapshot and serves lookups.
//
// Lookups read a single atomic pointer and never block. Writers are
// serialised by a mutex; a new snapshot becomes visible to all readers at
// once, so a reader sees either the old or the new snapshot, never a mix.
type Registry struct {
	mu        sync.Mutex
	current   atomic.Pointer[installed]
	reinstall ReinstallPolicy
	logger    *slog.Logger
	recorder  Recorder
}

// Option configures a Registry.
type Option func(*Registry)

// WithReinstall sets the behaviour of Install once a snapshot is installed.
func WithReinstall(p ReinstallPolicy) Option {
	return func(r *Registry) {
		r.reinstall = p
	}
}

// WithLogger sets the logger used for install events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRecorder sets the recorder notified of lookups and installs.
func WithRecorder(rec Recorder) Option {
	return func(r *Registry) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// New creates an uninitialised registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		reinstall: ReinstallReject,
		logger:    slog.Default(),
		recorder:  nopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Install makes snap the active snapshot. The first call moves the registry
// to READY. Later calls follow the configured ReinstallPolicy.
func (r *Registry) Install(snap *policy.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("install: snapshot cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev := r.current.Load(); prev != nil && r.reinstall == ReinstallReject {
		err := &policy.AlreadyInstalledError{Version: prev.snap.Version()}
		r.recorder.RecordInstall(OpInstall, snap, err)
		r.logger.Warn("Rejected policy re-install",
			"installed_version", prev.snap.Version(),
			"rejected_version", snap.Version(),
		)
		return err
	}

	r.store(OpInstall, snap)
	return nil
}

// InstallConfig compiles cfg and installs the result. Nothing is installed
// if compilation fails.
func (r *Registry) InstallConfig(cfg *policy.Config) (*policy.Snapshot, error) {
	snap, err := compiler.Resolve(cfg)
	if err != nil {
		r.recorder.RecordInstall(OpInstall, nil, err)
		return nil, err
	}
	if err := r.Install(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Replace atomically swaps in snap regardless of the reinstall policy. It is
// the hot reload path and works in either state.
func (r *Registry) Replace(snap *policy.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("replace: snapshot cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.store(OpReplace, snap)
	return nil
}

// store publishes snap. Must be called with r.mu held.
func (r *Registry) store(op string, snap *policy.Snapshot) {
	prev := r.current.Load()
	r.current.Store(&installed{snap: snap, at: time.Now()})
	r.recorder.RecordInstall(op, snap, nil)

	attrs := []any{
		"operation", op,
		"version", snap.Version(),
		"commands", snap.Len(),
	}
	if prev != nil {
		attrs = append(attrs, "previous_version", prev.snap.Version())
	}
	r.logger.Info("Policy snapshot installed", attrs...)
}

// Lookup returns the resolved policy for command.
func (r *Registry) Lookup(command string) (*policy.ResolvedPolicy, error) {
	p, _, err := r.LookupVersion(command)
	return p, err
}

// LookupVersion is Lookup that also returns the version of the snapshot the
// policy was read from. Both come from a single load of the installed
// snapshot, so they always agree.
func (r *Registry) LookupVersion(command string) (*policy.ResolvedPolicy, string, error) {
	cur := r.current.Load()
	if cur == nil {
		r.recorder.RecordLookup(LookupNotInitialized)
		return nil, "", &policy.NotInitializedError{Command: command}
	}

	p, ok := cur.snap.Get(command)
	if !ok {
		r.recorder.RecordLookup(LookupUnknown)
		return nil, cur.snap.Version(), &policy.UnknownCommandError{Command: command}
	}

	r.recorder.RecordLookup(LookupHit)
	return p, cur.snap.Version(), nil
}

// State reports whether a snapshot is installed.
func (r *Registry) State() State {
	if r.current.Load() == nil {
		return StateUninitialized
	}
	return StateReady
}

// Snapshot returns the installed snapshot, or nil before the first install.
func (r *Registry) Snapshot() *policy.Snapshot {
	if cur := r.current.Load(); cur != nil {
		return cur.snap
	}
	return nil
}

// Names returns the installed command names in sorted order.
func (r *Registry) Names() []string {
	if snap := r.Snapshot(); snap != nil {
		return snap.Names()
	}
	return nil
}

// Version returns the installed snapshot version, or "" before the first install.
func (r *Registry) Version() string {
	if snap := r.Snapshot(); snap != nil {
		return snap.Version()
	}
	return ""
}

// InstalledAt returns when the current snapshot was installed. The zero time
// is returned before the first install.
func (r *Registry) InstalledAt() time.Time {
	if cur := r.current.Load(); cur != nil {
		return cur.at
	}
	return time.Time{}
}
