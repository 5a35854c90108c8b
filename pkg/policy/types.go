package policy

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// IsolationMode selects how a command's concurrency is bounded.
type IsolationMode string

const (
	// IsolationThread bounds concurrency with a dedicated worker pool.
	IsolationThread IsolationMode = "THREAD"

	// IsolationSemaphore bounds concurrency with a counting gate on the
	// caller's goroutine.
	IsolationSemaphore IsolationMode = "SEMAPHORE"
)

// ParseIsolationMode parses an isolation mode name. Matching is case-insensitive.
func ParseIsolationMode(s string) (IsolationMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(IsolationThread):
		return IsolationThread, nil
	case string(IsolationSemaphore):
		return IsolationSemaphore, nil
	default:
		return "", fmt.Errorf("unknown isolation mode %q (expected THREAD or SEMAPHORE)", s)
	}
}

// String returns the canonical name of the isolation mode.
func (m IsolationMode) String() string {
	return string(m)
}

// Valid reports whether m is one of the known isolation modes.
func (m IsolationMode) Valid() bool {
	return m == IsolationThread || m == IsolationSemaphore
}

// MarshalText implements encoding.TextMarshaler.
func (m IsolationMode) MarshalText() ([]byte, error) {
	return []byte(m), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It is used by the YAML,
// TOML and JSON decoders alike.
func (m *IsolationMode) UnmarshalText(text []byte) error {
	mode, err := ParseIsolationMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// ThreadPoolPolicy bounds how many executions of a command may run at once
// and how long each may take.
type ThreadPoolPolicy struct {
	// Concurrency is the worker pool size (THREAD) or the permit count (SEMAPHORE).
	Concurrency int `yaml:"concurrency" toml:"concurrency" json:"concurrency"`

	// MaxQueueSize is the capacity of the pool's request queue.
	MaxQueueSize int `yaml:"max_queue_size" toml:"max_queue_size" json:"max_queue_size"`

	// DynamicQueueSize is the queue rejection threshold. It can be lowered at
	// runtime without resizing the queue itself.
	DynamicQueueSize int `yaml:"dynamic_queue_size" toml:"dynamic_queue_size" json:"dynamic_queue_size"`

	// Isolation selects THREAD or SEMAPHORE isolation.
	Isolation IsolationMode `yaml:"isolation" toml:"isolation" json:"isolation"`

	// Timeout is the execution timeout.
	Timeout time.Duration `yaml:"timeout" toml:"timeout" json:"timeout"`
}

// CircuitBreakerPolicy configures when a command stops being dispatched.
type CircuitBreakerPolicy struct {
	// RequestVolumeThreshold is the minimum number of requests in the rolling
	// window before the breaker may trip.
	RequestVolumeThreshold int `yaml:"request_volume_threshold" toml:"request_volume_threshold" json:"request_volume_threshold"`

	// ErrorThresholdPercentage is the error rate (0-100) that trips the breaker.
	ErrorThresholdPercentage int `yaml:"error_threshold_percentage" toml:"error_threshold_percentage" json:"error_threshold_percentage"`

	// SleepWindow is how long the breaker stays open before allowing a trial request.
	SleepWindow time.Duration `yaml:"sleep_window" toml:"sleep_window" json:"sleep_window"`
}

// MetricsPolicy configures the rolling windows the execution library keeps
// for a command.
type MetricsPolicy struct {
	// StatsWindow is the rolling statistics window.
	StatsWindow time.Duration `yaml:"stats_window" toml:"stats_window" json:"stats_window"`

	// NumBuckets is the number of buckets both rolling windows are split into.
	NumBuckets int `yaml:"num_buckets" toml:"num_buckets" json:"num_buckets"`

	// PercentileWindow is the rolling latency percentile window.
	PercentileWindow time.Duration `yaml:"percentile_window" toml:"percentile_window" json:"percentile_window"`

	// PercentileBucketSize is the maximum number of samples kept per percentile bucket.
	PercentileBucketSize int `yaml:"percentile_bucket_size" toml:"percentile_bucket_size" json:"percentile_bucket_size"`

	// HealthSnapshotInterval is how often error percentages are recomputed.
	HealthSnapshotInterval time.Duration `yaml:"health_snapshot_interval" toml:"health_snapshot_interval" json:"health_snapshot_interval"`
}

// DefaultPolicy holds the sub-policies inherited by commands that omit their
// own. Any of the three may be absent.
type DefaultPolicy struct {
	ThreadPool     *ThreadPoolPolicy     `yaml:"thread_pool" toml:"thread_pool" json:"thread_pool,omitempty"`
	CircuitBreaker *CircuitBreakerPolicy `yaml:"circuit_breaker" toml:"circuit_breaker" json:"circuit_breaker,omitempty"`
	Metrics        *MetricsPolicy        `yaml:"metrics" toml:"metrics" json:"metrics,omitempty"`
}

// Defaults is a completed DefaultPolicy: every sub-policy is present.
type Defaults struct {
	ThreadPool     ThreadPoolPolicy     `json:"thread_pool" yaml:"thread_pool"`
	CircuitBreaker CircuitBreakerPolicy `json:"circuit_breaker" yaml:"circuit_breaker"`
	Metrics        MetricsPolicy        `json:"metrics" yaml:"metrics"`
}

// CommandSpec is the partial, as-written configuration of one command.
type CommandSpec struct {
	// Name identifies the command. It must be unique within a Config.
	Name string `yaml:"name" toml:"name" json:"name"`

	ThreadPool     *ThreadPoolPolicy     `yaml:"thread_pool" toml:"thread_pool" json:"thread_pool,omitempty"`
	CircuitBreaker *CircuitBreakerPolicy `yaml:"circuit_breaker" toml:"circuit_breaker" json:"circuit_breaker,omitempty"`
	Metrics        *MetricsPolicy        `yaml:"metrics" toml:"metrics" json:"metrics,omitempty"`

	// FallbackEnabled has no default; an absent value means false.
	FallbackEnabled bool `yaml:"fallback_enabled" toml:"fallback_enabled" json:"fallback_enabled"`
}

// Config is the raw resilience configuration: optional defaults plus an
// ordered list of commands. A nil *Config is valid and means "built-in
// defaults, no commands".
type Config struct {
	Defaults *DefaultPolicy `yaml:"defaults" toml:"defaults" json:"defaults,omitempty"`
	Commands []CommandSpec  `yaml:"commands" toml:"commands" json:"commands"`
}

// ResolvedPolicy is the total, immutable policy of one command. Sub-policies
// are returned by value so callers cannot alter the stored policy.
type ResolvedPolicy struct {
	name            string
	threadPool      ThreadPoolPolicy
	circuitBreaker  CircuitBreakerPolicy
	metrics         MetricsPolicy
	fallbackEnabled bool
}

// NewResolvedPolicy builds a resolved policy from fully populated sub-policies.
// It performs no validation; the compiler is the only producer in normal use.
func NewResolvedPolicy(name string, tp ThreadPoolPolicy, cb CircuitBreakerPolicy, m MetricsPolicy, fallback bool) *ResolvedPolicy {
	return &ResolvedPolicy{
		name:            name,
		threadPool:      tp,
		circuitBreaker:  cb,
		metrics:         m,
		fallbackEnabled: fallback,
	}
}

// Name returns the command name.
func (p *ResolvedPolicy) Name() string { return p.name }

// ThreadPool returns the command's thread pool policy.
func (p *ResolvedPolicy) ThreadPool() ThreadPoolPolicy { return p.threadPool }

// CircuitBreaker returns the command's circuit breaker policy.
func (p *ResolvedPolicy) CircuitBreaker() CircuitBreakerPolicy { return p.circuitBreaker }

// Metrics returns the command's metrics policy.
func (p *ResolvedPolicy) Metrics() MetricsPolicy { return p.metrics }

// FallbackEnabled reports whether the command's fallback is enabled.
func (p *ResolvedPolicy) FallbackEnabled() bool { return p.fallbackEnabled }

// View is the exported, serialisable form of a ResolvedPolicy.
type View struct {
	Name            string               `json:"name" yaml:"name"`
	ThreadPool      ThreadPoolPolicy     `json:"thread_pool" yaml:"thread_pool"`
	CircuitBreaker  CircuitBreakerPolicy `json:"circuit_breaker" yaml:"circuit_breaker"`
	Metrics         MetricsPolicy        `json:"metrics" yaml:"metrics"`
	FallbackEnabled bool                 `json:"fallback_enabled" yaml:"fallback_enabled"`
}

// View returns a copy of the policy suitable for encoding.
func (p *ResolvedPolicy) View() View {
	return View{
		Name:            p.name,
		ThreadPool:      p.threadPool,
		CircuitBreaker:  p.circuitBreaker,
		Metrics:         p.metrics,
		FallbackEnabled: p.fallbackEnabled,
	}
}

// Snapshot is the result of one compilation: the completed defaults and one
// resolved policy per command. A Snapshot is never modified after it is built.
type Snapshot struct {
	defaults Defaults
	policies map[string]*ResolvedPolicy
	names    []string
	version  string
}

// NewSnapshot assembles a snapshot. The policies map is taken over by the
// snapshot and must not be modified afterwards.
func NewSnapshot(defaults Defaults, policies map[string]*ResolvedPolicy, version string) *Snapshot {
	names := make([]string, 0, len(policies))
	for name := range policies {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Snapshot{
		defaults: defaults,
		policies: policies,
		names:    names,
		version:  version,
	}
}

// Defaults returns the completed default policy the snapshot was built from.
func (s *Snapshot) Defaults() Defaults { return s.defaults }

// Get returns the resolved policy for name.
func (s *Snapshot) Get(name string) (*ResolvedPolicy, bool) {
	p, ok := s.policies[name]
	return p, ok
}

// Names returns the command names in sorted order.
func (s *Snapshot) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of commands in the snapshot.
func (s *Snapshot) Len() int { return len(s.policies) }

// Version is a content hash of the snapshot. Equal inputs give equal versions.
func (s *Snapshot) Version() string { return s.version }

// Policies returns the resolved policies sorted by name.
func (s *Snapshot) Policies() []*ResolvedPolicy {
	out := make([]*ResolvedPolicy, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.policies[name])
	}
	return out
}

// Document is the serialisable form of a snapshot, used by the CLI, the
// admin API and the install history.
type Document struct {
	Version  string   `json:"version" yaml:"version"`
	Defaults Defaults `json:"defaults" yaml:"defaults"`
	Commands []View   `json:"commands" yaml:"commands"`
}

// Document returns the serialisable form of the snapshot.
func (s *Snapshot) Document() Document {
	doc := Document{
		Version:  s.version,
		Defaults: s.defaults,
		Commands: make([]View, 0, len(s.names)),
	}
	for _, name := range s.names {
		doc.Commands = append(doc.Commands, s.policies[name].View())
	}
	return doc
}
