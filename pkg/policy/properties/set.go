package properties

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"mercator-hq/bulwark/pkg/policy"
)

// DefaultPrefix is prepended to every rendered key.
const DefaultPrefix = "hystrix.command"

// Scope is either DefaultScope or a command name.
type Scope string

// DefaultScope addresses the global default property set.
const DefaultScope Scope = "default"

// Key addresses one property: a parameter within a scope.
type Key struct {
	Scope Scope
	Param Param
}

// String renders the key with DefaultPrefix, e.g.
// "hystrix.command.orders.coreSize".
func (k Key) String() string {
	return k.Render(DefaultPrefix)
}

// Render renders the key under prefix. An empty prefix omits it.
func (k Key) Render(prefix string) string {
	if prefix == "" {
		return fmt.Sprintf("%s.%s", k.Scope, k.Param)
	}
	return fmt.Sprintf("%s.%s.%s", prefix, k.Scope, k.Param)
}

// Values returns the full parameter mapping of a resolved policy.
func Values(p *policy.ResolvedPolicy) map[Param]Value {
	return values(p.ThreadPool(), p.CircuitBreaker(), p.Metrics())
}

// DefaultValues returns the full parameter mapping of completed defaults.
func DefaultValues(d policy.Defaults) map[Param]Value {
	return values(d.ThreadPool, d.CircuitBreaker, d.Metrics)
}

func values(tp policy.ThreadPoolPolicy, cb policy.CircuitBreakerPolicy, m policy.MetricsPolicy) map[Param]Value {
	return map[Param]Value{
		CoreSize:                               Int(tp.Concurrency),
		MaxQueueSize:                           Int(tp.MaxQueueSize),
		QueueSizeRejectionThreshold:            Int(tp.DynamicQueueSize),
		IsolationStrategy:                      String(tp.Isolation.String()),
		ExecutionTimeout:                       Millis(tp.Timeout),
		ExecutionTimeoutEnabled:                Bool(true),
		InterruptOnTimeout:                     Bool(true),
		SemaphoreMaxConcurrentRequests:         Int(tp.Concurrency),
		CircuitBreakerEnabled:                  Bool(true),
		CircuitBreakerRequestVolumeThreshold:   Int(cb.RequestVolumeThreshold),
		CircuitBreakerErrorThresholdPercentage: Int(cb.ErrorThresholdPercentage),
		CircuitBreakerSleepWindow:              Millis(cb.SleepWindow),
		RollingStatsWindow:                     Millis(m.StatsWindow),
		RollingStatsNumBuckets:                 Int(m.NumBuckets),
		RollingPercentileEnabled:               Bool(true),
		RollingPercentileWindow:                Millis(m.PercentileWindow),
		RollingPercentileNumBuckets:            Int(m.NumBuckets),
		RollingPercentileBucketSize:            Int(m.PercentileBucketSize),
		HealthSnapshotInterval:                 Millis(m.HealthSnapshotInterval),
	}
}

// Set is the flat property view of a snapshot: one global default set plus
// one override set per command.
type Set struct {
	prefix    string
	version   string
	defaults  map[Param]Value
	overrides map[string]map[Param]Value
	commands  []string
}

type renderOptions struct {
	prefix  string
	compact bool
}

// Option configures Render.
type Option func(*renderOptions)

// WithPrefix sets the key prefix. The default is DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(o *renderOptions) {
		o.prefix = prefix
	}
}

// WithCompact omits per-command values equal to the global default.
// Effective resolution is unchanged.
func WithCompact() Option {
	return func(o *renderOptions) {
		o.compact = true
	}
}

// Render builds the property set of snap.
func Render(snap *policy.Snapshot, opts ...Option) *Set {
	o := renderOptions{prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Set{
		prefix:    o.prefix,
		version:   snap.Version(),
		defaults:  DefaultValues(snap.Defaults()),
		overrides: make(map[string]map[Param]Value, snap.Len()),
		commands:  snap.Names(),
	}

	for _, p := range snap.Policies() {
		vals := Values(p)
		if o.compact {
			for param, v := range vals {
				if s.defaults[param] == v {
					delete(vals, param)
				}
			}
		}
		s.overrides[p.Name()] = vals
	}
	return s
}

// Prefix returns the key prefix of the set.
func (s *Set) Prefix() string { return s.prefix }

// Version returns the version of the snapshot the set was rendered from.
func (s *Set) Version() string { return s.version }

// Commands returns the command scopes in sorted order.
func (s *Set) Commands() []string {
	out := make([]string, len(s.commands))
	copy(out, s.commands)
	return out
}

// Default returns the global default value of param.
func (s *Set) Default(param Param) Value {
	return s.defaults[param]
}

// Override returns the value set for param in the command's own scope.
func (s *Set) Override(command string, param Param) (Value, bool) {
	v, ok := s.overrides[command][param]
	return v, ok
}

// Effective returns the value the execution library sees for command:
// the command override when present, otherwise the global default.
// It returns false for commands not in the set.
func (s *Set) Effective(command string, param Param) (Value, bool) {
	over, known := s.overrides[command]
	if !known {
		return Value{}, false
	}
	if v, ok := over[param]; ok {
		return v, true
	}
	return s.defaults[param], true
}

// Entry is one rendered property.
type Entry struct {
	Key   Key
	Value Value
}

// Entries returns every property: defaults first, then each command in
// sorted order, parameters in emission order.
func (s *Set) Entries() []Entry {
	out := make([]Entry, 0, int(numParams)*(1+len(s.commands)))
	for _, p := range Params() {
		out = append(out, Entry{Key: Key{Scope: DefaultScope, Param: p}, Value: s.defaults[p]})
	}
	for _, cmd := range s.commands {
		for _, p := range Params() {
			if v, ok := s.overrides[cmd][p]; ok {
				out = append(out, Entry{Key: Key{Scope: Scope(cmd), Param: p}, Value: v})
			}
		}
	}
	return out
}

// Map returns the rendered keys and their plain values.
func (s *Set) Map() map[string]any {
	out := make(map[string]any)
	for _, e := range s.Entries() {
		out[e.Key.Render(s.prefix)] = e.Value.Interface()
	}
	return out
}

// WriteTo writes the set in .properties format, one key per line, sorted
// by key.
func (s *Set) WriteTo(w io.Writer) (int64, error) {
	entries := s.Entries()
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.Key.Render(s.prefix)+"="+e.Value.String())
	}
	sort.Strings(lines)

	bw := bufio.NewWriter(w)
	var n int64
	header := fmt.Sprintf("# snapshot %s\n", s.version)
	written, err := bw.WriteString(header)
	n += int64(written)
	if err != nil {
		return n, err
	}
	for _, line := range lines {
		written, err := bw.WriteString(line + "\n")
		n += int64(written)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}
