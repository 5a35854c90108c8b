package setter

import (
	"context"
	"sync"

	"github.com/failsafe-go/failsafe-go"

	"mercator-hq/bulwark/pkg/policy"
)

// SnapshotSource provides the currently installed snapshot.
// *registry.Registry satisfies it.
type SnapshotSource interface {
	Snapshot() *policy.Snapshot
}

type cached struct {
	setter   *Setter
	executor failsafe.Executor[any]
}

// Cache builds one executor per command on first use and keeps it for the
// lifetime of the installed snapshot. When the source starts serving a
// snapshot with a different version, every cached executor is dropped and
// rebuilt lazily, which also resets breaker state.
type Cache struct {
	source SnapshotSource
	opts   Options

	mu      sync.Mutex
	version string
	entries map[string]*cached
}

// NewCache creates a cache reading from source.
func NewCache(source SnapshotSource, opts Options) *Cache {
	return &Cache{
		source:  source,
		opts:    opts,
		entries: make(map[string]*cached),
	}
}

// get reads the snapshot under c.mu so that callers observe installs in
// order and an older snapshot can never replace the entries of a newer one.
func (c *Cache) get(command string) (*cached, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.source.Snapshot()
	if snap == nil {
		return nil, &policy.NotInitializedError{Command: command}
	}
	p, ok := snap.Get(command)
	if !ok {
		return nil, &policy.UnknownCommandError{Command: command}
	}

	if c.version != snap.Version() {
		c.version = snap.Version()
		c.entries = make(map[string]*cached)
	}

	if e, ok := c.entries[command]; ok {
		return e, nil
	}

	s := FromPolicy(p)
	e := &cached{setter: s, executor: s.Executor(c.opts)}
	c.entries[command] = e
	return e, nil
}

// Setter returns the Setter of command from the installed snapshot.
func (c *Cache) Setter(command string) (*Setter, error) {
	e, err := c.get(command)
	if err != nil {
		return nil, err
	}
	return e.setter, nil
}

// Executor returns the shared executor of command.
func (c *Cache) Executor(command string) (failsafe.Executor[any], error) {
	e, err := c.get(command)
	if err != nil {
		return nil, err
	}
	return e.executor, nil
}

// Get runs fn under the resilience policies of command.
func (c *Cache) Get(ctx context.Context, command string, fn func() (any, error)) (any, error) {
	exec, err := c.Executor(command)
	if err != nil {
		return nil, err
	}
	return exec.WithContext(ctx).Get(fn)
}

// Version returns the snapshot version the cache was last built for.
func (c *Cache) Version() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Len returns the number of cached executors.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
