package history

import (
	"context"
	"sync"
)

// MemoryStore keeps history in process memory. Entries are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Record appends a copy of e.
func (s *MemoryStore) Record(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *e
	s.entries = append(s.entries, &c)
	return nil
}

// List returns copies of up to limit entries, newest first.
func (s *MemoryStore) List(_ context.Context, limit int) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*Entry, 0, n)
	for i := len(s.entries) - 1; i >= 0 && len(out) < n; i-- {
		c := *s.entries[i]
		out = append(out, &c)
	}
	return out, nil
}

// Get returns a copy of the entry with the given ID.
func (s *MemoryStore) Get(_ context.Context, id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.ID == id {
			c := *e
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

// Prune keeps the newest keep entries.
func (s *MemoryStore) Prune(_ context.Context, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep <= 0 || len(s.entries) <= keep {
		return 0, nil
	}
	removed := len(s.entries) - keep
	s.entries = append([]*Entry(nil), s.entries[removed:]...)
	return int64(removed), nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
