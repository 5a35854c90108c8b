package properties

import (
	"fmt"
	"sync"
)

// Sink receives properties, typically a dynamic configuration store read by
// the execution library.
type Sink interface {
	SetProperty(key Key, value Value) error
}

// Emit writes every entry of set to sink, defaults first. It stops at the
// first error.
func Emit(set *Set, sink Sink) error {
	for _, e := range set.Entries() {
		if e.Key.Param.Kind() != e.Value.Kind() {
			return fmt.Errorf("property %s: kind %s does not match value kind %s", e.Key, e.Key.Param.Kind(), e.Value.Kind())
		}
		if err := sink.SetProperty(e.Key, e.Value); err != nil {
			return fmt.Errorf("set property %s: %w", e.Key.Render(set.prefix), err)
		}
	}
	return nil
}

// MapSink is an in-memory Sink keyed by Key. It is safe for concurrent use.
type MapSink struct {
	mu     sync.RWMutex
	values map[Key]Value
}

// NewMapSink creates an empty MapSink.
func NewMapSink() *MapSink {
	return &MapSink{values: make(map[Key]Value)}
}

// SetProperty stores value under key.
func (m *MapSink) SetProperty(key Key, value Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Get returns the value stored under key.
func (m *MapSink) Get(key Key) (Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// Len returns the number of stored properties.
func (m *MapSink) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}
