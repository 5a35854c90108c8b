package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mercator-hq/bulwark/pkg/config"
	"mercator-hq/bulwark/pkg/policy"
)

// ErrNotFound is returned by Get when no entry has the requested ID.
var ErrNotFound = errors.New("history entry not found")

// Entry records one snapshot install.
type Entry struct {
	// ID is a random UUID assigned when the entry is created.
	ID string `json:"id"`

	// Version is the snapshot version.
	Version string `json:"version"`

	// Operation is "install" or "replace".
	Operation string `json:"operation"`

	// Source is the configuration source mode: inline, file or git.
	Source string `json:"source"`

	// Revision identifies the input: a commit SHA in git mode, a file path
	// in file mode, empty for inline configuration.
	Revision string `json:"revision,omitempty"`

	// InstalledAt is when the snapshot was installed (UTC).
	InstalledAt time.Time `json:"installed_at"`

	// Commands is the number of resolved commands.
	Commands int `json:"commands"`

	// Document is the JSON rendering of the snapshot.
	Document json.RawMessage `json:"document,omitempty"`
}

// NewEntry builds an entry for snap with a fresh ID.
func NewEntry(snap *policy.Snapshot, operation, source, revision string) (*Entry, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot cannot be nil")
	}
	doc, err := json.Marshal(snap.Document())
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot document: %w", err)
	}
	return &Entry{
		ID:          uuid.NewString(),
		Version:     snap.Version(),
		Operation:   operation,
		Source:      source,
		Revision:    revision,
		InstalledAt: time.Now().UTC(),
		Commands:    snap.Len(),
		Document:    doc,
	}, nil
}

// Store persists install history.
type Store interface {
	// Record appends an entry.
	Record(ctx context.Context, e *Entry) error

	// List returns up to limit entries, newest first. A non-positive limit
	// returns every entry.
	List(ctx context.Context, limit int) ([]*Entry, error)

	// Get returns the entry with the given ID or ErrNotFound.
	Get(ctx context.Context, id string) (*Entry, error)

	// Prune deletes all but the newest keep entries and returns how many
	// were removed. A non-positive keep removes nothing.
	Prune(ctx context.Context, keep int) (int64, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Open returns the store selected by cfg.Driver.
func Open(cfg config.HistoryConfig) (Store, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemoryStore(), nil
	case DriverModernc, DriverCGO:
		return NewSQLiteStore(SQLiteConfig{
			Driver:      cfg.Driver,
			Path:        cfg.Path,
			BusyTimeout: cfg.BusyTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown history driver %q", cfg.Driver)
	}
}
