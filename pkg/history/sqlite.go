package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// SQLite driver names.
const (
	// DriverModernc is the pure Go driver from modernc.org/sqlite.
	DriverModernc = "sqlite"

	// DriverCGO is the cgo driver from github.com/mattn/go-sqlite3.
	DriverCGO = "sqlite3"
)

// SQLiteConfig configures a SQLiteStore.
type SQLiteConfig struct {
	// Driver is DriverModernc or DriverCGO. Default: DriverModernc
	Driver string

	// Path is the database file. Parent directories are created.
	Path string

	// BusyTimeout is how long a writer waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration
}

// SQLiteStore persists history in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	cfg    SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore opens the database and creates the schema.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Driver == "" {
		cfg.Driver = DriverModernc
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("history database path is required")
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// One writer at a time; keeps PRAGMAs on a single connection.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:     db,
		cfg:    cfg,
		logger: slog.Default().With("component", "history.sqlite"),
	}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("History store initialized",
		"driver", cfg.Driver,
		"path", cfg.Path,
	)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.cfg.BusyTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := s.db.Exec(insertSchemaVersion, SchemaVersion); err != nil {
		return fmt.Errorf("insert schema version: %w", err)
	}

	var version int
	if err := s.db.QueryRow(getSchemaVersion).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != SchemaVersion {
		return fmt.Errorf("schema version mismatch: expected %d, got %d", SchemaVersion, version)
	}
	return nil
}

// Record inserts e.
func (s *SQLiteStore) Record(ctx context.Context, e *Entry) error {
	_, err := s.db.ExecContext(ctx, insertEntry,
		e.ID, e.Version, e.Operation, e.Source, nullable(e.Revision),
		e.InstalledAt.UnixNano(), e.Commands, string(e.Document),
	)
	if err != nil {
		return fmt.Errorf("record history entry %s: %w", e.ID, err)
	}
	return nil
}

// List returns up to limit entries, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*Entry, error) {
	query := selectEntries
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return out, nil
}

// Get returns the entry with the given ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Entry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, selectEntry, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// Prune deletes all but the newest keep entries.
func (s *SQLiteStore) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, pruneEntries, keep)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e        Entry
		revision sql.NullString
		document sql.NullString
		nanos    int64
	)
	err := row.Scan(&e.ID, &e.Version, &e.Operation, &e.Source, &revision, &nanos, &e.Commands, &document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan history entry: %w", err)
	}
	e.Revision = revision.String
	e.InstalledAt = time.Unix(0, nanos).UTC()
	if document.Valid && document.String != "" {
		e.Document = []byte(document.String)
	}
	return &e, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
