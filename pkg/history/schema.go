package history

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the history tables. installed_at holds Unix nanoseconds so
// both SQLite drivers read it back identically.
const Schema = `
CREATE TABLE IF NOT EXISTS installs (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    version TEXT NOT NULL,
    operation TEXT NOT NULL,
    source TEXT NOT NULL,
    revision TEXT,
    installed_at INTEGER NOT NULL,
    commands INTEGER NOT NULL,
    document TEXT
);

CREATE INDEX IF NOT EXISTS idx_installs_version ON installs(version);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`

const (
	insertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`
	getSchemaVersion    = `SELECT MAX(version) FROM schema_version`

	insertEntry = `
		INSERT INTO installs (id, version, operation, source, revision, installed_at, commands, document)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	selectEntries = `
		SELECT id, version, operation, source, revision, installed_at, commands, document
		FROM installs ORDER BY seq DESC`

	selectEntry = `
		SELECT id, version, operation, source, revision, installed_at, commands, document
		FROM installs WHERE id = ?`

	pruneEntries = `
		DELETE FROM installs WHERE seq NOT IN (
			SELECT seq FROM installs ORDER BY seq DESC LIMIT ?
		)`
)
