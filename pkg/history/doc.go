// Package history records every policy snapshot installed into the registry.
//
// Each install produces an Entry with a random UUID, the snapshot version,
// the source it came from and the JSON document of the resolved policies.
// Entries are stored in SQLite, using either the pure Go modernc.org/sqlite
// driver ("sqlite", the default) or the cgo github.com/mattn/go-sqlite3
// driver ("sqlite3"), or in memory for tests and ephemeral runs.
//
// A Pruner keeps the store bounded by deleting all but the newest entries on
// a cron schedule.
package history
