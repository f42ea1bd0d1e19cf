// ABOUTME: Database schema for sync state, run history and attribute backups
// ABOUTME: Tables are created idempotently on every open
package db

import (
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS sync_state (
	service TEXT PRIMARY KEY,
	last_sync_time DATETIME,
	last_run_id TEXT,
	status TEXT CHECK(status IN ('idle', 'syncing', 'error')),
	error_message TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sync_log (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	service TEXT NOT NULL,
	contacts INTEGER NOT NULL DEFAULT 0,
	entries INTEGER NOT NULL DEFAULT 0,
	images_uploaded INTEGER NOT NULL DEFAULT 0,
	images_considered INTEGER NOT NULL DEFAULT 0,
	attributes INTEGER NOT NULL DEFAULT 0,
	attribute_source TEXT,
	status TEXT NOT NULL CHECK(status IN ('ok', 'error')),
	message TEXT,
	started_at DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sync_log_service ON sync_log(service, finished_at);

CREATE TABLE IF NOT EXISTS attributes (
	phonebook_id INTEGER NOT NULL,
	uid TEXT NOT NULL,
	number TEXT NOT NULL,
	number_id INTEGER NOT NULL DEFAULT 0,
	type TEXT,
	quickdial TEXT,
	vanity TEXT,
	name TEXT,
	saved_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (phonebook_id, uid, number)
);
`

// InitSchema creates all tables.
func InitSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}
