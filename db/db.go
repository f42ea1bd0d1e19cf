// ABOUTME: Opens the card2box state database holding run history and attribute backups
// ABOUTME: The file lives under the XDG data home and is private to the user
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	_ "github.com/mattn/go-sqlite3"
)

// stateDSN enables WAL so status can be read while a run is writing.
const stateDSN = "?_journal_mode=WAL&_busy_timeout=5000"

// DefaultPath returns the state database location.
func DefaultPath() string {
	return filepath.Join(xdg.DataHome, "card2box", "state.db")
}

// OpenDatabase opens the state database at path and creates the sync_state,
// sync_log and attributes tables when missing. The attribute backup holds
// phone numbers, so a new parent directory is created with mode 0700.
func OpenDatabase(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+stateDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database %s: %w", path, err)
	}
	// One run at a time writes; a single connection keeps sqlite from locking itself.
	db.SetMaxOpenConns(1)

	if err := InitSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
