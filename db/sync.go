// ABOUTME: Database operations for sync_state and sync_log tables
// ABOUTME: Tracks the status of each service and records a summary of every run
package db

import (
	"database/sql"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Sync statuses stored in sync_state.
const (
	StatusIdle    = "idle"
	StatusSyncing = "syncing"
	StatusError   = "error"
)

// SyncState represents the sync state for a service.
type SyncState struct {
	Service      string
	LastSyncTime *time.Time
	LastRunID    *string
	Status       string
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RunRecord summarizes one completed run.
type RunRecord struct {
	ID               uuid.UUID
	RunID            string
	Service          string
	Contacts         int
	Entries          int
	ImagesUploaded   int
	ImagesConsidered int
	Attributes       int
	AttributeSource  string
	Status           string
	Message          string
	StartedAt        time.Time
	FinishedAt       time.Time
}

// NewRunID returns a sortable identifier for a run.
func NewRunID() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// GetSyncState retrieves the sync state for a service.
func GetSyncState(db *sql.DB, service string) (*SyncState, error) {
	var state SyncState
	var lastSyncTime sql.NullTime
	var lastRunID sql.NullString
	var errorMessage sql.NullString

	err := db.QueryRow(`
		SELECT service, last_sync_time, last_run_id, status, error_message, created_at, updated_at
		FROM sync_state
		WHERE service = ?
	`, service).Scan(
		&state.Service,
		&lastSyncTime,
		&lastRunID,
		&state.Status,
		&errorMessage,
		&state.CreatedAt,
		&state.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}

	if lastSyncTime.Valid {
		state.LastSyncTime = &lastSyncTime.Time
	}
	if lastRunID.Valid {
		state.LastRunID = &lastRunID.String
	}
	if errorMessage.Valid {
		state.ErrorMessage = &errorMessage.String
	}

	return &state, nil
}

// ListSyncStates returns the state of every known service.
func ListSyncStates(db *sql.DB) ([]SyncState, error) {
	rows, err := db.Query(`SELECT service FROM sync_state ORDER BY service`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync states: %w", err)
	}
	var services []string
	for rows.Next() {
		var service string
		if err := rows.Scan(&service); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan sync state: %w", err)
		}
		services = append(services, service)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sync states: %w", err)
	}

	states := make([]SyncState, 0, len(services))
	for _, service := range services {
		state, err := GetSyncState(db, service)
		if err != nil {
			return nil, err
		}
		if state != nil {
			states = append(states, *state)
		}
	}
	return states, nil
}

// UpdateSyncStatus updates the sync status for a service.
func UpdateSyncStatus(db *sql.DB, service, status string, errorMsg *string) error {
	var errorMsgVal sql.NullString
	if errorMsg != nil {
		errorMsgVal = sql.NullString{String: *errorMsg, Valid: true}
	}

	_, err := db.Exec(`
		INSERT INTO sync_state (service, status, error_message, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(service) DO UPDATE SET
			status = excluded.status,
			error_message = excluded.error_message,
			updated_at = CURRENT_TIMESTAMP
	`, service, status, errorMsgVal)

	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}

	return nil
}

// MarkSynced records a successful run and resets the service to idle.
func MarkSynced(db *sql.DB, service, runID string) error {
	_, err := db.Exec(`
		INSERT INTO sync_state (service, last_sync_time, last_run_id, status, created_at, updated_at)
		VALUES (?, CURRENT_TIMESTAMP, ?, 'idle', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(service) DO UPDATE SET
			last_sync_time = CURRENT_TIMESTAMP,
			last_run_id = excluded.last_run_id,
			status = 'idle',
			error_message = NULL,
			updated_at = CURRENT_TIMESTAMP
	`, service, runID)

	if err != nil {
		return fmt.Errorf("failed to mark service synced: %w", err)
	}

	return nil
}

// RecordRun appends a run summary to sync_log.
func RecordRun(db *sql.DB, rec *RunRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	_, err := db.Exec(`
		INSERT INTO sync_log (id, run_id, service, contacts, entries, images_uploaded, images_considered,
			attributes, attribute_source, status, message, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID.String(),
		rec.RunID,
		rec.Service,
		rec.Contacts,
		rec.Entries,
		rec.ImagesUploaded,
		rec.ImagesConsidered,
		rec.Attributes,
		rec.AttributeSource,
		rec.Status,
		rec.Message,
		rec.StartedAt.UTC(),
		rec.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	return nil
}

// RecentRuns returns the latest run summaries, newest first.
func RecentRuns(db *sql.DB, limit int) ([]RunRecord, error) {
	rows, err := db.Query(`
		SELECT id, run_id, service, contacts, entries, images_uploaded, images_considered,
			attributes, COALESCE(attribute_source, ''), status, COALESCE(message, ''), started_at, finished_at
		FROM sync_log
		ORDER BY finished_at DESC, run_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var rec RunRecord
		var id string
		if err := rows.Scan(
			&id,
			&rec.RunID,
			&rec.Service,
			&rec.Contacts,
			&rec.Entries,
			&rec.ImagesUploaded,
			&rec.ImagesConsidered,
			&rec.Attributes,
			&rec.AttributeSource,
			&rec.Status,
			&rec.Message,
			&rec.StartedAt,
			&rec.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid run id %q: %w", id, err)
		}
		runs = append(runs, rec)
	}

	return runs, rows.Err()
}
