// ABOUTME: Local backup of special phonebook attributes
// ABOUTME: Keeps the last extracted table per phonebook as a fallback for the router archive
package db

import (
	"database/sql"
	"fmt"

	"github.com/harperreed/card2box/models"
)

// SaveAttributes replaces the stored attributes of a phonebook.
func SaveAttributes(db *sql.DB, phonebookID int, table models.AttributeTable) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM attributes WHERE phonebook_id = ?`, phonebookID); err != nil {
		return fmt.Errorf("failed to clear attributes: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO attributes (phonebook_id, uid, number, number_id, type, quickdial, vanity, name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare attribute insert: %w", err)
	}
	defer stmt.Close()

	for _, rows := range table {
		for _, a := range rows {
			if _, err := stmt.Exec(phonebookID, a.UID, a.Number, a.ID, a.Type, a.Quickdial, a.Vanity, a.Name); err != nil {
				return fmt.Errorf("failed to save attribute for %s: %w", a.UID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit attributes: %w", err)
	}
	return nil
}

// LoadAttributes returns the stored attributes of a phonebook.
func LoadAttributes(db *sql.DB, phonebookID int) (models.AttributeTable, error) {
	rows, err := db.Query(`
		SELECT uid, number, number_id, COALESCE(type, ''), COALESCE(quickdial, ''), COALESCE(vanity, ''), COALESCE(name, '')
		FROM attributes
		WHERE phonebook_id = ?
		ORDER BY uid, number_id, number
	`, phonebookID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attributes: %w", err)
	}
	defer rows.Close()

	table := make(models.AttributeTable)
	for rows.Next() {
		var a models.Attribute
		if err := rows.Scan(&a.UID, &a.Number, &a.ID, &a.Type, &a.Quickdial, &a.Vanity, &a.Name); err != nil {
			return nil, fmt.Errorf("failed to scan attribute: %w", err)
		}
		table[a.UID] = append(table[a.UID], a)
	}

	return table, rows.Err()
}
