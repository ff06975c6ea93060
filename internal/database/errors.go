package database

import (
	"database/sql"
	"fmt"
	"time"
)

// LogError records an error, optionally tied to a session
func (db *DB) LogError(entry *ErrorLog) (int64, error) {
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now()
	}

	var id int64
	err := db.ExecTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			INSERT INTO error_log (
				session_id, category, severity, component, message,
				error_text, recoverable, occurred_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, entry.SessionID, entry.Category, entry.Severity, entry.Component, entry.Message,
			entry.ErrorText, entry.Recoverable, entry.OccurredAt)
		if err != nil {
			return err
		}

		id, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to log error: %w", err)
	}

	entry.ID = id
	return id, nil
}

// GetRecentErrors retrieves the most recent errors
func (db *DB) GetRecentErrors(limit int) ([]*ErrorLog, error) {
	rows, err := db.conn.Query(`
		SELECT id, session_id, category, severity, component, message,
		       error_text, recoverable, occurred_at
		FROM error_log
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query errors: %w", err)
	}
	defer rows.Close()

	errors := []*ErrorLog{}
	for rows.Next() {
		e := &ErrorLog{}
		err := rows.Scan(
			&e.ID, &e.SessionID, &e.Category, &e.Severity, &e.Component, &e.Message,
			&e.ErrorText, &e.Recoverable, &e.OccurredAt,
		)
		if err != nil {
			return nil, err
		}
		errors = append(errors, e)
	}

	return errors, rows.Err()
}

// GetErrorCountsByCategory returns error totals per category
func (db *DB) GetErrorCountsByCategory() (map[string]int64, error) {
	rows, err := db.conn.Query(`
		SELECT category, COUNT(*)
		FROM error_log
		GROUP BY category
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count errors: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var category string
		var count int64
		if err := rows.Scan(&category, &count); err != nil {
			return nil, err
		}
		counts[category] = count
	}

	return counts, rows.Err()
}
