package database

import (
	"database/sql"
	"fmt"
)

// InsertTouchEvents writes a batch of touch records in one transaction
func (db *DB) InsertTouchEvents(records []*TouchEventRecord) error {
	if len(records) == 0 {
		return nil
	}

	return db.ExecTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO touch_events (
				session_id, touch_id, phase, frame,
				webcam_x, webcam_y, screen_x, screen_y, world_x, world_y,
				area, intensity, in_bounds, occurred_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare touch insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range records {
			result, err := stmt.Exec(
				r.SessionID, r.TouchID, r.Phase, r.Frame,
				r.WebcamX, r.WebcamY, r.ScreenX, r.ScreenY, r.WorldX, r.WorldY,
				r.Area, r.Intensity, r.InBounds, r.OccurredAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert touch %s: %w", r.TouchID, err)
			}
			if id, err := result.LastInsertId(); err == nil {
				r.ID = id
			}
		}
		return nil
	})
}

// GetSessionTouches returns a session's touch events in insertion order
func (db *DB) GetSessionTouches(sessionID string, limit int) ([]*TouchEventRecord, error) {
	rows, err := db.conn.Query(`
		SELECT id, session_id, touch_id, phase, frame,
		       webcam_x, webcam_y, screen_x, screen_y, world_x, world_y,
		       area, intensity, in_bounds, occurred_at
		FROM touch_events
		WHERE session_id = ?
		ORDER BY id ASC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query touches: %w", err)
	}
	defer rows.Close()

	touches := []*TouchEventRecord{}
	for rows.Next() {
		r := &TouchEventRecord{}
		err := rows.Scan(
			&r.ID, &r.SessionID, &r.TouchID, &r.Phase, &r.Frame,
			&r.WebcamX, &r.WebcamY, &r.ScreenX, &r.ScreenY, &r.WorldX, &r.WorldY,
			&r.Area, &r.Intensity, &r.InBounds, &r.OccurredAt,
		)
		if err != nil {
			return nil, err
		}
		touches = append(touches, r)
	}

	return touches, rows.Err()
}

// GetTouchPhaseCounts returns how many events of each phase a session recorded
func (db *DB) GetTouchPhaseCounts(sessionID string) (map[string]int64, error) {
	rows, err := db.conn.Query(`
		SELECT phase, COUNT(*)
		FROM touch_events
		WHERE session_id = ?
		GROUP BY phase
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count touches: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var phase string
		var count int64
		if err := rows.Scan(&phase, &count); err != nil {
			return nil, err
		}
		counts[phase] = count
	}

	return counts, rows.Err()
}
