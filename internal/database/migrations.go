package database

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database schema migration
type Migration struct {
	Version     int
	Description string
	Up          func(*sql.Tx) error
	Down        func(*sql.Tx) error
}

// migrations is the ordered list of all database migrations
var migrations = []Migration{
	{
		Version:     1,
		Description: "Create schema_version table",
		Up:          migration001Up,
		Down:        migration001Down,
	},
	{
		Version:     2,
		Description: "Create sessions table",
		Up:          migration002Up,
		Down:        migration002Down,
	},
	{
		Version:     3,
		Description: "Create touch_events table",
		Up:          migration003Up,
		Down:        migration003Down,
	},
	{
		Version:     4,
		Description: "Create calibration_history table",
		Up:          migration004Up,
		Down:        migration004Down,
	},
	{
		Version:     5,
		Description: "Create error_log table",
		Up:          migration005Up,
		Down:        migration005Down,
	},
}

// LatestVersion is the schema version after all migrations
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

// RunMigrations runs all pending database migrations
func (db *DB) RunMigrations() error {
	currentVersion, err := db.getCurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	db.logger.Debug(fmt.Sprintf("Current database version: %d", currentVersion))

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		db.logger.Info(fmt.Sprintf("Running migration %d: %s", migration.Version, migration.Description))

		err := db.ExecTx(func(tx *sql.Tx) error {
			if err := migration.Up(tx); err != nil {
				return fmt.Errorf("migration %d failed: %w", migration.Version, err)
			}

			_, err := tx.Exec(`
				INSERT INTO schema_version (version, description, applied_at)
				VALUES (?, ?, ?)
			`, migration.Version, migration.Description, time.Now())

			return err
		})

		if err != nil {
			return err
		}
	}

	return nil
}

// RollbackTo reverts migrations above version, newest first
func (db *DB) RollbackTo(version int) error {
	currentVersion, err := db.getCurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if migration.Version <= version || migration.Version > currentVersion {
			continue
		}

		db.logger.Info(fmt.Sprintf("Reverting migration %d: %s", migration.Version, migration.Description))

		err := db.ExecTx(func(tx *sql.Tx) error {
			if err := migration.Down(tx); err != nil {
				return fmt.Errorf("revert %d failed: %w", migration.Version, err)
			}
			if migration.Version == 1 {
				return nil
			}
			_, err := tx.Exec(`DELETE FROM schema_version WHERE version = ?`, migration.Version)
			return err
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// getCurrentVersion returns the current schema version
func (db *DB) getCurrentVersion() (int, error) {
	// Check if schema_version table exists
	var tableExists bool
	err := db.conn.QueryRow(`
		SELECT COUNT(*) > 0
		FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableExists)

	if err != nil {
		return 0, err
	}

	if !tableExists {
		return 0, nil
	}

	var version int
	err = db.conn.QueryRow(`
		SELECT COALESCE(MAX(version), 0)
		FROM schema_version
	`).Scan(&version)

	if err != nil {
		return 0, err
	}

	return version, nil
}

// Migration 001: Schema version tracking table
func migration001Up(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version INTEGER NOT NULL UNIQUE,
			description TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	return err
}

func migration001Down(tx *sql.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS schema_version`)
	return err
}

// Migration 002: Detector sessions
func migration002Up(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE sessions (
			id TEXT PRIMARY KEY,
			capture_source TEXT NOT NULL,
			profile TEXT,
			settings_json TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			finished_at DATETIME,
			frames_processed INTEGER DEFAULT 0,
			touches INTEGER DEFAULT 0,
			errors INTEGER DEFAULT 0,
			status TEXT DEFAULT 'running'
		);

		CREATE INDEX idx_sessions_started ON sessions(started_at);
		CREATE INDEX idx_sessions_status ON sessions(status);
	`)
	return err
}

func migration002Down(tx *sql.Tx) error {
	_, err := tx.Exec(`
		DROP INDEX IF EXISTS idx_sessions_status;
		DROP INDEX IF EXISTS idx_sessions_started;
		DROP TABLE IF EXISTS sessions;
	`)
	return err
}

// Migration 003: Touch events
func migration003Up(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE touch_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			touch_id TEXT NOT NULL,
			phase TEXT NOT NULL,
			frame INTEGER NOT NULL,
			webcam_x REAL NOT NULL,
			webcam_y REAL NOT NULL,
			screen_x REAL NOT NULL,
			screen_y REAL NOT NULL,
			world_x REAL NOT NULL,
			world_y REAL NOT NULL,
			area INTEGER NOT NULL,
			intensity REAL NOT NULL,
			in_bounds BOOLEAN NOT NULL,
			occurred_at DATETIME NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		);

		CREATE INDEX idx_touch_session ON touch_events(session_id);
		CREATE INDEX idx_touch_id ON touch_events(touch_id);
		CREATE INDEX idx_touch_occurred ON touch_events(occurred_at);
	`)
	return err
}

func migration003Down(tx *sql.Tx) error {
	_, err := tx.Exec(`
		DROP INDEX IF EXISTS idx_touch_occurred;
		DROP INDEX IF EXISTS idx_touch_id;
		DROP INDEX IF EXISTS idx_touch_session;
		DROP TABLE IF EXISTS touch_events;
	`)
	return err
}

// Migration 004: Calibration history
func migration004Up(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE calibration_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			profile TEXT NOT NULL DEFAULT '',
			settings_json TEXT NOT NULL,
			quad_area REAL NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX idx_calibration_profile ON calibration_history(profile, created_at);
	`)
	return err
}

func migration004Down(tx *sql.Tx) error {
	_, err := tx.Exec(`
		DROP INDEX IF EXISTS idx_calibration_profile;
		DROP TABLE IF EXISTS calibration_history;
	`)
	return err
}

// Migration 005: Error log
func migration005Up(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE error_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT,
			category TEXT NOT NULL,
			severity TEXT NOT NULL,
			component TEXT NOT NULL,
			message TEXT NOT NULL,
			error_text TEXT,
			recoverable BOOLEAN DEFAULT 1,
			occurred_at DATETIME NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE SET NULL
		);

		CREATE INDEX idx_error_session ON error_log(session_id);
		CREATE INDEX idx_error_category ON error_log(category);
		CREATE INDEX idx_error_occurred ON error_log(occurred_at);
	`)
	return err
}

func migration005Down(tx *sql.Tx) error {
	_, err := tx.Exec(`
		DROP INDEX IF EXISTS idx_error_occurred;
		DROP INDEX IF EXISTS idx_error_category;
		DROP INDEX IF EXISTS idx_error_session;
		DROP TABLE IF EXISTS error_log;
	`)
	return err
}
