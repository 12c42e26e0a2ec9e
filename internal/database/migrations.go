package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"jordanella.com/runner-collector/internal/logging"
)

// Migration represents a database schema migration
type Migration struct {
	Version     int
	Description string
	Up          func(*sql.Tx, Driver) error
	Down        func(*sql.Tx, Driver) error
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
		Description: "Create samples table",
		Up:          migration003Up,
		Down:        migration003Down,
	},
}

// LatestVersion is the schema version after all migrations ran
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

// RunMigrations runs all pending database migrations
func (db *DB) RunMigrations() error {
	logger := logging.NewLogger("Database")

	// Get current version
	currentVersion, err := db.getCurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	logger.DebugWithContext("Current database version", map[string]interface{}{
		"version": currentVersion,
		"driver":  string(db.driver),
	})

	// Run pending migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		err := db.ExecTx(func(tx *sql.Tx) error {
			// Run migration
			if err := migration.Up(tx, db.driver); err != nil {
				return fmt.Errorf("migration %d failed: %w", migration.Version, err)
			}

			// Record migration
			_, err := tx.Exec(`
				INSERT INTO schema_version (version, description, applied_at)
				VALUES (?, ?, ?)
			`, migration.Version, migration.Description, time.Now())

			return err
		})

		if err != nil {
			return err
		}

		logger.InfoWithContext("Migration applied", map[string]interface{}{
			"version":     migration.Version,
			"description": migration.Description,
		})
	}

	return nil
}

// getCurrentVersion returns the current schema version
func (db *DB) getCurrentVersion() (int, error) {
	// Check if schema_version table exists
	query := `
		SELECT COUNT(*)
		FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`
	if db.driver == DriverMySQL {
		query = `
			SELECT COUNT(*)
			FROM information_schema.tables
			WHERE table_schema = DATABASE() AND table_name = 'schema_version'
		`
	}

	var tables int
	if err := db.conn.QueryRow(query).Scan(&tables); err != nil {
		return 0, err
	}
	if tables == 0 {
		return 0, nil
	}

	// Get latest version
	var version int
	err := db.conn.QueryRow(`
		SELECT COALESCE(MAX(version), 0)
		FROM schema_version
	`).Scan(&version)

	if err != nil {
		return 0, err
	}

	return version, nil
}

// dialect rewrites the sqlite flavoured DDL below for the target driver
func dialect(driver Driver, ddl string) string {
	if driver != DriverMySQL {
		return ddl
	}
	r := strings.NewReplacer(
		"INTEGER PRIMARY KEY AUTOINCREMENT", "BIGINT PRIMARY KEY AUTO_INCREMENT",
		"TEXT PRIMARY KEY", "VARCHAR(64) PRIMARY KEY",
		"TEXT NOT NULL REFERENCES", "VARCHAR(64) NOT NULL REFERENCES",
	)
	return r.Replace(ddl)
}

// execAll runs statements one by one; the mysql driver rejects multi-statement strings by default
func execAll(tx *sql.Tx, driver Driver, statements ...string) error {
	for _, stmt := range statements {
		if _, err := tx.Exec(dialect(driver, stmt)); err != nil {
			return err
		}
	}
	return nil
}

// Migration 001: Schema version tracking table
func migration001Up(tx *sql.Tx, driver Driver) error {
	return execAll(tx, driver, `
		CREATE TABLE IF NOT EXISTS schema_version (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version INTEGER NOT NULL UNIQUE,
			description TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
}

func migration001Down(tx *sql.Tx, driver Driver) error {
	return execAll(tx, driver, `DROP TABLE IF EXISTS schema_version`)
}

// Migration 002: One row per collection session
func migration002Up(tx *sql.Tx, driver Driver) error {
	return execAll(tx, driver, `
		CREATE TABLE sessions (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			ended_at DATETIME NOT NULL,

			-- Calibrated region in screen coordinates
			region_x INTEGER NOT NULL,
			region_y INTEGER NOT NULL,
			region_width INTEGER NOT NULL,
			region_height INTEGER NOT NULL,

			grid_columns INTEGER NOT NULL,
			sample_count INTEGER NOT NULL DEFAULT 0,
			action_count INTEGER NOT NULL DEFAULT 0
		)
	`, `CREATE INDEX idx_sessions_started ON sessions(started_at)`)
}

func migration002Down(tx *sql.Tx, driver Driver) error {
	return execAll(tx, driver, `DROP TABLE IF EXISTS sessions`)
}

// Migration 003: Recorded samples
func migration003Up(tx *sql.Tx, driver Driver) error {
	return execAll(tx, driver, `
		CREATE TABLE samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			grid TEXT NOT NULL,
			action INTEGER NOT NULL,
			player_found BOOLEAN NOT NULL DEFAULT 1,
			game_over BOOLEAN NOT NULL DEFAULT 0,
			shop_prompt BOOLEAN NOT NULL DEFAULT 0,
			captured_at DATETIME NOT NULL
		)
	`, `CREATE UNIQUE INDEX idx_samples_session_seq ON samples(session_id, seq)`)
}

func migration003Down(tx *sql.Tx, driver Driver) error {
	return execAll(tx, driver, `DROP TABLE IF EXISTS samples`)
}
