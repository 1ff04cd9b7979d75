// Package db stores sessions and viewer groups in SQLite.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bane-dysta/Orbital-Viewer/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 2

// FileName is the database file inside the base directory.
const FileName = "orbview.db"

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Init initializes the SQLite database at baseDir/orbview.db and creates
// the exports directory next to it.
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	// Best-effort, may not work on all platforms
	_ = os.Chmod(baseDir, 0700)

	exportsDir := filepath.Join(baseDir, "exports")
	if err := os.MkdirAll(exportsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create exports directory: %w", err)
	}
	_ = os.Chmod(exportsDir, 0700)

	// Pragmas in the DSN apply to every pooled connection
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS sessions (
		  id          TEXT PRIMARY KEY,
		  title       TEXT NOT NULL,
		  title_norm  TEXT NOT NULL,
		  created_at  INTEGER NOT NULL,
		  updated_at  INTEGER NOT NULL,
		  deleted_at  INTEGER
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_title_norm
		ON sessions(title_norm)
		WHERE deleted_at IS NULL;

		CREATE INDEX IF NOT EXISTS idx_sessions_updated
		ON sessions(updated_at DESC)
		WHERE deleted_at IS NULL;

		CREATE TABLE IF NOT EXISTS viewer_groups (
		  id             TEXT PRIMARY KEY,
		  session_id     TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		  position       INTEGER NOT NULL,
		  title          TEXT NOT NULL,
		  color1         TEXT NOT NULL,
		  color2         TEXT NOT NULL,
		  iso_value      TEXT NOT NULL,
		  surface_scale  TEXT NOT NULL,
		  show_positive  INTEGER NOT NULL,
		  file_name1     TEXT NOT NULL DEFAULT '',
		  file_name2     TEXT NOT NULL DEFAULT '',
		  notes          TEXT NOT NULL DEFAULT '',
		  color_mapping  INTEGER NOT NULL DEFAULT 0,
		  min_map_value  TEXT NOT NULL,
		  max_map_value  TEXT NOT NULL,
		  generation     INTEGER NOT NULL DEFAULT 1,
		  created_at     INTEGER NOT NULL,
		  updated_at     INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_viewer_groups_session_position
		ON viewer_groups(session_id, position);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Per-file surface toggles; existing groups show both files.
	if version < 2 {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration 2 failed: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck
		for _, stmt := range []string{
			"ALTER TABLE viewer_groups ADD COLUMN show_file1 INTEGER NOT NULL DEFAULT 1",
			"ALTER TABLE viewer_groups ADD COLUMN show_file2 INTEGER NOT NULL DEFAULT 1",
			"PRAGMA user_version=2",
		} {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("migration 2 failed: %w", err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration 2 failed: %w", err)
		}
	}

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
