package history

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the newest migration this build knows about.
const SchemaVersion = 1

type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS runs (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT NOT NULL UNIQUE,
  root TEXT NOT NULL DEFAULT '',
  ts_utc TEXT NOT NULL,
  duration_ms INTEGER NOT NULL DEFAULT 0,
  file_count INTEGER NOT NULL,
  module_count INTEGER NOT NULL,
  test_module_count INTEGER NOT NULL,
  shared_file_count INTEGER NOT NULL,
  loc INTEGER NOT NULL,
  noc INTEGER NOT NULL,
  poc REAL NOT NULL,
  shared_loc INTEGER NOT NULL DEFAULT 0,
  mean_distance REAL NOT NULL DEFAULT 0,
  created_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
CREATE TABLE IF NOT EXISTS module_metrics (
  run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
  module TEXT NOT NULL,
  is_test INTEGER NOT NULL,
  loc INTEGER NOT NULL,
  noc INTEGER NOT NULL,
  poc REAL NOT NULL,
  fan_in INTEGER,
  fan_out INTEGER,
  instability REAL,
  abstractness REAL,
  distance REAL,
  PRIMARY KEY (run_id, module)
);
CREATE INDEX IF NOT EXISTS idx_module_metrics_module ON module_metrics(module);
`,
	},
}

// EnsureSchema applies every migration newer than the database's version.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema_migrations version: %w", err)
	}
	if current > SchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", current, SchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?)`, m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}

	return nil
}
