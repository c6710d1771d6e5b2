package store

import (
	"database/sql"
	"fmt"
)

// migrate runs all database migrations
func migrate(db *sql.DB) error {
	migrations := []string{
		// Strava tokens (singleton row)
		`CREATE TABLE IF NOT EXISTS auth (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			athlete_id INTEGER NOT NULL,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		// Activities from Strava or FIT files
		`CREATE TABLE IF NOT EXISTS activities (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			source TEXT NOT NULL,
			sport_type TEXT NOT NULL,
			start_time TEXT NOT NULL,
			duration_sec REAL NOT NULL,
			sample_rate_hz REAL NOT NULL DEFAULT 0,
			samples_synced INTEGER DEFAULT 0,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_activities_start_time ON activities(start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_source ON activities(source)`,

		// Normalized samples, in stored order
		`CREATE TABLE IF NOT EXISTS samples (
			activity_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			t REAL NOT NULL,
			heart_rate REAL,
			cadence REAL,
			power REAL,
			speed REAL,
			elevation REAL,
			temperature REAL,
			PRIMARY KEY (activity_id, seq),
			FOREIGN KEY (activity_id) REFERENCES activities(id) ON DELETE CASCADE
		)`,

		// Metric definitions, one row per key and version
		`CREATE TABLE IF NOT EXISTS metric_definitions (
			key TEXT NOT NULL,
			version INTEGER NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL,
			units TEXT,
			compute_config TEXT NOT NULL,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (key, version)
		)`,

		// Cached metric results, replaced wholesale on recompute
		`CREATE TABLE IF NOT EXISTS metric_results (
			activity_id TEXT NOT NULL,
			metric_key TEXT NOT NULL,
			metric_version INTEGER NOT NULL,
			summary TEXT NOT NULL,
			series TEXT,
			inputs_hash TEXT NOT NULL DEFAULT '',
			computed_at TEXT NOT NULL,
			PRIMARY KEY (activity_id, metric_key),
			FOREIGN KEY (activity_id) REFERENCES activities(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_metric_results_key ON metric_results(metric_key, metric_version)`,

		// Sync State (key-value store for sync tracking)
		`CREATE TABLE IF NOT EXISTS sync_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}

	// Databases created before results carried their inputs hash
	return addColumn(db, "metric_results", "inputs_hash", "TEXT NOT NULL DEFAULT ''")
}

// addColumn adds a column to an existing table unless it is already there
func addColumn(db *sql.DB, table, column, decl string) error {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&n)
	if err != nil || n > 0 {
		return err
	}
	_, err = db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl))
	return err
}
