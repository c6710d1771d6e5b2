package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrActivityNotFound is returned when an activity doesn't exist
var ErrActivityNotFound = errors.New("activity not found")

const activityColumns = `id, name, source, sport_type, start_time, duration_sec, sample_rate_hz, samples_synced`

// UpsertActivity inserts or updates an activity. The samples_synced flag is
// only ever set by MarkSamplesSynced.
func (db *DB) UpsertActivity(a *Activity) error {
	_, err := db.Exec(`
		INSERT INTO activities (
			id, name, source, sport_type, start_time, duration_sec, sample_rate_hz,
			samples_synced, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			source = excluded.source,
			sport_type = excluded.sport_type,
			start_time = excluded.start_time,
			duration_sec = excluded.duration_sec,
			sample_rate_hz = excluded.sample_rate_hz,
			updated_at = CURRENT_TIMESTAMP
	`,
		a.ID, a.Name, a.Source, a.SportType, a.StartTime.UTC().Format(time.RFC3339),
		a.DurationSec, a.SampleRateHz, boolToInt(a.SamplesSynced),
	)
	return err
}

// GetActivity retrieves an activity by ID
func (db *DB) GetActivity(id string) (*Activity, error) {
	row := db.QueryRow(`SELECT `+activityColumns+` FROM activities WHERE id = ?`, id)
	return scanActivity(row)
}

// ListActivities returns activities ordered by start time ascending.
// A limit of 0 returns all of them.
func (db *DB) ListActivities(limit, offset int) ([]Activity, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`
		SELECT `+activityColumns+`
		FROM activities
		ORDER BY start_time, id
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanActivities(rows)
}

// ListActivitiesWithSamples returns every activity whose samples are stored,
// ordered by start time
func (db *DB) ListActivitiesWithSamples() ([]Activity, error) {
	rows, err := db.Query(`
		SELECT ` + activityColumns + `
		FROM activities
		WHERE samples_synced = 1
		ORDER BY start_time, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanActivities(rows)
}

// GetActivitiesNeedingSamples returns activities that haven't had their samples synced
func (db *DB) GetActivitiesNeedingSamples(limit int) ([]Activity, error) {
	rows, err := db.Query(`
		SELECT `+activityColumns+`
		FROM activities
		WHERE samples_synced = 0
		ORDER BY start_time DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanActivities(rows)
}

// MarkSamplesSynced marks an activity's samples as stored
func (db *DB) MarkSamplesSynced(id string) error {
	result, err := db.Exec(`
		UPDATE activities
		SET samples_synced = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrActivityNotFound
	}
	return nil
}

// DeleteActivity removes an activity with its samples and cached results
func (db *DB) DeleteActivity(id string) error {
	result, err := db.Exec("DELETE FROM activities WHERE id = ?", id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrActivityNotFound
	}
	return nil
}

// CountActivities returns the total number of activities
func (db *DB) CountActivities() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM activities").Scan(&count)
	return count, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanActivityRow(s scanner) (Activity, error) {
	var a Activity
	var startTime string
	var synced int

	err := s.Scan(&a.ID, &a.Name, &a.Source, &a.SportType, &startTime, &a.DurationSec, &a.SampleRateHz, &synced)
	if err != nil {
		return Activity{}, err
	}

	a.StartTime, err = time.Parse(time.RFC3339, startTime)
	if err != nil {
		return Activity{}, fmt.Errorf("parsing start_time %q: %w", startTime, err)
	}
	a.SamplesSynced = synced == 1
	return a, nil
}

// scanActivity scans a single activity from a row
func scanActivity(row *sql.Row) (*Activity, error) {
	a, err := scanActivityRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrActivityNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// scanActivities scans multiple activities from rows
func scanActivities(rows *sql.Rows) ([]Activity, error) {
	var activities []Activity
	for rows.Next() {
		a, err := scanActivityRow(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
