package store

import (
	"fmt"

	"ridemetrics/internal/samples"
)

// SaveSamples saves the samples of an activity, replacing any stored ones,
// and marks the activity as synced
func (db *DB) SaveSamples(activityID string, in []samples.MetricSample) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Delete existing samples for this activity
	if _, err := tx.Exec("DELETE FROM samples WHERE activity_id = ?", activityID); err != nil {
		return fmt.Errorf("deleting existing samples: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO samples (
			activity_id, seq, t, heart_rate, cadence, power, speed, elevation, temperature
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, s := range in {
		_, err := stmt.Exec(
			activityID, i, s.T, s.HeartRate, s.Cadence, s.Power, s.Speed, s.Elevation, s.Temperature,
		)
		if err != nil {
			return fmt.Errorf("inserting sample %d: %w", i, err)
		}
	}

	result, err := tx.Exec(`
		UPDATE activities SET samples_synced = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, activityID)
	if err != nil {
		return fmt.Errorf("marking samples synced: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return ErrActivityNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// GetSamples retrieves all samples of an activity in stored order
func (db *DB) GetSamples(activityID string) ([]samples.MetricSample, error) {
	rows, err := db.Query(`
		SELECT t, heart_rate, cadence, power, speed, elevation, temperature
		FROM samples
		WHERE activity_id = ?
		ORDER BY seq
	`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []samples.MetricSample
	for rows.Next() {
		var s samples.MetricSample
		err := rows.Scan(&s.T, &s.HeartRate, &s.Cadence, &s.Power, &s.Speed, &s.Elevation, &s.Temperature)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}

	return out, rows.Err()
}

// CountSamples returns the number of samples stored for an activity
func (db *DB) CountSamples(activityID string) (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM samples WHERE activity_id = ?", activityID).Scan(&count)
	return count, err
}
