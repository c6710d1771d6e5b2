package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ridemetrics/internal/metrics"
)

// SaveDefinitions records metric definitions. Existing key and version
// pairs are left untouched since definitions never change once results
// reference them.
func (db *DB) SaveDefinitions(defs []metrics.Definition) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, d := range defs {
		config, err := json.Marshal(d.ComputeConfig)
		if err != nil {
			return fmt.Errorf("encoding compute config for %s: %w", d.Key, err)
		}
		_, err = tx.Exec(`
			INSERT INTO metric_definitions (key, version, name, description, units, compute_config)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(key, version) DO NOTHING
		`, string(d.Key), d.Version, d.Name, d.Description, d.Units, string(config))
		if err != nil {
			return fmt.Errorf("saving definition %s: %w", d.Key, err)
		}
	}

	return tx.Commit()
}

// ListDefinitions returns every stored definition ordered by key and version
func (db *DB) ListDefinitions() ([]metrics.Definition, error) {
	rows, err := db.Query(`
		SELECT key, version, name, description, units, compute_config
		FROM metric_definitions
		ORDER BY key, version
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []metrics.Definition
	for rows.Next() {
		var d metrics.Definition
		var key, config string
		var units sql.NullString
		if err := rows.Scan(&key, &d.Version, &d.Name, &d.Description, &units, &config); err != nil {
			return nil, err
		}
		d.Key = metrics.Key(key)
		d.Units = units.String
		if err := json.Unmarshal([]byte(config), &d.ComputeConfig); err != nil {
			return nil, fmt.Errorf("decoding compute config for %s: %w", key, err)
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// SaveResult stores a computed result, replacing whatever was cached for the
// activity and metric
func (db *DB) SaveResult(r *MetricResult) error {
	summary, err := json.Marshal(r.Summary)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	var series *string
	if len(r.Series) > 0 {
		b, err := json.Marshal(r.Series)
		if err != nil {
			return fmt.Errorf("encoding series: %w", err)
		}
		s := string(b)
		series = &s
	}
	if r.ComputedAt.IsZero() {
		r.ComputedAt = time.Now()
	}

	_, err = db.Exec(`
		INSERT INTO metric_results (activity_id, metric_key, metric_version, summary, series, inputs_hash, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(activity_id, metric_key) DO UPDATE SET
			metric_version = excluded.metric_version,
			summary = excluded.summary,
			series = excluded.series,
			inputs_hash = excluded.inputs_hash,
			computed_at = excluded.computed_at
	`, r.ActivityID, string(r.Key), r.Version, string(summary), series, r.InputsHash, r.ComputedAt.UTC().Format(time.RFC3339))
	return err
}

// GetResult returns the cached result for an activity and metric. A result
// computed by another version counts as missing.
func (db *DB) GetResult(activityID string, key metrics.Key, version int) (*MetricResult, error) {
	row := db.QueryRow(`
		SELECT activity_id, metric_key, metric_version, summary, series, inputs_hash, computed_at
		FROM metric_results
		WHERE activity_id = ? AND metric_key = ? AND metric_version = ?
	`, activityID, string(key), version)

	r, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListResults returns every cached result of one metric version keyed by
// activity ID
func (db *DB) ListResults(key metrics.Key, version int) (map[string]*MetricResult, error) {
	rows, err := db.Query(`
		SELECT activity_id, metric_key, metric_version, summary, series, inputs_hash, computed_at
		FROM metric_results
		WHERE metric_key = ? AND metric_version = ?
	`, string(key), version)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]*MetricResult)
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out[r.ActivityID] = r
	}
	return out, rows.Err()
}

// DeleteStaleResults removes cached results of key computed by any version
// other than the given one
func (db *DB) DeleteStaleResults(key metrics.Key, version int) (int64, error) {
	result, err := db.Exec(`
		DELETE FROM metric_results WHERE metric_key = ? AND metric_version <> ?
	`, string(key), version)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteResultsForActivity drops every cached result of an activity, used
// when its samples are replaced
func (db *DB) DeleteResultsForActivity(activityID string) error {
	_, err := db.Exec("DELETE FROM metric_results WHERE activity_id = ?", activityID)
	return err
}

// CountResults returns the number of cached results for a metric version
func (db *DB) CountResults(key metrics.Key, version int) (int, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM metric_results WHERE metric_key = ? AND metric_version = ?
	`, string(key), version).Scan(&count)
	return count, err
}

func scanResult(s scanner) (*MetricResult, error) {
	var r MetricResult
	var key, summary, computedAt string
	var series sql.NullString

	if err := s.Scan(&r.ActivityID, &key, &r.Version, &summary, &series, &r.InputsHash, &computedAt); err != nil {
		return nil, err
	}
	r.Key = metrics.Key(key)

	if err := json.Unmarshal([]byte(summary), &r.Summary); err != nil {
		return nil, fmt.Errorf("decoding summary: %w", err)
	}
	if series.Valid {
		if err := json.Unmarshal([]byte(series.String), &r.Series); err != nil {
			return nil, fmt.Errorf("decoding series: %w", err)
		}
	}

	var err error
	r.ComputedAt, err = time.Parse(time.RFC3339, computedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing computed_at %q: %w", computedAt, err)
	}
	return &r, nil
}
