package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNoAuth is returned when no tokens have been stored yet
var ErrNoAuth = errors.New("no authentication stored")

// GetAuth returns the most recently refreshed Strava tokens
func (db *DB) GetAuth() (*Auth, error) {
	var a Auth
	var expiresAt int64
	err := db.QueryRow(`
		SELECT athlete_id, access_token, refresh_token, expires_at FROM auth WHERE id = 1
	`).Scan(&a.AthleteID, &a.AccessToken, &a.RefreshToken, &expiresAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrNoAuth
	case err != nil:
		return nil, err
	}
	a.ExpiresAt = time.Unix(expiresAt, 0)
	return &a, nil
}

// SaveAuth replaces the stored tokens. Strava rotates the refresh token on
// every refresh, so the stored pair always supersedes the configured one.
func (db *DB) SaveAuth(a *Auth) error {
	_, err := db.Exec(`
		INSERT INTO auth (id, athlete_id, access_token, refresh_token, expires_at, updated_at)
		VALUES (1, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			athlete_id = CASE WHEN excluded.athlete_id = 0 THEN auth.athlete_id ELSE excluded.athlete_id END,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = CURRENT_TIMESTAMP
	`, a.AthleteID, a.AccessToken, a.RefreshToken, a.ExpiresAt.Unix())
	return err
}
