package store

import (
	"time"

	"ridemetrics/internal/metrics"
	"ridemetrics/internal/samples"
)

// Auth represents OAuth tokens for Strava API access
type Auth struct {
	AthleteID    int64     `db:"athlete_id"`
	AccessToken  string    `db:"access_token"`
	RefreshToken string    `db:"refresh_token"`
	ExpiresAt    time.Time `db:"expires_at"`
}

// Activity sources
const (
	SourceStrava = "strava"
	SourceFIT    = "fit"
)

// Activity is a stored ride
type Activity struct {
	ID            string    `db:"id"`
	Name          string    `db:"name"`
	Source        string    `db:"source"`
	SportType     string    `db:"sport_type"`
	StartTime     time.Time `db:"start_time"`
	DurationSec   float64   `db:"duration_sec"`
	SampleRateHz  float64   `db:"sample_rate_hz"` // 0 when unknown
	SamplesSynced bool      `db:"samples_synced"`
}

// Engine returns the activity as the metric engine sees it
func (a Activity) Engine() samples.Activity {
	return samples.Activity{
		ID:           a.ID,
		Name:         a.Name,
		Source:       a.Source,
		StartTime:    a.StartTime,
		DurationSec:  a.DurationSec,
		SampleRateHz: a.SampleRateHz,
	}
}

// MetricResult is a cached metric computation for one activity
type MetricResult struct {
	ActivityID string                `db:"activity_id"`
	Key        metrics.Key           `db:"metric_key"`
	Version    int                   `db:"metric_version"`
	Summary    metrics.Summary       `db:"summary"`
	Series     []metrics.SeriesPoint `db:"series"`
	InputsHash string                `db:"inputs_hash"` // metrics.InputsHash at compute time
	ComputedAt time.Time             `db:"computed_at"`
}

// Result returns the cached value as a metric result
func (r MetricResult) Result() metrics.Result {
	return metrics.Result{Summary: r.Summary, Series: r.Series}
}
