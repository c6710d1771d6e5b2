package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridemetrics/internal/config"
	"ridemetrics/internal/metrics"
	"ridemetrics/internal/samples"
	"ridemetrics/internal/store"
)

func setupTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	return &cfg
}

// seedRide stores a steady 1 Hz ride
func seedRide(t *testing.T, db *store.DB, id string, start time.Time, watts float64, seconds int) {
	t.Helper()
	a := store.Activity{
		ID:          id,
		Name:        "ride " + id,
		Source:      store.SourceStrava,
		SportType:   "Ride",
		StartTime:   start,
		DurationSec: float64(seconds),
	}
	require.NoError(t, db.UpsertActivity(&a))

	in := make([]samples.MetricSample, seconds)
	for i := range in {
		in[i] = samples.MetricSample{
			T:         float64(i),
			Power:     samples.Float(watts),
			HeartRate: samples.Float(140),
			Cadence:   samples.Float(90),
		}
	}
	require.NoError(t, db.SaveSamples(id, in))
}

var day0 = time.Date(2024, 4, 1, 7, 0, 0, 0, time.UTC)

func TestComputeAllCachesResults(t *testing.T) {
	db := setupTestDB(t)
	seedRide(t, db, "a", day0, 200, 1800)
	seedRide(t, db, "b", day0.AddDate(0, 0, 1), 250, 1800)

	svc := NewComputeService(db, testConfig(), testLogger())
	require.NoError(t, svc.RegisterDefinitions())
	keys := []metrics.Key{metrics.KeyDurableTSS, metrics.KeyNormalizedPower}

	res, err := svc.ComputeAll(context.Background(), keys, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Activities)
	assert.Equal(t, 4, res.Computed)
	assert.Zero(t, res.Cached)
	assert.Zero(t, res.Failed)

	res, err = svc.ComputeAll(context.Background(), keys, false)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Cached)
	assert.Zero(t, res.Computed)

	res, err = svc.ComputeAll(context.Background(), keys, true)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Computed)

	r, cached, err := svc.Compute(context.Background(), "a", metrics.KeyNormalizedPower, false)
	require.NoError(t, err)
	assert.True(t, cached)
	np, ok := r.Value("normalized_power_w")
	require.True(t, ok)
	assert.Equal(t, 200.0, np)
}

func TestComputeErrors(t *testing.T) {
	db := setupTestDB(t)
	seedRide(t, db, "a", day0, 200, 60)
	svc := NewComputeService(db, testConfig(), testLogger())

	_, _, err := svc.Compute(context.Background(), "missing", metrics.KeyNormalizedPower, false)
	assert.ErrorIs(t, err, store.ErrActivityNotFound)

	_, _, err = svc.Compute(context.Background(), "a", metrics.Key("vo2max"), false)
	assert.ErrorIs(t, err, metrics.ErrUnknownMetric)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.ComputeAll(ctx, nil, false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegisterDefinitionsDropsStale(t *testing.T) {
	db := setupTestDB(t)
	seedRide(t, db, "a", day0, 200, 60)
	require.NoError(t, db.SaveResult(&store.MetricResult{
		ActivityID: "a",
		Key:        metrics.KeyHCSR,
		Version:    1,
		Summary:    metrics.Summary{"slope_bpm_per_rpm": samples.Float(0.5)},
	}))

	svc := NewComputeService(db, testConfig(), testLogger())
	require.NoError(t, svc.RegisterDefinitions())

	n, err := db.CountResults(metrics.KeyHCSR, 1)
	require.NoError(t, err)
	assert.Zero(t, n)

	defs, err := db.ListDefinitions()
	require.NoError(t, err)
	assert.Len(t, defs, len(metrics.Keys()))
}

func TestEstimateFTP(t *testing.T) {
	db := setupTestDB(t)
	svc := NewComputeService(db, testConfig(), testLogger())

	ftp, source, err := svc.EstimateFTP()
	require.NoError(t, err)
	assert.Zero(t, ftp)
	assert.Equal(t, "none", source)

	seedRide(t, db, "a", day0, 250, 1800)
	_, err = svc.ComputeAll(context.Background(), []metrics.Key{metrics.KeyNormalizedPower}, false)
	require.NoError(t, err)

	ftp, source, err = svc.EstimateFTP()
	require.NoError(t, err)
	assert.Equal(t, 237.5, ftp)
	assert.Equal(t, "best_20min", source)
}

func TestComputeRecomputesWhenInputsChange(t *testing.T) {
	db := setupTestDB(t)
	seedRide(t, db, "a", day0, 300, 5400)

	cfg := testConfig()
	cfg.Athlete.FTP = 250
	svc := NewComputeService(db, cfg, testLogger())

	r, cached, err := svc.Compute(context.Background(), "a", metrics.KeyDurableTSS, false)
	require.NoError(t, err)
	assert.False(t, cached)
	ftp, ok := r.Value("ftp_w")
	require.True(t, ok)
	assert.Equal(t, 250.0, ftp)
	tss250, ok := r.Value("durable_tss")
	require.True(t, ok)

	_, cached, err = svc.Compute(context.Background(), "a", metrics.KeyDurableTSS, false)
	require.NoError(t, err)
	assert.True(t, cached, "same ftp reuses the cache")

	cfg = testConfig()
	cfg.Athlete.FTP = 300
	svc = NewComputeService(db, cfg, testLogger())

	r, cached, err = svc.Compute(context.Background(), "a", metrics.KeyDurableTSS, false)
	require.NoError(t, err)
	assert.False(t, cached, "a new ftp invalidates the cached result")
	ftp, ok = r.Value("ftp_w")
	require.True(t, ok)
	assert.Equal(t, 300.0, ftp)
	tss300, ok := r.Value("durable_tss")
	require.True(t, ok)
	assert.Less(t, tss300, tss250)

	// metrics that ignore ftp keep their cache
	_, _, err = svc.Compute(context.Background(), "a", metrics.KeyNormalizedPower, false)
	require.NoError(t, err)
	cfg.Athlete.FTP = 320
	svc = NewComputeService(db, cfg, testLogger())
	_, cached, err = svc.Compute(context.Background(), "a", metrics.KeyNormalizedPower, false)
	require.NoError(t, err)
	assert.True(t, cached)
}

func TestComputeRecomputesWhenCPChanges(t *testing.T) {
	db := setupTestDB(t)
	seedRide(t, db, "a", day0, 300, 1200)

	cfg := testConfig()
	cfg.Athlete.CP = 250
	cfg.Athlete.WPrime = 20000
	_, cached, err := NewComputeService(db, cfg, testLogger()).Compute(context.Background(), "a", metrics.KeyWPrimeBalance, false)
	require.NoError(t, err)
	assert.False(t, cached)

	cfg.Athlete.CP = 270
	_, cached, err = NewComputeService(db, cfg, testLogger()).Compute(context.Background(), "a", metrics.KeyWPrimeBalance, false)
	require.NoError(t, err)
	assert.False(t, cached)
}
