package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridemetrics/internal/store"
	"ridemetrics/internal/strava"
)

func stravaServer(t *testing.T, lastAfter *atomic.Value) *strava.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/athlete/activities", func(w http.ResponseWriter, r *http.Request) {
		lastAfter.Store(r.URL.Query().Get("after"))
		json.NewEncoder(w).Encode([]strava.Activity{
			{ID: 1, Name: "Long ride", SportType: "Ride", StartDate: day0, ElapsedTime: 60},
			{ID: 2, Name: "Manual", SportType: "VirtualRide", StartDate: day0.AddDate(0, 0, 1), ElapsedTime: 3600},
			{ID: 3, Name: "Jog", SportType: "Run", StartDate: day0.AddDate(0, 0, 2)},
		})
	})
	mux.HandleFunc("/activities/1/streams", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"time":{"data":[0,1,2]},"watts":{"data":[200,210,220]},"temp":{"data":[20,20,21]}}`)
	})
	mux.HandleFunc("/activities/2/streams", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Record Not Found"}`, http.StatusNotFound)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return strava.NewClientWithHTTP(srv.Client(), strava.WithBaseURL(srv.URL), strava.WithMinInterval(0))
}

func TestSync(t *testing.T) {
	db := setupTestDB(t)
	var after atomic.Value
	svc := NewSyncService(stravaServer(t, &after), db, testLogger())

	res, err := svc.Sync(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ActivitiesFetched)
	assert.Equal(t, 2, res.RidesStored)
	assert.Equal(t, 1, res.StreamsFetched)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "", after.Load())

	a, err := db.GetActivity("1")
	require.NoError(t, err)
	assert.Equal(t, store.SourceStrava, a.Source)
	assert.Equal(t, "Ride", a.SportType)
	assert.True(t, a.SamplesSynced)
	assert.Equal(t, 60.0, a.DurationSec)

	in, err := db.GetSamples("1")
	require.NoError(t, err)
	require.Len(t, in, 3)
	assert.Equal(t, 21.0, *in[2].Temperature)

	pending, err := db.GetActivitiesNeedingSamples(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "2", pending[0].ID)

	last, err := db.GetSyncTime(store.SyncKeyLastActivity)
	require.NoError(t, err)
	assert.Equal(t, day0.AddDate(0, 0, 1), last)

	ran, err := db.GetSyncTime(store.SyncKeyLastRun)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ran, time.Minute)

	// the next sync only asks for newer activities
	_, err = svc.Sync(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprint(day0.AddDate(0, 0, 1).Unix()), after.Load())
}
