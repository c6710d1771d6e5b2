package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	rl := NewRateLimiter()
	rl.minInterval = 0
	return NewClientWithHTTP(srv.Client(), WithBaseURL(srv.URL), WithRateLimiter(rl))
}

func TestGetRidesPaginatesAndFilters(t *testing.T) {
	var pages []string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/athlete/activities", r.URL.Path)
		assert.Equal(t, "1700000000", r.URL.Query().Get("after"))
		page := r.URL.Query().Get("page")
		pages = append(pages, page)

		var out []Activity
		switch page {
		case "1":
			for i := 0; i < perPage; i++ {
				sport := "Ride"
				if i%2 == 1 {
					sport = "Run"
				}
				out = append(out, Activity{ID: int64(i + 1), SportType: sport})
			}
		case "2":
			out = []Activity{{ID: 1001, SportType: "VirtualRide"}, {ID: 1002, Type: "Ride"}}
		}
		w.Header().Set("X-RateLimit-Limit", "200,2000")
		w.Header().Set("X-RateLimit-Usage", "10,50")
		json.NewEncoder(w).Encode(out)
	})

	var progress []int
	rides, err := c.GetRides(context.Background(), time.Unix(1700000000, 0), func(n int) {
		progress = append(progress, n)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2"}, pages)
	assert.Equal(t, []int{perPage, perPage + 2}, progress)
	assert.Len(t, rides, perPage/2+2)
	assert.Equal(t, "1002", rides[len(rides)-1].StringID())

	short, daily := c.RateLimitStatus()
	assert.Equal(t, 190, short)
	assert.Equal(t, 1950, daily)
}

func TestGetActivityStreams(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/activities/42/streams", r.URL.Path)
		assert.Equal(t, "time,heartrate,cadence,watts,velocity_smooth,altitude,temp", r.URL.Query().Get("keys"))
		assert.Equal(t, "true", r.URL.Query().Get("key_by_type"))
		fmt.Fprint(w, `{
			"time": {"data": [0, 1, 2]},
			"watts": {"data": [200, null, 220]},
			"heartrate": {"data": [120, 121, 122]},
			"temp": {"data": [18.5, 18.5, 19]}
		}`)
	})

	streams, err := c.GetActivityStreams(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, 3, streams.Len())
	assert.True(t, streams.HasPower())

	got := streams.Samples()
	require.Len(t, got, 3)
	assert.Equal(t, 200.0, *got[0].Power)
	assert.Nil(t, got[1].Power)
	assert.Equal(t, 122.0, *got[2].HeartRate)
	assert.Nil(t, got[2].Cadence)
	assert.Equal(t, 19.0, *got[2].Temperature)
}

func TestGetRateLimited(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.GetActivities(context.Background(), time.Time{}, 1, 10)
	assert.ErrorIs(t, err, ErrRateLimited)

	short, _ := c.RateLimitStatus()
	assert.Zero(t, short)
}

func TestGetAPIError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	_, err := c.GetActivityStreams(context.Background(), "7")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestIsRide(t *testing.T) {
	tests := []struct {
		activity Activity
		want     bool
	}{
		{Activity{SportType: "Ride"}, true},
		{Activity{SportType: "GravelRide", Type: "Ride"}, true},
		{Activity{SportType: "EBikeRide", Type: "Ride"}, false},
		{Activity{Type: "VirtualRide"}, true},
		{Activity{SportType: "Run"}, false},
		{Activity{}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.activity.IsRide(), tt.activity.SportType+"/"+tt.activity.Type)
	}
}

func TestStreamsEmpty(t *testing.T) {
	var s *Streams
	assert.Zero(t, s.Len())
	assert.False(t, s.HasPower())
	assert.Nil(t, (&Streams{}).Samples())
}
