// Package strava fetches rides and their sample streams from the Strava API.
package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const BaseURL = "https://www.strava.com/api/v3"

// perPage is the largest page Strava serves
const perPage = 200

// streamKeys are the channels the metrics engine consumes
var streamKeys = []string{"time", "heartrate", "cadence", "watts", "velocity_smooth", "altitude", "temp"}

// ErrRateLimited is returned when Strava answers 429
var ErrRateLimited = errors.New("strava rate limit exceeded")

// APIError is a non-200 response from Strava
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("strava API error %d: %s", e.StatusCode, e.Body)
}

// Client is a Strava API client
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *RateLimiter
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at another API root
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithRateLimiter replaces the default limiter
func WithRateLimiter(r *RateLimiter) Option {
	return func(c *Client) { c.rateLimiter = r }
}

// WithMinInterval changes the spacing between requests
func WithMinInterval(d time.Duration) Option {
	return func(c *Client) { c.rateLimiter.minInterval = d }
}

// NewClient creates a Strava client authenticating with tokenSource
func NewClient(ctx context.Context, tokenSource oauth2.TokenSource, opts ...Option) *Client {
	return NewClientWithHTTP(oauth2.NewClient(ctx, tokenSource), opts...)
}

// NewClientWithHTTP creates a client on a preconfigured http.Client
func NewClientWithHTTP(httpClient *http.Client, opts ...Option) *Client {
	c := &Client{
		httpClient:  httpClient,
		baseURL:     BaseURL,
		rateLimiter: NewRateLimiter(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetActivities fetches one page of activities started after 'after'
func (c *Client) GetActivities(ctx context.Context, after time.Time, page, perPage int) ([]Activity, error) {
	params := url.Values{}
	if !after.IsZero() {
		params.Set("after", strconv.FormatInt(after.Unix(), 10))
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))

	var activities []Activity
	if err := c.get(ctx, "/athlete/activities", params, &activities); err != nil {
		return nil, fmt.Errorf("fetching activities: %w", err)
	}
	return activities, nil
}

// GetRides pages through every activity after 'after' and keeps the rides
func (c *Client) GetRides(ctx context.Context, after time.Time, onProgress func(fetched int)) ([]Activity, error) {
	var rides []Activity
	fetched := 0
	for page := 1; ; page++ {
		activities, err := c.GetActivities(ctx, after, page, perPage)
		if err != nil {
			return rides, fmt.Errorf("page %d: %w", page, err)
		}

		for _, a := range activities {
			if a.IsRide() {
				rides = append(rides, a)
			}
		}
		fetched += len(activities)
		if onProgress != nil {
			onProgress(fetched)
		}

		if len(activities) < perPage {
			return rides, nil
		}
	}
}

// GetActivityStreams fetches the sample streams of an activity
func (c *Client) GetActivityStreams(ctx context.Context, activityID string) (*Streams, error) {
	params := url.Values{}
	params.Set("keys", strings.Join(streamKeys, ","))
	params.Set("key_by_type", "true")

	var streams Streams
	path := "/activities/" + url.PathEscape(activityID) + "/streams"
	if err := c.get(ctx, path, params, &streams); err != nil {
		return nil, fmt.Errorf("fetching streams for %s: %w", activityID, err)
	}
	return &streams, nil
}

// RateLimitStatus returns the current rate limit status
func (c *Client) RateLimitStatus() (shortRemaining, dailyRemaining int) {
	return c.rateLimiter.Status()
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.rateLimiter.UpdateFromHeaders(resp.Header)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		c.rateLimiter.Exhaust()
		return ErrRateLimited
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
