package strava

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Strava allows 100 requests per 15 minutes and 1000 per day by default.
// The live limits and usage come back in every response's headers.
const (
	defaultShortLimit  = 100
	defaultDailyLimit  = 1000
	shortWindow        = 15 * time.Minute
	defaultMinInterval = 150 * time.Millisecond
)

// window is one rate limit budget
type window struct {
	limit    int
	usage    int
	resetsAt time.Time
}

func (w *window) remaining() int { return w.limit - w.usage }

// RateLimiter spaces requests and blocks when a budget is spent
type RateLimiter struct {
	mu sync.Mutex

	short window
	daily window

	minInterval time.Duration
	lastRequest time.Time
	now         func() time.Time
}

// NewRateLimiter creates a new rate limiter with Strava's limits
func NewRateLimiter() *RateLimiter {
	r := &RateLimiter{minInterval: defaultMinInterval, now: time.Now}
	now := r.now()
	r.short = window{limit: defaultShortLimit, resetsAt: nextShortReset(now)}
	r.daily = window{limit: defaultDailyLimit, resetsAt: nextDailyReset(now)}
	return r
}

// Strava's short window resets on the quarter hour, the daily one at
// midnight UTC
func nextShortReset(now time.Time) time.Time {
	return now.UTC().Truncate(shortWindow).Add(shortWindow)
}

func nextDailyReset(now time.Time) time.Time {
	return now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
}

// Wait blocks until a request can be made without exceeding rate limits
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		now := r.now()
		if !now.Before(r.short.resetsAt) {
			r.short.usage, r.short.resetsAt = 0, nextShortReset(now)
		}
		if !now.Before(r.daily.resetsAt) {
			r.daily.usage, r.daily.resetsAt = 0, nextDailyReset(now)
		}

		var wait time.Duration
		switch {
		case r.daily.remaining() <= 0:
			wait = r.daily.resetsAt.Sub(now)
		case r.short.remaining() <= 0:
			wait = r.short.resetsAt.Sub(now)
		default:
			wait = r.minInterval - now.Sub(r.lastRequest)
		}
		if wait <= 0 {
			break
		}

		r.mu.Unlock()
		err := sleep(ctx, wait)
		r.mu.Lock()
		if err != nil {
			return err
		}
	}

	r.short.usage++
	r.daily.usage++
	r.lastRequest = r.now()
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpdateFromHeaders updates rate limit state from Strava response headers,
// e.g. X-RateLimit-Limit: "100,1000" and X-RateLimit-Usage: "34,512"
func (r *RateLimiter) UpdateFromHeaders(h http.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if short, daily, ok := parsePair(h.Get("X-RateLimit-Usage")); ok {
		r.short.usage, r.daily.usage = short, daily
	}
	if short, daily, ok := parsePair(h.Get("X-RateLimit-Limit")); ok {
		r.short.limit, r.daily.limit = short, daily
	}
}

// Exhaust marks the short window as spent, after a 429 response
func (r *RateLimiter) Exhaust() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.short.usage = r.short.limit
}

func parsePair(v string) (int, int, bool) {
	a, b, found := strings.Cut(v, ",")
	if !found {
		return 0, 0, false
	}
	first, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return 0, 0, false
	}
	second, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return 0, 0, false
	}
	return first, second, true
}

// Status returns the requests left in the short and daily windows
func (r *RateLimiter) Status() (shortRemaining, dailyRemaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.short.remaining(), r.daily.remaining()
}
