package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// refreshMargin is how long before expiry a token is refreshed
const refreshMargin = 60 * time.Second

// ErrNoRefreshToken is returned when a token must be refreshed but there is
// no refresh token to do it with.
var ErrNoRefreshToken = errors.New("no strava refresh token configured")

// TokenSource refreshes the Strava token shortly before it expires and hands
// every new token to onRefresh so it survives restarts.
type TokenSource struct {
	ctx       context.Context
	config    *oauth2.Config
	onRefresh func(*oauth2.Token) error

	mu    sync.Mutex
	token *oauth2.Token
}

// NewTokenSource creates a TokenSource. ctx is used for refresh requests.
func NewTokenSource(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token, onRefresh func(*oauth2.Token) error) *TokenSource {
	return &TokenSource{
		ctx:       ctx,
		config:    cfg,
		token:     token,
		onRefresh: onRefresh,
	}
}

// Token returns a valid token, refreshing if necessary
func (ts *TokenSource) Token() (*oauth2.Token, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !expiring(ts.token) {
		return ts.token, nil
	}
	if ts.token == nil || ts.token.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	// An expired copy forces the oauth2 source to use the refresh token
	stale := *ts.token
	stale.Expiry = time.Now().Add(-time.Minute)
	fresh, err := ts.config.TokenSource(ts.ctx, &stale).Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing strava token: %w", err)
	}

	if ts.onRefresh != nil {
		if err := ts.onRefresh(fresh); err != nil {
			return nil, fmt.Errorf("saving refreshed token: %w", err)
		}
	}

	ts.token = fresh
	return fresh, nil
}

// IsExpired reports whether the current token expires within the margin
func (ts *TokenSource) IsExpired() bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return expiring(ts.token)
}

func expiring(t *oauth2.Token) bool {
	return t == nil || t.AccessToken == "" || time.Until(t.Expiry) <= refreshMargin
}
