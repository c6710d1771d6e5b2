// Package auth keeps Strava OAuth tokens fresh for unattended syncs.
package auth

import (
	"time"

	"golang.org/x/oauth2"
)

// Strava OAuth endpoints
const (
	AuthURL  = "https://www.strava.com/oauth/authorize"
	TokenURL = "https://www.strava.com/oauth/token"
)

// Scopes required to read private rides with their streams. Strava expects
// them comma separated in a single scope value.
var Scopes = []string{"read,activity:read_all"}

// Credentials identify the registered Strava API application
type Credentials struct {
	ClientID     string
	ClientSecret string
	// TokenURL overrides the Strava token endpoint; tests point it at a
	// local server.
	TokenURL string
}

// NewOAuthConfig creates an oauth2.Config for the Strava API
func NewOAuthConfig(c Credentials) *oauth2.Config {
	tokenURL := c.TokenURL
	if tokenURL == "" {
		tokenURL = TokenURL
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   AuthURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: Scopes,
	}
}

// NewToken builds an oauth2 token from a stored token pair
func NewToken(accessToken, refreshToken string, expiresAt time.Time) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		Expiry:       expiresAt,
	}
}

// ExtractAthleteID extracts the athlete ID from the token extras. Strava
// includes athlete info in the token response; 0 means absent.
func ExtractAthleteID(token *oauth2.Token) int64 {
	if athlete, ok := token.Extra("athlete").(map[string]any); ok {
		if id, ok := athlete["id"].(float64); ok {
			return int64(id)
		}
	}
	return 0
}
