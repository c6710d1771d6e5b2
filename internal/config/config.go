package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	Strava       StravaConfig   `json:"strava"`
	Athlete      AthleteConfig  `json:"athlete"`
	Analysis     AnalysisConfig `json:"analysis"`
	LogLevel     string         `json:"log_level"`
	DatabasePath string         `json:"database_path,omitempty"`
}

// StravaConfig holds Strava API credentials and the initial token pair.
// Refreshed tokens are kept in the database.
type StravaConfig struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"` // unix seconds
}

// TokenExpiry returns ExpiresAt as a time
func (s StravaConfig) TokenExpiry() time.Time {
	return time.Unix(s.ExpiresAt, 0)
}

// AthleteConfig holds athlete-specific settings. Zero means estimate from
// ride history.
type AthleteConfig struct {
	FTP      float64 `json:"ftp_w"`
	CP       float64 `json:"cp_w"`
	WPrime   float64 `json:"w_prime_j"`
	WeightKG float64 `json:"weight_kg"`
}

// AnalysisConfig tunes the depth and adaptation analyses
type AnalysisConfig struct {
	DepthThresholdKJ       float64 `json:"depth_threshold_kj"`
	DepthMinPowerW         float64 `json:"depth_min_power_w"`
	DepthMovingAverageDays int     `json:"depth_moving_average_days"`
	WindowMinDays          int     `json:"window_min_days"`
	WindowMaxDays          int     `json:"window_max_days"`
	FetchConcurrency       int     `json:"fetch_concurrency"`
}

// ErrNoConfig is returned when the config file doesn't exist
var ErrNoConfig = errors.New("config file not found")

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Analysis: AnalysisConfig{
			DepthThresholdKJ:       1000,
			DepthMinPowerW:         100,
			DepthMovingAverageDays: 90,
			WindowMinDays:          3,
			WindowMaxDays:          25,
			FetchConcurrency:       4,
		},
		LogLevel: "info",
	}
}

// Load reads the configuration from ~/.ridemetrics/config.json
func Load() (*Config, error) {
	path, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the configuration from path
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNoConfig
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults fills in missing values
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	a, d := &c.Analysis, defaults.Analysis
	if a.DepthThresholdKJ == 0 {
		a.DepthThresholdKJ = d.DepthThresholdKJ
	}
	if a.DepthMinPowerW == 0 {
		a.DepthMinPowerW = d.DepthMinPowerW
	}
	if a.DepthMovingAverageDays == 0 {
		a.DepthMovingAverageDays = d.DepthMovingAverageDays
	}
	if a.WindowMinDays == 0 {
		a.WindowMinDays = d.WindowMinDays
	}
	if a.WindowMaxDays == 0 {
		a.WindowMaxDays = d.WindowMaxDays
	}
	if a.FetchConcurrency == 0 {
		a.FetchConcurrency = d.FetchConcurrency
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
}

// Save writes the configuration to ~/.ridemetrics/config.json
func Save(cfg *Config) error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

// SaveTo writes the configuration to path
func SaveTo(path string, cfg *Config) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CreateExample creates an example config file if none exists
func CreateExample() error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}

	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return nil // Config exists, don't overwrite
	}

	example := DefaultConfig()
	example.Strava = StravaConfig{
		ClientID:     "YOUR_CLIENT_ID",
		ClientSecret: "YOUR_CLIENT_SECRET",
		RefreshToken: "YOUR_REFRESH_TOKEN",
	}
	return SaveTo(path, &example)
}

// Validate checks that the values are usable
func (c *Config) Validate() error {
	if c.Athlete.FTP < 0 {
		return fmt.Errorf("athlete.ftp_w must not be negative, got %v", c.Athlete.FTP)
	}
	if c.Athlete.CP < 0 {
		return fmt.Errorf("athlete.cp_w must not be negative, got %v", c.Athlete.CP)
	}
	if c.Athlete.WPrime < 0 {
		return fmt.Errorf("athlete.w_prime_j must not be negative, got %v", c.Athlete.WPrime)
	}
	if c.Athlete.WeightKG < 0 {
		return fmt.Errorf("athlete.weight_kg must not be negative, got %v", c.Athlete.WeightKG)
	}

	a := c.Analysis
	if a.DepthThresholdKJ < 0 || a.DepthMinPowerW < 0 {
		return errors.New("analysis.depth_threshold_kj and analysis.depth_min_power_w must not be negative")
	}
	if a.WindowMinDays < 1 {
		return fmt.Errorf("analysis.window_min_days must be at least 1, got %d", a.WindowMinDays)
	}
	if a.WindowMaxDays < a.WindowMinDays {
		return fmt.Errorf("analysis.window_max_days (%d) must not be less than analysis.window_min_days (%d)", a.WindowMaxDays, a.WindowMinDays)
	}
	if a.FetchConcurrency < 1 {
		return fmt.Errorf("analysis.fetch_concurrency must be at least 1, got %d", a.FetchConcurrency)
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// ValidateStrava checks the fields needed to talk to the Strava API
func (c *Config) ValidateStrava() error {
	if c.Strava.ClientID == "" || c.Strava.ClientID == "YOUR_CLIENT_ID" {
		return errors.New("strava.client_id is required - get it from https://www.strava.com/settings/api")
	}
	if c.Strava.ClientSecret == "" || c.Strava.ClientSecret == "YOUR_CLIENT_SECRET" {
		return errors.New("strava.client_secret is required - get it from https://www.strava.com/settings/api")
	}
	return nil
}

// ParseLogLevel maps a config log level to a slog level
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", s)
	}
}

// getConfigPath returns the path to the config file
func getConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".ridemetrics"), nil
}
