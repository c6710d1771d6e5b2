package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/oauth2"

	"ridemetrics/internal/auth"
	"ridemetrics/internal/config"
	"ridemetrics/internal/store"
	"ridemetrics/internal/strava"
)

const usage = `usage: ridemetrics <command> [flags]

commands:
  login     authorize with Strava in the browser
  sync      import rides and streams from Strava
  import    import FIT files
  compute   compute per-ride metrics
  metrics   list the available metrics
  edges     find the best training blocks by TSS and kJ
  depth     analyze work done after the cumulative threshold
  export    write samples or timelines as Parquet
  status    show what is stored
`

// app holds what every command needs
type app struct {
	cfg    *config.Config
	db     *store.DB
	logger *slog.Logger
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if errors.Is(err, config.ErrNoConfig) {
		fmt.Println("No config file found. Creating example config...")
		if err := config.CreateExample(); err != nil {
			return fmt.Errorf("creating example config: %w", err)
		}
		configDir, _ := config.GetConfigDir()
		fmt.Printf("\nPlease edit the config file at:\n  %s/config.json\n\n", configDir)
		fmt.Println("Strava credentials are only needed for login and sync.")
		fmt.Println("Get them from: https://www.strava.com/settings/api")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		configDir, _ := config.GetConfigDir()
		return fmt.Errorf("invalid config %s/config.json: %w", configDir, err)
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	a := &app{cfg: cfg, db: db, logger: logger}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return a.login(ctx, rest)
	case "sync":
		return a.sync(ctx, rest)
	case "import":
		return a.importFiles(rest)
	case "compute":
		return a.compute(ctx, rest)
	case "metrics":
		return a.listMetrics(rest)
	case "edges":
		return a.edges(ctx, rest)
	case "depth":
		return a.depth(ctx, rest)
	case "export":
		return a.export(ctx, rest)
	case "status":
		return a.status(rest)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) oauthConfig() *oauth2.Config {
	return auth.NewOAuthConfig(auth.Credentials{
		ClientID:     a.cfg.Strava.ClientID,
		ClientSecret: a.cfg.Strava.ClientSecret,
	})
}

func (a *app) saveToken(t *oauth2.Token) error {
	return a.db.SaveAuth(&store.Auth{
		AthleteID:    auth.ExtractAthleteID(t),
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.Expiry,
	})
}

// stravaClient builds a client from the stored tokens, falling back to the
// pair in the config file
func (a *app) stravaClient(ctx context.Context) (*strava.Client, error) {
	if err := a.cfg.ValidateStrava(); err != nil {
		return nil, err
	}

	token := auth.NewToken(a.cfg.Strava.AccessToken, a.cfg.Strava.RefreshToken, a.cfg.Strava.TokenExpiry())
	stored, err := a.db.GetAuth()
	switch {
	case err == nil:
		token = auth.NewToken(stored.AccessToken, stored.RefreshToken, stored.ExpiresAt)
	case errors.Is(err, store.ErrNoAuth):
		if token.RefreshToken == "" || token.RefreshToken == "YOUR_REFRESH_TOKEN" {
			return nil, errors.New("not authorized: run 'ridemetrics login' or set strava.refresh_token")
		}
	default:
		return nil, fmt.Errorf("checking auth: %w", err)
	}

	ts := auth.NewTokenSource(ctx, a.oauthConfig(), token, a.saveToken)
	if _, err := ts.Token(); err != nil {
		return nil, fmt.Errorf("stored token is invalid, run 'ridemetrics login': %w", err)
	}
	return strava.NewClient(ctx, ts), nil
}
