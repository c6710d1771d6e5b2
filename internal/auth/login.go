package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultCallbackAddr is where the OAuth callback server listens
	DefaultCallbackAddr = "localhost:8089"
	// DefaultLoginTimeout is how long to wait for the user to complete auth
	DefaultLoginTimeout = 5 * time.Minute
)

var errStateMismatch = errors.New("state mismatch")

// Result is the outcome of a completed login
type Result struct {
	Token     *oauth2.Token
	AthleteID int64
}

// Login runs the authorization code flow against a local callback server
type Login struct {
	Config  *oauth2.Config
	Addr    string
	Timeout time.Duration
	// Prompt is handed the URL the user has to open
	Prompt func(authURL string)
}

// Run waits for the browser to come back with a code and exchanges it
func (l *Login) Run(ctx context.Context) (*Result, error) {
	addr, timeout := l.Addr, l.Timeout
	if addr == "" {
		addr = DefaultCallbackAddr
	}
	if timeout <= 0 {
		timeout = DefaultLoginTimeout
	}

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generating state: %w", err)
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("starting callback server: %w", err)
	}

	cfg := *l.Config
	cfg.RedirectURL = "http://" + listener.Addr().String() + "/callback"

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", callbackHandler(state, codeCh, errCh))

	server := &http.Server{Handler: mux}
	defer shutdownServer(server)
	go func() {
		if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			report(errCh, fmt.Errorf("callback server: %w", err))
		}
	}()

	if l.Prompt != nil {
		l.Prompt(cfg.AuthCodeURL(state, oauth2.AccessTypeOffline))
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return nil, err
	case <-timer.C:
		return nil, fmt.Errorf("authentication timeout after %v", timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging code for token: %w", err)
	}
	return &Result{Token: token, AthleteID: ExtractAthleteID(token)}, nil
}

func callbackHandler(state string, codeCh chan<- string, errCh chan<- error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			report(errCh, errStateMismatch)
			http.Error(w, "State mismatch", http.StatusBadRequest)
			return
		}
		if msg := q.Get("error"); msg != "" {
			report(errCh, fmt.Errorf("auth error: %s", msg))
			http.Error(w, "Authentication failed", http.StatusBadRequest)
			return
		}
		code := q.Get("code")
		if code == "" {
			report(errCh, errors.New("no code in callback"))
			http.Error(w, "No authorization code", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "ridemetrics is authorized. You can close this window.")
		select {
		case codeCh <- code:
		default:
		}
	}
}

// report delivers err unless an earlier error is still pending
func report(errCh chan<- error, err error) {
	select {
	case errCh <- err:
	default:
	}
}

// generateState creates a random state string for CSRF protection
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func shutdownServer(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	server.Shutdown(ctx)
}
