// Package auth acquires and refreshes backend sessions.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
)

// MaxAttempts bounds session acquisition. Exceeding it is fatal for
// the run.
const MaxAttempts = 2

// ErrExhausted reports that every acquisition attempt failed.
var ErrExhausted = errors.New("authentication attempts exhausted")

// Session is an opaque credential or cookie handle. Synthesizers
// treat it as read-only; only the Authenticator replaces it.
type Session any

// BuildFunc constructs and validates a session. A non-nil error means
// the current credential is missing or expired.
type BuildFunc func(ctx context.Context) (Session, error)

// LoginFunc runs the external interactive login flow for a profile.
type LoginFunc func(ctx context.Context, profile string) error

// SSOLogin shells out to the AWS CLI SSO flow. It inherits the
// terminal so the browser hand-off prompt stays visible.
func SSOLogin(ctx context.Context, profile string) error {
	cmd := exec.CommandContext(ctx, "aws", "sso", "login", "--profile", profile)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Authenticator retries session acquisition with an interactive login
// between attempts.
type Authenticator struct {
	profile     string
	maxAttempts int
	build       BuildFunc
	login       LoginFunc
	logger      *slog.Logger
}

func New(profile string, build BuildFunc, login LoginFunc, log *slog.Logger) *Authenticator {
	return &Authenticator{
		profile:     profile,
		maxAttempts: MaxAttempts,
		build:       build,
		login:       login,
		logger:      log.With(slog.String("component", "authenticator")),
	}
}

// Acquire validates or rebuilds a session, invoking the login flow
// between failed attempts. Login failures are logged, not returned:
// the next validation attempt is the authoritative signal.
func (a *Authenticator) Acquire(ctx context.Context) (Session, error) {
	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		session, err := a.build(ctx)
		if err == nil {
			return session, nil
		}
		lastErr = err
		a.logger.Warn("session validation failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", a.maxAttempts),
			slog.String("error", err.Error()))
		if attempt < a.maxAttempts {
			a.logger.Info("invoking interactive login", slog.String("profile", a.profile))
			if lerr := a.login(ctx, a.profile); lerr != nil {
				a.logger.Error("interactive login failed", slog.String("error", lerr.Error()))
			}
		}
	}
	a.logger.Error("max authentication attempts reached",
		slog.Int("max_attempts", a.maxAttempts),
		slog.String("error", lastErr.Error()))
	return nil, ErrExhausted
}

// Static returns an authenticator whose session is a fixed token, for
// backends whose cookie is supplied up front and never refreshed.
func Static(token string, log *slog.Logger) *Authenticator {
	return &Authenticator{
		maxAttempts: 1,
		build: func(context.Context) (Session, error) {
			return token, nil
		},
		login:  func(context.Context, string) error { return nil },
		logger: log.With(slog.String("component", "authenticator")),
	}
}
