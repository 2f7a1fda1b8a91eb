package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestAcquireExhaustsAfterMaxAttempts(t *testing.T) {
	builds := 0
	logins := 0
	a := New("test-profile",
		func(context.Context) (Session, error) {
			builds++
			return nil, errors.New("token expired")
		},
		func(context.Context, string) error {
			logins++
			return nil
		},
		newLogger())

	_, err := a.Acquire(context.Background())
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if builds != MaxAttempts {
		t.Fatalf("expected %d validation attempts, got %d", MaxAttempts, builds)
	}
	if logins != MaxAttempts-1 {
		t.Fatalf("expected %d login invocations, got %d", MaxAttempts-1, logins)
	}
}

func TestAcquireSucceedsFirstAttempt(t *testing.T) {
	builds := 0
	a := New("test-profile",
		func(context.Context) (Session, error) {
			builds++
			return "session", nil
		},
		func(context.Context, string) error {
			t.Fatal("login must not run when validation succeeds")
			return nil
		},
		newLogger())

	sess, err := a.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess != Session("session") {
		t.Fatalf("unexpected session: %v", sess)
	}
	if builds != 1 {
		t.Fatalf("expected 1 attempt, got %d", builds)
	}
}

func TestAcquireSucceedsAfterLogin(t *testing.T) {
	builds := 0
	a := New("test-profile",
		func(context.Context) (Session, error) {
			builds++
			if builds == 1 {
				return nil, errors.New("token expired")
			}
			return "fresh", nil
		},
		func(context.Context, string) error { return nil },
		newLogger())

	sess, err := a.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess != Session("fresh") {
		t.Fatalf("unexpected session: %v", sess)
	}
	if builds != 2 {
		t.Fatalf("expected 2 attempts, got %d", builds)
	}
}

func TestLoginFailureIsNotFatal(t *testing.T) {
	builds := 0
	a := New("test-profile",
		func(context.Context) (Session, error) {
			builds++
			if builds == 1 {
				return nil, errors.New("token expired")
			}
			return "fresh", nil
		},
		func(context.Context, string) error {
			return errors.New("browser unavailable")
		},
		newLogger())

	sess, err := a.Acquire(context.Background())
	if err != nil {
		t.Fatalf("login failure must not abort acquisition: %v", err)
	}
	if sess != Session("fresh") {
		t.Fatalf("unexpected session: %v", sess)
	}
}

func TestStaticReturnsFixedToken(t *testing.T) {
	a := Static("cookie-token", newLogger())
	sess, err := a.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess != Session("cookie-token") {
		t.Fatalf("unexpected session: %v", sess)
	}
}
