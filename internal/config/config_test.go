package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend.Kind != "polly" {
		t.Fatalf("expected default backend kind polly, got %q", cfg.Backend.Kind)
	}
	if cfg.Pipeline.MaxChunkChars != 3000 {
		t.Fatalf("expected default chunk limit 3000, got %d", cfg.Pipeline.MaxChunkChars)
	}
	if cfg.Pipeline.Concurrency != 1 {
		t.Fatalf("expected default concurrency 1, got %d", cfg.Pipeline.Concurrency)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voz.yaml")
	raw := `
backend:
  kind: http
  base_url: https://tts.example.com
  client_id: voz-client/1.0
  session_token: abc123
  aid: "1233"
pipeline:
  max_chunk_chars: 200
  concurrency: 4
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend.Kind != "http" {
		t.Fatalf("expected backend kind http, got %q", cfg.Backend.Kind)
	}
	if cfg.Backend.SessionToken != "abc123" {
		t.Fatalf("expected session token override")
	}
	if cfg.Pipeline.MaxChunkChars != 200 {
		t.Fatalf("expected chunk limit 200, got %d", cfg.Pipeline.MaxChunkChars)
	}
	if cfg.Pipeline.Concurrency != 4 {
		t.Fatalf("expected concurrency 4, got %d", cfg.Pipeline.Concurrency)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VOZ_BACKEND_KIND", "http")
	t.Setenv("VOZ_BACKEND_BASE_URL", "https://tts.example.com")
	t.Setenv("VOZ_BACKEND_SESSION_TOKEN", "cookie-1")
	t.Setenv("VOZ_PIPELINE_MAX_CHUNK_CHARS", "150")
	t.Setenv("VOZ_PIPELINE_RATE_LIMIT_PER_SEC", "2.5")
	t.Setenv("VOZ_BUS_ENABLED", "true")
	t.Setenv("VOZ_BUS_SERVERS", "nats://one:4222, nats://two:4222")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend.Kind != "http" || cfg.Backend.SessionToken != "cookie-1" {
		t.Fatalf("expected backend overrides, got %+v", cfg.Backend)
	}
	if cfg.Pipeline.MaxChunkChars != 150 {
		t.Fatalf("expected chunk limit 150, got %d", cfg.Pipeline.MaxChunkChars)
	}
	if cfg.Pipeline.RateLimit != 2.5 {
		t.Fatalf("expected rate limit 2.5, got %v", cfg.Pipeline.RateLimit)
	}
	if !cfg.Bus.Enabled || len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected bus overrides, got %+v", cfg.Bus)
	}
}

func TestValidationRejectsBadChunkLimit(t *testing.T) {
	t.Setenv("VOZ_PIPELINE_MAX_CHUNK_CHARS", "0")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for non-positive chunk limit")
	}
}

func TestValidationRequiresHTTPSession(t *testing.T) {
	t.Setenv("VOZ_BACKEND_KIND", "http")
	t.Setenv("VOZ_BACKEND_BASE_URL", "https://tts.example.com")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for missing session token")
	}
}

func TestValidationRejectsUnknownFormat(t *testing.T) {
	t.Setenv("VOZ_BACKEND_FORMAT", "flac")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unsupported audio format")
	}
}
