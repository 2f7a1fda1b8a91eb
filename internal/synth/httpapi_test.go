package synth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vozlabs/voz-pipeline/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newHTTPSynth(baseURL string) *HTTPSynthesizer {
	return NewHTTPSynthesizer(config.BackendConfig{
		Kind:           "http",
		BaseURL:        baseURL,
		ClientID:       "voz-client/1.0",
		SpeakerMapType: 0,
		AID:            "1233",
	}, "session-token", newLogger())
}

func invokeBody(status int, audio []byte) string {
	payload := map[string]any{
		"status_code": status,
		"data": map[string]any{
			"v_str": base64.StdEncoding.EncodeToString(audio),
		},
	}
	raw, _ := json.Marshal(payload)
	return string(raw)
}

func TestSynthesizeSuccess(t *testing.T) {
	audio := []byte{0xFF, 0xF3, 0x01, 0x02}
	var gotQuery map[string][]string
	var gotCookie, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotCookie = r.Header.Get("Cookie")
		gotAgent = r.Header.Get("User-Agent")
		fmt.Fprint(w, invokeBody(0, audio))
	}))
	defer srv.Close()

	s := newHTTPSynth(srv.URL)
	got, err := s.Synthesize(context.Background(), "hello world", "en_us_001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != string(audio) {
		t.Fatalf("audio mismatch: got %v", got)
	}
	if gotQuery["req_text"][0] != "hello world" {
		t.Fatalf("unexpected req_text: %v", gotQuery["req_text"])
	}
	if gotQuery["text_speaker"][0] != "en_us_001" {
		t.Fatalf("unexpected text_speaker: %v", gotQuery["text_speaker"])
	}
	if gotQuery["aid"][0] != "1233" {
		t.Fatalf("unexpected aid: %v", gotQuery["aid"])
	}
	if gotCookie != "sessionid=session-token" {
		t.Fatalf("unexpected cookie: %q", gotCookie)
	}
	if gotAgent != "voz-client/1.0" {
		t.Fatalf("unexpected user agent: %q", gotAgent)
	}
}

func TestSynthesizeStatusCodes(t *testing.T) {
	cases := []struct {
		code int
		want string
	}{
		{1, "invalid account or missing parameters"},
		{2, "text exceeds the backend character limit"},
		{3, "speech synthesis failed"},
		{4, "invalid speaker id"},
		{99, "unknown status code"},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, invokeBody(tc.code, nil))
		}))
		s := newHTTPSynth(srv.URL)
		_, err := s.Synthesize(context.Background(), "text", "voice")
		srv.Close()

		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("code %d: expected StatusError, got %v", tc.code, err)
		}
		if statusErr.Code != tc.code {
			t.Fatalf("expected code %d, got %d", tc.code, statusErr.Code)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("code %d: diagnostic %q does not mention %q", tc.code, err.Error(), tc.want)
		}
	}
}

func TestSynthesizeRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := newHTTPSynth(srv.URL)
	if _, err := s.Synthesize(context.Background(), "text", "voice"); err == nil {
		t.Fatal("expected error for HTTP 502")
	}
}

func TestSynthesizeRejectsMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html>not json</html>")
	}))
	defer srv.Close()

	s := newHTTPSynth(srv.URL)
	_, err := s.Synthesize(context.Background(), "text", "voice")
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestSynthesizeRejectsBadBase64(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status_code":0,"data":{"v_str":"!!not-base64!!"}}`)
	}))
	defer srv.Close()

	s := newHTTPSynth(srv.URL)
	_, err := s.Synthesize(context.Background(), "text", "voice")
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestSynthesizeTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	s := newHTTPSynth(srv.URL)
	if _, err := s.Synthesize(context.Background(), "text", "voice"); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestStatusTextClosedSet(t *testing.T) {
	if StatusText(0) != "success" {
		t.Fatalf("unexpected text for 0: %q", StatusText(0))
	}
	if StatusText(-7) != "unknown status code" {
		t.Fatalf("unexpected text for -7: %q", StatusText(-7))
	}
}
