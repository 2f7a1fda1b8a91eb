package synth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vozlabs/voz-pipeline/internal/config"
)

const invokePath = "/api/text/speech/invoke/"

// Backend status codes form a closed enumeration; only statusOK
// proceeds to audio extraction.
const (
	statusOK             = 0
	statusInvalidAccount = 1
	statusTextTooLong    = 2
	statusSynthFailed    = 3
	statusInvalidSpeaker = 4
)

// StatusText maps a backend status code to its diagnostic.
func StatusText(code int) string {
	switch code {
	case statusOK:
		return "success"
	case statusInvalidAccount:
		return "invalid account or missing parameters"
	case statusTextTooLong:
		return "text exceeds the backend character limit"
	case statusSynthFailed:
		return "speech synthesis failed"
	case statusInvalidSpeaker:
		return "invalid speaker id"
	default:
		return "unknown status code"
	}
}

// StatusError is a semantic failure reported by the backend itself.
// It is never retried: a non-zero status signals malformed input, not
// a transient fault.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend status %d: %s", e.Code, StatusText(e.Code))
}

type invokeResponse struct {
	StatusCode int `json:"status_code"`
	Data       struct {
		VStr     string `json:"v_str"`
		Duration string `json:"duration"`
	} `json:"data"`
}

// HTTPSynthesizer calls a raw TTS endpoint authorized by a session
// cookie. The cookie is static for the lifetime of the run.
type HTTPSynthesizer struct {
	baseURL        string
	clientID       string
	aid            string
	speakerMapType int
	session        string
	client         *http.Client
	logger         *slog.Logger
}

func NewHTTPSynthesizer(cfg config.BackendConfig, session string, log *slog.Logger) *HTTPSynthesizer {
	return &HTTPSynthesizer{
		baseURL:        strings.TrimSuffix(cfg.BaseURL, "/"),
		clientID:       cfg.ClientID,
		aid:            cfg.AID,
		speakerMapType: cfg.SpeakerMapType,
		session:        session,
		client:         &http.Client{Timeout: 30 * time.Second},
		logger:         log.With(slog.String("component", "http-synth")),
	}
}

func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	params := url.Values{}
	params.Set("text_speaker", voice)
	params.Set("req_text", text)
	params.Set("speaker_map_type", strconv.Itoa(s.speakerMapType))
	params.Set("aid", s.aid)

	endpoint := s.baseURL + invokePath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build synthesis request: %w", err)
	}
	if s.clientID != "" {
		req.Header.Set("User-Agent", s.clientID)
	}
	req.Header.Set("Cookie", "sessionid="+s.session)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call speech backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speech backend returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read backend response: %w", err)
	}
	var payload invokeResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if payload.StatusCode != statusOK {
		s.logger.Error("backend rejected synthesis",
			slog.Int("status_code", payload.StatusCode),
			slog.String("status", StatusText(payload.StatusCode)),
			slog.String("voice", voice))
		return nil, &StatusError{Code: payload.StatusCode}
	}

	audio, err := base64.StdEncoding.DecodeString(payload.Data.VStr)
	if err != nil {
		return nil, fmt.Errorf("%w: decode v_str: %v", ErrDecode, err)
	}
	return audio, nil
}
