package synth

import (
	"context"
	"errors"
)

// Request describes one unit of synthesis work. It is immutable once
// issued.
type Request struct {
	ID      string `json:"id"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Synthesizer turns one chunk of text into raw audio bytes. The bytes
// are opaque: no audio validation happens at this layer. Audio format
// and language are fixed per backend at construction.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// ErrDecode reports a backend response body that could not be parsed.
var ErrDecode = errors.New("malformed backend response")
