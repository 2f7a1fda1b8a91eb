package protocol

import "time"

// SynthesizeRequest asks the worker to produce one audio artifact.
type SynthesizeRequest struct {
	ID      string `json:"id"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// SynthesizeResult reports the outcome of one request. Exactly one of
// Artifact or Error is set.
type SynthesizeResult struct {
	ID        string    `json:"id"`
	Artifact  string    `json:"artifact,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectSynthesizeRequest = "speech.synthesize.request"
	SubjectSynthesizeResult  = "speech.synthesize.result"
)
