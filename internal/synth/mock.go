package synth

import "context"

type mockSynth struct {
	render func(text, voice string) []byte
}

// NewMock returns a synthesizer that renders deterministic bytes
// without touching the network. A nil render echoes the chunk text.
func NewMock(render func(text, voice string) []byte) Synthesizer {
	if render == nil {
		render = func(text, _ string) []byte { return []byte(text) }
	}
	return &mockSynth{render: render}
}

func (m *mockSynth) Synthesize(_ context.Context, text, voice string) ([]byte, error) {
	return m.render(text, voice), nil
}
