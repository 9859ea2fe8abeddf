package synth

import (
	"context"
	"strings"
)

// mockSynth renders silence with a deterministic duration derived from the
// word count, so tests and dry runs get stable clip lengths.
type mockSynth struct {
	sampleRate int
	channels   int
}

func NewMockSynth(sampleRate, channels int) Synthesizer {
	return &mockSynth{sampleRate: sampleRate, channels: channels}
}

func (m *mockSynth) Synthesize(ctx context.Context, req Request, outPath string) (Clip, error) {
	if err := ctx.Err(); err != nil {
		return Clip{}, err
	}
	words := len(strings.Fields(req.Text))
	if words == 0 {
		words = 1
	}
	durationMS := int64(200 + words*300)
	frames := durationMS * int64(m.sampleRate) / 1000
	pcm := make([]byte, frames*int64(m.channels)*2)
	return writePCMClip(outPath, pcm, m.sampleRate, m.channels)
}
