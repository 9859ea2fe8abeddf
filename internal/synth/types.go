package synth

import "context"

// Request contains parameters to synthesize one translated segment.
type Request struct {
	Index    int
	Text     string
	Language string
	Voice    string
	// PromptPath points at a reference speaker sample for voice cloning.
	// Empty means the backend's stock voice.
	PromptPath string
}

// Clip describes one rendered audio artifact on disk.
type Clip struct {
	Path       string
	DurationMS int64
	SampleRate int
	Channels   int
}

// Synthesizer is the contract for producing one audio clip per segment.
// The clip is written to outPath as 16-bit PCM WAV.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request, outPath string) (Clip, error)
}
