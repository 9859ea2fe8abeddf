package transcribe

import (
	"context"

	"github.com/voxlate/voxlate/internal/segment"
)

// Result captures recognizer output for a whole audio file.
type Result struct {
	Language string
	Spans    []segment.Span
}

// Recognizer abstracts speech-to-text backends.
type Recognizer interface {
	Transcribe(ctx context.Context, audioPath string) (Result, error)
}
