package transcribe

import (
	"context"

	"github.com/voxlate/voxlate/internal/segment"
)

type mockRecognizer struct{}

func NewMockRecognizer() Recognizer {
	return &mockRecognizer{}
}

func (m *mockRecognizer) Transcribe(_ context.Context, audioPath string) (Result, error) {
	return Result{
		Language: "en",
		Spans: []segment.Span{
			{StartMS: 0, EndMS: 2000, Text: "[mock transcript of " + audioPath + "]"},
			{StartMS: 2500, EndMS: 4500, Text: "[mock transcript continues]"},
		},
	}, nil
}
