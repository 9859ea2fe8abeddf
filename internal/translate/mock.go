package translate

import (
	"context"
	"strings"
	"time"
)

type mockTranslator struct{}

func NewMockTranslator() Translator { return &mockTranslator{} }

func (m *mockTranslator) Translate(ctx context.Context, req Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(5 * time.Millisecond):
	}
	return "[" + req.TargetLang + "] " + strings.TrimSpace(req.Text), nil
}
