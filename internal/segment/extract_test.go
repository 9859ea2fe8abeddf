package segment

import (
	"io"
	"log/slog"
	"strings"
	"testing"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestFromSpansContiguousIndices(t *testing.T) {
	spans := []Span{
		{StartMS: 0, EndMS: 2500, Text: "hello there"},
		{StartMS: 2500, EndMS: 0, Text: "   "}, // dropped: empty after trim
		{StartMS: 3000, EndMS: 5200, Text: "second"},
		{StartMS: 1000, EndMS: 2000, Text: "out of order"}, // dropped
		{StartMS: 6000, EndMS: 8000, Text: "third"},
	}
	set := FromSpans(spans, ExtractOptions{}, newLogger())
	if len(set) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(set))
	}
	for i, s := range set {
		if s.Index != i {
			t.Fatalf("expected contiguous indices, got %d at position %d", s.Index, i)
		}
		if s.EndMS <= s.StartMS {
			t.Fatalf("segment %d violates end > start: %d..%d", i, s.StartMS, s.EndMS)
		}
	}
	if set[1].SourceText != "second" {
		t.Fatalf("unexpected reindexing: %+v", set[1])
	}
}

func TestFromSpansEndInference(t *testing.T) {
	spans := []Span{
		{StartMS: 0, Text: "a"},
		{StartMS: 4000, Text: "b"},
	}

	set := FromSpans(spans, ExtractOptions{MediaDurationMS: 9000}, newLogger())
	if set[0].EndMS != 4000 {
		t.Fatalf("expected first end at next start 4000, got %d", set[0].EndMS)
	}
	if set[1].EndMS != 9000 {
		t.Fatalf("expected last end at media duration 9000, got %d", set[1].EndMS)
	}

	set = FromSpans(spans, ExtractOptions{}, newLogger())
	if set[1].EndMS != 4000+DefaultFallbackDurationMS {
		t.Fatalf("expected fallback end %d, got %d", 4000+DefaultFallbackDurationMS, set[1].EndMS)
	}
}

func TestFromSpansNegativeStartDropped(t *testing.T) {
	set := FromSpans([]Span{{StartMS: -10, EndMS: 100, Text: "bad"}}, ExtractOptions{}, newLogger())
	if len(set) != 0 {
		t.Fatalf("expected negative-start span dropped, got %d segments", len(set))
	}
}

func TestParseScript(t *testing.T) {
	script := `
Speaker One (00:05):
Welcome everyone.
Glad you are here.

(01:30):
Now for the second part.

(99:99):
This text keeps the previous marker time.
`
	spans, err := ParseScript(strings.NewReader(script), newLogger())
	if err != nil {
		t.Fatalf("parse script: %v", err)
	}
	if len(spans) != 4 {
		t.Fatalf("expected 4 spans, got %d", len(spans))
	}
	if spans[0].StartMS != 5000 || spans[1].StartMS != 5000 {
		t.Fatalf("expected first marker applied to both lines, got %d and %d", spans[0].StartMS, spans[1].StartMS)
	}
	if spans[2].StartMS != 90000 {
		t.Fatalf("expected 01:30 -> 90000ms, got %d", spans[2].StartMS)
	}
	// (99:99) is unparsable (seconds out of range) so its text stays at 90000.
	if spans[3].StartMS != 90000 {
		t.Fatalf("expected bad marker ignored, got %d", spans[3].StartMS)
	}

	set := FromSpans(spans, ExtractOptions{}, newLogger())
	if len(set) != 4 {
		t.Fatalf("expected 4 segments, got %d", len(set))
	}
	// Spans 0 and 1 share a start time, so span 0 cannot be closed by the
	// next start and falls back to the fixed estimate.
	if set[0].EndMS != set[0].StartMS+DefaultFallbackDurationMS {
		t.Fatalf("expected fallback close for segment 0, got %d", set[0].EndMS)
	}
	if set[1].EndMS != 90000 {
		t.Fatalf("expected segment 1 closed by next marker, got %d", set[1].EndMS)
	}
}

func TestSetMaxEndMS(t *testing.T) {
	set := Set{
		{Index: 0, StartMS: 0, EndMS: 2000},
		{Index: 1, StartMS: 2000, EndMS: 7000},
		{Index: 2, StartMS: 5000, EndMS: 6000},
	}
	if got := set.MaxEndMS(); got != 7000 {
		t.Fatalf("expected max end 7000, got %d", got)
	}
}
