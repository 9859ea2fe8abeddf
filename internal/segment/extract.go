package segment

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// DefaultFallbackDurationMS is used for the last segment when no media
// duration is available to close an unterminated span.
const DefaultFallbackDurationMS = 5000

// ExtractOptions controls span-to-segment conversion.
type ExtractOptions struct {
	// MediaDurationMS closes the final unterminated span when positive.
	MediaDurationMS int64
	// FallbackDurationMS closes the final span when no media duration is
	// known. Zero means DefaultFallbackDurationMS.
	FallbackDurationMS int64
}

// FromSpans converts raw transcription spans into a Set with contiguous
// zero-based indices. Spans that are empty after trimming, start before
// zero, or break the non-decreasing start-time order are dropped with a
// warning. Unterminated spans get their end from the next span's start;
// the last span falls back to the media duration or a fixed estimate.
func FromSpans(spans []Span, opts ExtractOptions, log *slog.Logger) Set {
	fallback := opts.FallbackDurationMS
	if fallback <= 0 {
		fallback = DefaultFallbackDurationMS
	}

	kept := make([]Span, 0, len(spans))
	var prevStart int64
	for i, sp := range spans {
		text := strings.TrimSpace(sp.Text)
		if text == "" {
			continue
		}
		if sp.StartMS < 0 {
			log.Warn("dropping span with negative start",
				slog.Int("span", i), slog.Int64("start_ms", sp.StartMS))
			continue
		}
		if len(kept) > 0 && sp.StartMS < prevStart {
			log.Warn("dropping span breaking timestamp order",
				slog.Int("span", i), slog.Int64("start_ms", sp.StartMS),
				slog.Int64("prev_start_ms", prevStart))
			continue
		}
		sp.Text = text
		kept = append(kept, sp)
		prevStart = sp.StartMS
	}

	set := make(Set, 0, len(kept))
	for i, sp := range kept {
		end := sp.EndMS
		if end <= sp.StartMS {
			switch {
			case i+1 < len(kept) && kept[i+1].StartMS > sp.StartMS:
				end = kept[i+1].StartMS
			case opts.MediaDurationMS > sp.StartMS:
				end = opts.MediaDurationMS
			default:
				end = sp.StartMS + fallback
			}
		}
		set = append(set, Segment{
			Index:      i,
			StartMS:    sp.StartMS,
			EndMS:      end,
			SourceText: sp.Text,
		})
	}
	return set
}

// Timestamp markers in script files look like "(03:27):", optionally with
// surrounding text, the way exported sermon/interview transcripts are laid out.
var timestampMarker = regexp.MustCompile(`\((\d{1,3}):(\d{2})\):?`)

// ParseScript reads a plain-text script where lines carrying a "(MM:SS):"
// marker set the start time for the text lines that follow. Lines with an
// unparsable marker are dropped with a warning. The returned spans are
// unterminated; run them through FromSpans.
func ParseScript(r io.Reader, log *slog.Logger) ([]Span, error) {
	var spans []Span
	var currentMS int64

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if m := timestampMarker.FindStringSubmatch(line); m != nil {
			ms, err := markerToMS(m[1], m[2])
			if err != nil {
				log.Warn("dropping unparsable timestamp marker",
					slog.Int("line", lineNo), slog.String("marker", m[0]))
				continue
			}
			if ms < currentMS {
				log.Warn("dropping marker breaking timestamp order",
					slog.Int("line", lineNo), slog.String("marker", m[0]))
				continue
			}
			currentMS = ms
			continue
		}
		spans = append(spans, Span{StartMS: currentMS, Text: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return spans, nil
}

func markerToMS(minutes, seconds string) (int64, error) {
	m, err := strconv.ParseInt(minutes, 10, 64)
	if err != nil {
		return 0, err
	}
	s, err := strconv.ParseInt(seconds, 10, 64)
	if err != nil {
		return 0, err
	}
	if s >= 60 {
		return 0, fmt.Errorf("seconds out of range: %d", s)
	}
	return (m*60 + s) * 1000, nil
}
