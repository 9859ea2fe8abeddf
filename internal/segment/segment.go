package segment

// Segment is one timestamped utterance extracted from a transcript.
// StartMS/EndMS are offsets into the source audio; TranslatedText and the
// audio fields are filled in by later pipeline phases.
type Segment struct {
	Index           int
	StartMS         int64
	EndMS           int64
	SourceText      string
	TranslatedText  string
	AudioPath       string
	AudioDurationMS int64
}

// Duration returns the source-timeline length of the segment.
func (s Segment) Duration() int64 { return s.EndMS - s.StartMS }

// HasAudio reports whether synthesis produced a clip for this segment.
func (s Segment) HasAudio() bool { return s.AudioPath != "" }

// Set is the ordered sequence of all segments for one job. Insertion order,
// chronological order and Index order coincide; indices form a contiguous
// range starting at zero.
type Set []Segment

// MaxEndMS returns the latest source end time across all segments.
func (set Set) MaxEndMS() int64 {
	var max int64
	for _, s := range set {
		if s.EndMS > max {
			max = s.EndMS
		}
	}
	return max
}

// Span is a raw timestamped text span as produced by a transcription
// backend or a script parser, before index assignment and end inference.
// EndMS <= StartMS marks an unterminated span.
type Span struct {
	StartMS int64
	EndMS   int64
	Text    string
}
