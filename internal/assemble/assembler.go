package assemble

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/voxlate/voxlate/internal/segment"
)

// Mode selects how per-segment clips are merged into one track.
type Mode string

const (
	// ModeSynchronized places each clip at its source-timeline offset,
	// padding with silence, for video dubbing.
	ModeSynchronized Mode = "synchronized"
	// ModeSequential concatenates clips in index order with a fixed gap,
	// for podcast or audiobook output.
	ModeSequential Mode = "sequential"
)

// Options configures an Assembler.
type Options struct {
	Mode       Mode
	GapMS      int64
	SampleRate int
	Channels   int
}

// ManifestEntry records where one segment landed in the output track.
// PlacedMS is -1 for segments that produced no audio.
type ManifestEntry struct {
	Index      int    `json:"index"`
	File       string `json:"file,omitempty"`
	StartMS    int64  `json:"start_ms"`
	PlacedMS   int64  `json:"placed_ms"`
	DurationMS int64  `json:"duration_ms"`
	Missing    bool   `json:"missing,omitempty"`
}

// Manifest describes an assembled track for inspection and resumable
// rebuilds.
type Manifest struct {
	Mode            Mode            `json:"mode"`
	OutputFile      string          `json:"output_file"`
	TotalDurationMS int64           `json:"total_duration_ms"`
	GapMS           int64           `json:"gap_ms,omitempty"`
	Segments        []ManifestEntry `json:"segments"`
}

// Assembler merges per-segment clips into one output track.
type Assembler struct {
	opts Options
	log  *slog.Logger
}

func New(opts Options, log *slog.Logger) *Assembler {
	return &Assembler{opts: opts, log: log.With(slog.String("component", "assembler"))}
}

// Build reads the clips referenced by the set, merges them according to
// the configured mode, writes the track to outPath and returns the
// manifest. Segments without audio leave silence in synchronized mode and
// are omitted in sequential mode.
func (a *Assembler) Build(set segment.Set, outPath string) (Manifest, error) {
	clips := make(map[int]*audio.IntBuffer, len(set))
	for _, s := range set {
		if !s.HasAudio() {
			continue
		}
		buf, err := readBuffer(s.AudioPath)
		if err != nil {
			return Manifest{}, fmt.Errorf("read clip for segment %d: %w", s.Index, err)
		}
		if buf.Format.SampleRate != a.opts.SampleRate || buf.Format.NumChannels != a.opts.Channels {
			return Manifest{}, fmt.Errorf("clip for segment %d has format %dHz/%dch, want %dHz/%dch",
				s.Index, buf.Format.SampleRate, buf.Format.NumChannels, a.opts.SampleRate, a.opts.Channels)
		}
		clips[s.Index] = buf
	}

	var (
		manifest Manifest
		err      error
	)
	switch a.opts.Mode {
	case ModeSequential:
		manifest, err = a.buildSequential(set, clips, outPath)
	default:
		manifest, err = a.buildSynchronized(set, clips, outPath)
	}
	if err != nil {
		return Manifest{}, err
	}

	a.log.Info("track assembled",
		slog.String("mode", string(manifest.Mode)),
		slog.String("output", outPath),
		slog.Int64("total_ms", manifest.TotalDurationMS),
		slog.Int("segments", len(set)),
		slog.Int("clips", len(clips)))
	return manifest, nil
}

// buildSynchronized lays clips onto a silent canvas at their source
// offsets. Clips are placed in index order and never truncated: when a
// clip overruns into the next segment's slot, the next clip starts after
// it instead of on top of it, trailing its nominal offset. Cutting cloned
// speech mid-word is worse than minor desync.
func (a *Assembler) buildSynchronized(set segment.Set, clips map[int]*audio.IntBuffer, outPath string) (Manifest, error) {
	manifest := Manifest{Mode: ModeSynchronized, OutputFile: outPath}

	// First pass fixes placements so the canvas can be sized up front.
	// Missing segments still hold the timeline open through their EndMS.
	totalMS := set.MaxEndMS()
	var cursorMS int64
	for _, s := range set {
		clip, ok := clips[s.Index]
		if !ok {
			manifest.Segments = append(manifest.Segments, ManifestEntry{
				Index:    s.Index,
				StartMS:  s.StartMS,
				PlacedMS: -1,
				Missing:  true,
			})
			continue
		}
		placed := s.StartMS
		if cursorMS > placed {
			placed = cursorMS
			a.log.Warn("clip trails its source offset after overrun",
				slog.Int("segment", s.Index),
				slog.Int64("nominal_ms", s.StartMS),
				slog.Int64("placed_ms", placed))
		}
		durMS := a.framesToMS(len(clip.Data) / a.opts.Channels)
		cursorMS = placed + durMS
		if cursorMS > totalMS {
			totalMS = cursorMS
		}
		manifest.Segments = append(manifest.Segments, ManifestEntry{
			Index:      s.Index,
			File:       filepath.Base(s.AudioPath),
			StartMS:    s.StartMS,
			PlacedMS:   placed,
			DurationMS: durMS,
		})
	}
	manifest.TotalDurationMS = totalMS

	canvas := make([]int, a.msToFrames(totalMS)*a.opts.Channels)
	for _, entry := range manifest.Segments {
		if entry.Missing {
			continue
		}
		clip := clips[entry.Index]
		offset := a.msToFrames(entry.PlacedMS) * a.opts.Channels
		copy(canvas[offset:], clip.Data)
	}

	if err := writeBuffer(outPath, canvas, a.opts.SampleRate, a.opts.Channels); err != nil {
		return Manifest{}, err
	}
	return manifest, nil
}

// buildSequential concatenates clips in index order with a fixed silence
// gap between consecutive pairs. Missing segments are omitted outright, so
// a partial run yields a shorter track than synchronized mode would.
func (a *Assembler) buildSequential(set segment.Set, clips map[int]*audio.IntBuffer, outPath string) (Manifest, error) {
	manifest := Manifest{Mode: ModeSequential, OutputFile: outPath, GapMS: a.opts.GapMS}

	gapSamples := a.msToFrames(a.opts.GapMS) * a.opts.Channels
	var track []int
	var cursorMS int64
	placedAny := false
	for _, s := range set {
		clip, ok := clips[s.Index]
		if !ok {
			manifest.Segments = append(manifest.Segments, ManifestEntry{
				Index:    s.Index,
				StartMS:  s.StartMS,
				PlacedMS: -1,
				Missing:  true,
			})
			continue
		}
		if placedAny {
			track = append(track, make([]int, gapSamples)...)
			cursorMS += a.opts.GapMS
		}
		durMS := a.framesToMS(len(clip.Data) / a.opts.Channels)
		manifest.Segments = append(manifest.Segments, ManifestEntry{
			Index:      s.Index,
			File:       filepath.Base(s.AudioPath),
			StartMS:    s.StartMS,
			PlacedMS:   cursorMS,
			DurationMS: durMS,
		})
		track = append(track, clip.Data...)
		cursorMS += durMS
		placedAny = true
	}
	manifest.TotalDurationMS = cursorMS

	if err := writeBuffer(outPath, track, a.opts.SampleRate, a.opts.Channels); err != nil {
		return Manifest{}, err
	}
	return manifest, nil
}

// WriteManifest persists the manifest as indented JSON.
func WriteManifest(m Manifest, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func (a *Assembler) msToFrames(ms int64) int {
	return int(ms * int64(a.opts.SampleRate) / 1000)
}

func (a *Assembler) framesToMS(frames int) int64 {
	return int64(frames) * 1000 / int64(a.opts.SampleRate)
}
