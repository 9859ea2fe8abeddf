package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"strconv"

	"github.com/voxlate/voxlate/internal/config"
)

// Tool wraps the ffmpeg and ffprobe binaries as an opaque transcoding
// boundary: extract the audio track, probe duration, trim a reference
// sample.
type Tool struct {
	ffmpeg  string
	ffprobe string
	log     *slog.Logger
}

func New(cfg config.MediaConfig, log *slog.Logger) *Tool {
	return &Tool{
		ffmpeg:  cfg.FFmpegPath,
		ffprobe: cfg.FFprobePath,
		log:     log.With(slog.String("component", "media")),
	}
}

// ExtractAudio pulls the audio track out of a video into a mono (or
// configured channel count) 16-bit PCM WAV at the given sample rate.
func (t *Tool) ExtractAudio(ctx context.Context, videoPath, outPath string, sampleRate, channels int) error {
	cmd := exec.CommandContext(ctx, t.ffmpeg,
		"-y",
		"-i", videoPath,
		"-vn",
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg extract failed: %w: %s", err, stderr.String())
	}
	t.log.Info("audio extracted", slog.String("video", videoPath), slog.String("audio", outPath))
	return nil
}

type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeDurationMS returns the media duration in milliseconds.
func (t *Tool) ProbeDurationMS(ctx context.Context, path string) (int64, error) {
	cmd := exec.CommandContext(ctx, t.ffprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return 0, fmt.Errorf("decode ffprobe output: %w", err)
	}
	seconds, err := strconv.ParseFloat(result.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse probed duration %q: %w", result.Format.Duration, err)
	}
	return int64(math.Round(seconds * 1000)), nil
}

// Trim copies the first durationMS of an audio file, used to cap the
// voice-clone reference sample.
func (t *Tool) Trim(ctx context.Context, inPath, outPath string, durationMS int64) error {
	cmd := exec.CommandContext(ctx, t.ffmpeg,
		"-y",
		"-i", inPath,
		"-t", fmt.Sprintf("%.3f", float64(durationMS)/1000),
		"-c", "copy",
		outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg trim failed: %w: %s", err, stderr.String())
	}
	return nil
}
