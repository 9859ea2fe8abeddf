package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/voxlate/voxlate/internal/artifact"
	"github.com/voxlate/voxlate/internal/assemble"
	"github.com/voxlate/voxlate/internal/config"
	"github.com/voxlate/voxlate/internal/segment"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Telemetry.Enabled = false
	cfg.Artifacts.RetentionMode = "ephemeral"
	cfg.OutputDir = t.TempDir()
	// Keep test WAV files small.
	cfg.Synth.SampleRate = 8000
	return cfg
}

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestRunScriptModeEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	p, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	script := writeScript(t, "(00:00):\nHello world this is a test.\n\n(00:10):\nSecond line of speech.\n")
	outPath, err := p.Run(context.Background(), Job{
		ScriptPath: script,
		SourceLang: "en",
		TargetLang: "de",
		OutputDir:  cfg.OutputDir,
		Mode:       assemble.ModeSynchronized,
		Workers:    2,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := filepath.Join(cfg.OutputDir, "de", "de_synced.wav")
	if outPath != want {
		t.Errorf("output path = %q, want %q", outPath, want)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("output track missing: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, "de", "manifest.json"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var manifest assemble.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if len(manifest.Segments) != 2 {
		t.Fatalf("manifest has %d segments, want 2", len(manifest.Segments))
	}
	if manifest.Segments[1].PlacedMS != 10000 {
		t.Errorf("second segment placed at %dms, want 10000", manifest.Segments[1].PlacedMS)
	}
	// Segment 1 ends at the fallback duration past its 10s start.
	if manifest.TotalDurationMS != 15000 {
		t.Errorf("total duration = %dms, want 15000", manifest.TotalDurationMS)
	}
}

func TestRunSequentialMode(t *testing.T) {
	cfg := testConfig(t)
	p, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	script := writeScript(t, "(00:00):\nFirst part.\n(01:00):\nSecond part.\n")
	outPath, err := p.Run(context.Background(), Job{
		ScriptPath: script,
		SourceLang: "en",
		TargetLang: "fr",
		OutputDir:  cfg.OutputDir,
		Mode:       assemble.ModeSequential,
		GapMS:      500,
		Workers:    1,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, "fr", "manifest.json"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var manifest assemble.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if manifest.Mode != assemble.ModeSequential {
		t.Errorf("manifest mode = %q, want sequential", manifest.Mode)
	}
	if manifest.GapMS != 500 {
		t.Errorf("manifest gap = %d, want 500", manifest.GapMS)
	}
	// First clip: "[fr] First part." is 3 words, 200+3*300 = 1100ms.
	// Second clip follows the 500ms gap.
	if manifest.Segments[1].PlacedMS != 1600 {
		t.Errorf("second segment placed at %dms, want 1600", manifest.Segments[1].PlacedMS)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("output track missing: %v", err)
	}
}

func TestRunReusesCachedClips(t *testing.T) {
	cfg := testConfig(t)
	p, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	script := writeScript(t, "(00:00):\nRepeatable line.\n")
	job := Job{
		ScriptPath: script,
		SourceLang: "en",
		TargetLang: "de",
		OutputDir:  cfg.OutputDir,
		Mode:       assemble.ModeSynchronized,
		Workers:    1,
	}
	if _, err := p.Run(context.Background(), job); err != nil {
		t.Fatalf("first run: %v", err)
	}

	clip := filepath.Join(cfg.OutputDir, "de", "seg_0000_de_clone.wav")
	first, err := os.Stat(clip)
	if err != nil {
		t.Fatalf("clip missing after first run: %v", err)
	}

	if _, err := p.Run(context.Background(), job); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second, err := os.Stat(clip)
	if err != nil {
		t.Fatalf("clip missing after second run: %v", err)
	}
	if !second.ModTime().Equal(first.ModTime()) {
		t.Errorf("clip was re-synthesized, want cache hit")
	}
}

func TestRunCanceledContextFails(t *testing.T) {
	cfg := testConfig(t)
	p, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	script := writeScript(t, "(00:00):\nSame language pass-through.\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Run(ctx, Job{
		ScriptPath: script,
		SourceLang: "de",
		TargetLang: "de",
		OutputDir:  cfg.OutputDir,
		Mode:       assemble.ModeSynchronized,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if _, statErr := os.Stat(filepath.Join(cfg.OutputDir, "de", "de_synced.wav")); statErr == nil {
		t.Error("canceled run wrote an output track")
	}
}

func TestSynthesizeAbortsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	p, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	store, err := artifact.Open(context.Background(), cfg.Artifacts, testLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	set := segment.Set{
		{Index: 0, StartMS: 0, EndMS: 1000, SourceText: "hi", TranslatedText: "hallo"},
		{Index: 1, StartMS: 1000, EndMS: 2000, SourceText: "there", TranslatedText: "da"},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := Job{TargetLang: "de", OutputDir: cfg.OutputDir, Mode: assemble.ModeSynchronized}
	got, err := p.synthesizePhase(ctx, store, "run-1", job, set, "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("synthesizePhase error = %v, want context.Canceled", err)
	}
	if got != nil {
		t.Errorf("expected no set from an aborted phase, got %d segments", len(got))
	}
}

func TestRunEmptyScript(t *testing.T) {
	cfg := testConfig(t)
	p, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	script := writeScript(t, "\n\n")
	_, err = p.Run(context.Background(), Job{
		ScriptPath: script,
		SourceLang: "en",
		TargetLang: "de",
		OutputDir:  cfg.OutputDir,
		Mode:       assemble.ModeSynchronized,
	})
	if err != ErrNoSegments {
		t.Errorf("Run error = %v, want ErrNoSegments", err)
	}
}

func TestValidateJob(t *testing.T) {
	script := filepath.Join(t.TempDir(), "s.txt")
	if err := os.WriteFile(script, []byte("hi\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	good := Job{
		ScriptPath: script,
		TargetLang: "de",
		OutputDir:  "out",
		Mode:       assemble.ModeSynchronized,
	}
	if err := validateJob(good); err != nil {
		t.Errorf("valid job rejected: %v", err)
	}

	cases := map[string]func(j *Job){
		"no input":       func(j *Job) { j.ScriptPath = "" },
		"both inputs":    func(j *Job) { j.VideoPath = "x.mp4" },
		"missing file":   func(j *Job) { j.ScriptPath = "does-not-exist.txt" },
		"no target lang": func(j *Job) { j.TargetLang = "" },
		"no output dir":  func(j *Job) { j.OutputDir = "" },
		"bad mode":       func(j *Job) { j.Mode = "shuffled" },
	}
	for name, mutate := range cases {
		j := good
		mutate(&j)
		if err := validateJob(j); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
