package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/voxlate/voxlate/internal/artifact"
	"github.com/voxlate/voxlate/internal/assemble"
	"github.com/voxlate/voxlate/internal/config"
	"github.com/voxlate/voxlate/internal/media"
	"github.com/voxlate/voxlate/internal/segment"
	"github.com/voxlate/voxlate/internal/synth"
	"github.com/voxlate/voxlate/internal/transcribe"
	"github.com/voxlate/voxlate/internal/translate"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ErrNoSegments is returned when transcription or script parsing yields
// nothing to dub.
var ErrNoSegments = errors.New("no transcription segments found")

// Job describes one dubbing run for one target language.
type Job struct {
	// Exactly one of VideoPath and ScriptPath is set.
	VideoPath  string
	ScriptPath string
	SourceLang string
	TargetLang string
	OutputDir  string
	Mode       assemble.Mode
	GapMS      int64
	Workers    int
	Voice      string
}

// Pipeline drives one run: extract, transcribe, translate, synthesize,
// assemble.
type Pipeline struct {
	cfg        config.Config
	log        *slog.Logger
	media      *media.Tool
	recognizer transcribe.Recognizer
	translator translate.Translator
	synther    synth.Synthesizer

	tracer           trace.Tracer
	segsTranslated   metric.Int64Counter
	segsFellBack     metric.Int64Counter
	translateRetries metric.Int64Counter
	clipsSynthesized metric.Int64Counter
	synthFailures    metric.Int64Counter
}

// New builds the pipeline's backends from config.
func New(cfg config.Config, log *slog.Logger) (*Pipeline, error) {
	p := &Pipeline{
		cfg:   cfg,
		log:   log.With(slog.String("component", "pipeline")),
		media: media.New(cfg.Media, log),
	}

	var err error
	switch cfg.Transcribe.Mode {
	case "exec":
		p.recognizer, err = transcribe.NewExecRecognizer(cfg.Transcribe)
		if err != nil {
			return nil, err
		}
	default:
		p.recognizer = transcribe.NewMockRecognizer()
	}

	switch cfg.Translate.Mode {
	case "ollama":
		p.translator = translate.NewOllamaTranslator(
			cfg.Translate.Endpoint, cfg.Translate.Model, cfg.Translate.Temperature,
			time.Duration(cfg.Translate.RequestTimeoutMS)*time.Millisecond)
	case "exec":
		p.translator, err = translate.NewExecTranslator(cfg.Translate.Command)
		if err != nil {
			return nil, err
		}
	default:
		p.translator = translate.NewMockTranslator()
	}

	switch cfg.Synth.Mode {
	case "exec":
		p.synther, err = synth.NewExecSynth(cfg.Synth.Command, cfg.Synth.SampleRate, cfg.Synth.Channels)
		if err != nil {
			return nil, err
		}
	default:
		p.synther = synth.NewMockSynth(cfg.Synth.SampleRate, cfg.Synth.Channels)
	}

	p.tracer = otel.Tracer("voxlate/pipeline")
	meter := otel.Meter("voxlate/pipeline")
	if p.segsTranslated, err = meter.Int64Counter("voxlate.segments.translated"); err != nil {
		return nil, err
	}
	if p.segsFellBack, err = meter.Int64Counter("voxlate.segments.translate_fallback"); err != nil {
		return nil, err
	}
	if p.translateRetries, err = meter.Int64Counter("voxlate.translate.retries"); err != nil {
		return nil, err
	}
	if p.clipsSynthesized, err = meter.Int64Counter("voxlate.clips.synthesized"); err != nil {
		return nil, err
	}
	if p.synthFailures, err = meter.Int64Counter("voxlate.clips.failed"); err != nil {
		return nil, err
	}

	return p, nil
}

// Run executes the job and returns the assembled track path. Intermediate
// artifacts are kept on failure so a rerun can skip completed work.
func (p *Pipeline) Run(ctx context.Context, job Job) (string, error) {
	if err := validateJob(job); err != nil {
		return "", err
	}

	if p.cfg.Telemetry.Enabled {
		shutdown, metricsHandler, err := setupTelemetry(p.cfg, p.log)
		if err != nil {
			return "", fmt.Errorf("failed to setup telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				p.log.Error("telemetry shutdown error", slog.String("error", err.Error()))
			}
		}()
		if bind := p.cfg.Telemetry.PrometheusBind; bind != "" && metricsHandler != nil {
			stop := serveMetrics(bind, metricsHandler, p.log)
			defer stop()
		}
		// Tracer and meter resolve against the providers installed above.
		p.tracer = otel.Tracer("voxlate/pipeline")
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("target_lang", job.TargetLang),
		attribute.String("mode", string(job.Mode)),
	))
	defer span.End()

	store, err := artifact.Open(ctx, p.cfg.Artifacts, p.log)
	if err != nil {
		return "", fmt.Errorf("open artifact store: %w", err)
	}
	defer store.Close()

	langDir := filepath.Join(job.OutputDir, job.TargetLang)
	if err := os.MkdirAll(langDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	input := job.VideoPath
	if input == "" {
		input = job.ScriptPath
	}
	runID := uuid.NewString()
	if err := store.BeginRun(ctx, artifact.Run{
		ID:         runID,
		Input:      input,
		SourceLang: job.SourceLang,
		TargetLang: job.TargetLang,
		Mode:       string(job.Mode),
	}); err != nil {
		p.log.Warn("failed to record run", slog.String("error", err.Error()))
	}

	p.log.Info("run started",
		slog.String("run_id", runID),
		slog.String("input", input),
		slog.String("source_lang", job.SourceLang),
		slog.String("target_lang", job.TargetLang),
		slog.String("mode", string(job.Mode)),
		slog.Int("workers", job.Workers))

	set, promptPath, cleanup, err := p.extractSegments(ctx, job, langDir)
	if err != nil {
		return "", err
	}
	if len(set) == 0 {
		return "", ErrNoSegments
	}
	p.log.Info("segments extracted", slog.Int("count", len(set)))

	set, err = p.translatePhase(ctx, store, runID, job, set)
	if err != nil {
		return "", err
	}

	set, err = p.synthesizePhase(ctx, store, runID, job, set, promptPath)
	if err != nil {
		return "", err
	}

	outPath, err := p.assemblePhase(ctx, store, runID, job, set, langDir)
	if err != nil {
		return "", err
	}

	// Temporary extracted audio is only needed again on a failed run.
	cleanup()

	p.log.Info("run complete", slog.String("run_id", runID), slog.String("output", outPath))
	return outPath, nil
}

func validateJob(job Job) error {
	if (job.VideoPath == "") == (job.ScriptPath == "") {
		return errors.New("exactly one of video and script input must be set")
	}
	input := job.VideoPath
	if input == "" {
		input = job.ScriptPath
	}
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("input file not found: %w", err)
	}
	if job.TargetLang == "" {
		return errors.New("target language must be set")
	}
	if job.OutputDir == "" {
		return errors.New("output directory must be set")
	}
	switch job.Mode {
	case assemble.ModeSynchronized, assemble.ModeSequential:
	default:
		return fmt.Errorf("unknown assembly mode %q", job.Mode)
	}
	return nil
}

// extractSegments produces the segment set, the voice-clone prompt path
// (empty for script input) and a cleanup func for temporary audio.
func (p *Pipeline) extractSegments(ctx context.Context, job Job, langDir string) (segment.Set, string, func(), error) {
	noop := func() {}

	if job.ScriptPath != "" {
		_, span := p.tracer.Start(ctx, "pipeline.parse_script")
		defer span.End()

		file, err := os.Open(job.ScriptPath)
		if err != nil {
			return nil, "", noop, fmt.Errorf("script phase: %w", err)
		}
		defer file.Close()
		spans, err := segment.ParseScript(file, p.log)
		if err != nil {
			return nil, "", noop, fmt.Errorf("script phase: %w", err)
		}
		set := segment.FromSpans(spans, segment.ExtractOptions{
			FallbackDurationMS: int64(p.cfg.Assembly.FallbackDurationMS),
		}, p.log)
		return set, "", noop, nil
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.extract_transcribe")
	defer span.End()

	audioPath := filepath.Join(langDir, "source_audio.wav")
	if err := p.media.ExtractAudio(ctx, job.VideoPath, audioPath, p.cfg.Media.SampleRate, p.cfg.Media.Channels); err != nil {
		return nil, "", noop, fmt.Errorf("extract phase: %w", err)
	}
	cleanup := func() { _ = os.Remove(audioPath) }

	durationMS, err := p.media.ProbeDurationMS(ctx, audioPath)
	if err != nil {
		p.log.Warn("media duration probe failed, using fallback for last segment",
			slog.String("error", err.Error()))
		durationMS = 0
	}

	result, err := p.recognizer.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, "", cleanup, fmt.Errorf("transcription phase: %w", err)
	}
	p.log.Info("transcription complete",
		slog.String("language", result.Language), slog.Int("spans", len(result.Spans)))

	set := segment.FromSpans(result.Spans, segment.ExtractOptions{
		MediaDurationMS:    durationMS,
		FallbackDurationMS: int64(p.cfg.Assembly.FallbackDurationMS),
	}, p.log)

	promptPath := audioPath
	if limit := int64(p.cfg.Media.PromptMaxMS); limit > 0 && durationMS > limit {
		trimmed := filepath.Join(langDir, "voice_prompt.wav")
		if err := p.media.Trim(ctx, audioPath, trimmed, limit); err != nil {
			p.log.Warn("prompt trim failed, using full audio", slog.String("error", err.Error()))
		} else {
			promptPath = trimmed
		}
	}
	return set, promptPath, cleanup, nil
}

func (p *Pipeline) translatePhase(ctx context.Context, store *artifact.Store, runID string, job Job, set segment.Set) (segment.Set, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.translate")
	defer span.End()

	p.log.Info("translating segments",
		slog.Int("count", len(set)), slog.Int("workers", job.Workers))

	translated, stats, err := translate.TranslateSet(ctx, p.translator, set,
		job.SourceLang, job.TargetLang,
		translate.PoolOptions{
			Workers:    job.Workers,
			MaxRetries: p.cfg.Translate.MaxRetries,
			BaseDelay:  time.Duration(p.cfg.Translate.RetryBaseMS) * time.Millisecond,
		}, p.log)
	if err != nil {
		return nil, fmt.Errorf("translation phase: %w", err)
	}

	p.segsTranslated.Add(ctx, int64(stats.Translated))
	p.segsFellBack.Add(ctx, int64(stats.FellBack))
	p.translateRetries.Add(ctx, int64(stats.Retried))
	if stats.FellBack > 0 {
		p.log.Warn("some segments kept their source text",
			slog.Int("fell_back", stats.FellBack))
	}

	for _, s := range translated {
		phase := artifact.PhaseTranslated
		if s.TranslatedText == s.SourceText && job.SourceLang != job.TargetLang {
			phase = artifact.PhaseTranslateFallback
		}
		if err := store.AppendEvent(ctx, artifact.Event{RunID: runID, SegmentIndex: s.Index, Phase: phase}); err != nil {
			p.log.Warn("failed to record event", slog.String("error", err.Error()))
		}
	}
	return translated, nil
}

// synthesizePhase renders clips one segment at a time; synthesis backends
// are resource-bound and serialize themselves anyway. A failed segment is
// skipped and leaves its slot to the assembler, but a canceled context
// aborts the phase instead of silencing everything still pending.
func (p *Pipeline) synthesizePhase(ctx context.Context, store *artifact.Store, runID string, job Job, set segment.Set, promptPath string) (segment.Set, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.synthesize")
	defer span.End()

	voice := job.Voice
	if voice == "" {
		voice = p.cfg.Synth.Voice
	}
	cache := synth.NewDirCache(filepath.Join(job.OutputDir, job.TargetLang))
	synther := synth.WithCache(p.synther, cache, p.log)

	for i := range set {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("synthesis phase: %w", err)
		}
		s := &set[i]
		p.log.Info("synthesizing segment",
			slog.Int("segment", s.Index+1), slog.Int("total", len(set)),
			slog.Int64("start_ms", s.StartMS))
		clip, err := synther.Synthesize(ctx, synth.Request{
			Index:      s.Index,
			Text:       s.TranslatedText,
			Language:   job.TargetLang,
			Voice:      voice,
			PromptPath: promptPath,
		}, "")
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("synthesis phase: %w", ctx.Err())
			}
			p.synthFailures.Add(ctx, 1)
			p.log.Warn("synthesis failed, segment will be silent",
				slog.Int("segment", s.Index), slog.String("error", err.Error()))
			if err := store.AppendEvent(ctx, artifact.Event{
				RunID: runID, SegmentIndex: s.Index,
				Phase: artifact.PhaseSynthFailed, Detail: err.Error(),
			}); err != nil {
				p.log.Warn("failed to record event", slog.String("error", err.Error()))
			}
			continue
		}
		s.AudioPath = clip.Path
		s.AudioDurationMS = clip.DurationMS
		p.clipsSynthesized.Add(ctx, 1)
		if err := store.AppendEvent(ctx, artifact.Event{
			RunID: runID, SegmentIndex: s.Index,
			Phase: artifact.PhaseSynthesized, Detail: filepath.Base(clip.Path),
		}); err != nil {
			p.log.Warn("failed to record event", slog.String("error", err.Error()))
		}
	}
	return set, nil
}

func (p *Pipeline) assemblePhase(ctx context.Context, store *artifact.Store, runID string, job Job, set segment.Set, langDir string) (string, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.assemble")
	defer span.End()

	asm := assemble.New(assemble.Options{
		Mode:       job.Mode,
		GapMS:      job.GapMS,
		SampleRate: p.cfg.Synth.SampleRate,
		Channels:   p.cfg.Synth.Channels,
	}, p.log)

	outPath := filepath.Join(langDir, job.TargetLang+"_synced.wav")
	manifest, err := asm.Build(set, outPath)
	if err != nil {
		return "", fmt.Errorf("assembly phase: %w", err)
	}
	if err := assemble.WriteManifest(manifest, filepath.Join(langDir, "manifest.json")); err != nil {
		return "", fmt.Errorf("assembly phase: %w", err)
	}

	for _, entry := range manifest.Segments {
		if entry.Missing {
			continue
		}
		if err := store.AppendEvent(ctx, artifact.Event{
			RunID: runID, SegmentIndex: entry.Index,
			Phase: artifact.PhaseAssembled, Detail: entry.File,
		}); err != nil {
			p.log.Warn("failed to record event", slog.String("error", err.Error()))
		}
	}
	return outPath, nil
}

func serveMetrics(bind string, handler http.Handler, log *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	server := &http.Server{Addr: bind, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("metrics server failed", slog.String("error", err.Error()))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
}
