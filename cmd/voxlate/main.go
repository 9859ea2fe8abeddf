package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/voxlate/voxlate/internal/assemble"
	"github.com/voxlate/voxlate/internal/config"
	"github.com/voxlate/voxlate/internal/pipeline"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath  string
		videoPath   string
		scriptPath  string
		targetLang  string
		sourceLang  string
		outputDir   string
		workers     int
		sequential  bool
		gapMS       int64
		voice       string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "voxlate.yaml", "Path to configuration file")
	flag.StringVar(&videoPath, "video", "", "Input video file to dub")
	flag.StringVar(&scriptPath, "script", "", "Timestamped script file instead of a video")
	flag.StringVar(&targetLang, "language", "", "Target language code (required)")
	flag.StringVar(&sourceLang, "source", "en", "Source language code")
	flag.StringVar(&outputDir, "output", "", "Output directory (defaults to config)")
	flag.IntVar(&workers, "workers", 0, "Translation workers (defaults to config)")
	flag.BoolVar(&sequential, "sequential", false, "Concatenate clips with gaps instead of timeline placement")
	flag.Int64Var(&gapMS, "gap", -1, "Gap between clips in sequential mode, in ms (defaults to config)")
	flag.StringVar(&voice, "voice", "", "Synthesis voice (defaults to config)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if outputDir == "" {
		outputDir = cfg.OutputDir
	}
	if workers <= 0 {
		workers = cfg.Translate.Workers
	}
	if gapMS < 0 {
		gapMS = int64(cfg.Assembly.GapMS)
	}
	mode := assemble.Mode(cfg.Assembly.Mode)
	if sequential {
		mode = assemble.ModeSequential
	}

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outPath, err := p.Run(ctx, pipeline.Job{
		VideoPath:  videoPath,
		ScriptPath: scriptPath,
		SourceLang: sourceLang,
		TargetLang: targetLang,
		OutputDir:  outputDir,
		Mode:       mode,
		GapMS:      gapMS,
		Workers:    workers,
		Voice:      voice,
	})
	if err != nil {
		logger.Error("run failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("dubbed track written", slog.String("output", outPath))
}
