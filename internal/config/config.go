package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	Enabled        bool   `yaml:"enabled"`
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type MediaConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`
	SampleRate  int    `yaml:"sample_rate"`
	Channels    int    `yaml:"channels"`
	PromptMaxMS int    `yaml:"prompt_max_ms"`
}

type TranscribeConfig struct {
	Mode      string `yaml:"mode"` // mock, exec
	Command   string `yaml:"command"`
	ModelPath string `yaml:"model_path"`
	Language  string `yaml:"language"`
}

type TranslateConfig struct {
	Mode             string  `yaml:"mode"` // mock, ollama, exec
	Endpoint         string  `yaml:"endpoint"`
	Command          string  `yaml:"command"`
	Model            string  `yaml:"model"`
	Workers          int     `yaml:"workers"`
	MaxRetries       int     `yaml:"max_retries"`
	RetryBaseMS      int     `yaml:"retry_base_ms"`
	RequestTimeoutMS int     `yaml:"request_timeout_ms"`
	Temperature      float64 `yaml:"temperature"`
}

type SynthConfig struct {
	Mode             string `yaml:"mode"` // mock, exec
	Command          string `yaml:"command"`
	Voice            string `yaml:"voice"`
	SampleRate       int    `yaml:"sample_rate"`
	Channels         int    `yaml:"channels"`
	RequestTimeoutMS int    `yaml:"request_timeout_ms"`
}

type AssemblyConfig struct {
	Mode               string `yaml:"mode"` // synchronized, sequential
	GapMS              int    `yaml:"gap_ms"`
	FallbackDurationMS int    `yaml:"fallback_duration_ms"`
}

type ArtifactConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxRuns       int    `yaml:"max_runs"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type Config struct {
	AppName     string           `yaml:"app_name"`
	Environment string           `yaml:"environment"`
	OutputDir   string           `yaml:"output_dir"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Media       MediaConfig      `yaml:"media"`
	Transcribe  TranscribeConfig `yaml:"transcribe"`
	Translate   TranslateConfig  `yaml:"translate"`
	Synth       SynthConfig      `yaml:"synth"`
	Assembly    AssemblyConfig   `yaml:"assembly"`
	Artifacts   ArtifactConfig   `yaml:"artifacts"`
}

func Default() Config {
	return Config{
		AppName:     "voxlate",
		Environment: "development",
		OutputDir:   "outputs",
		Telemetry: TelemetryConfig{
			Enabled:      true,
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Media: MediaConfig{
			FFmpegPath:  "ffmpeg",
			FFprobePath: "ffprobe",
			SampleRate:  24000,
			Channels:    1,
			PromptMaxMS: 30000,
		},
		Transcribe: TranscribeConfig{
			Mode:     "mock",
			Language: "en",
		},
		Translate: TranslateConfig{
			Mode:             "mock",
			Endpoint:         "http://localhost:11434",
			Model:            "llama3.2:latest",
			Workers:          4,
			MaxRetries:       3,
			RetryBaseMS:      500,
			RequestTimeoutMS: 60000,
			Temperature:      0.3,
		},
		Synth: SynthConfig{
			Mode:             "mock",
			Voice:            "clone",
			SampleRate:       24000,
			Channels:         1,
			RequestTimeoutMS: 120000,
		},
		Assembly: AssemblyConfig{
			Mode:               "synchronized",
			GapMS:              1000,
			FallbackDurationMS: 5000,
		},
		Artifacts: ArtifactConfig{
			Path:          "./data/voxlate-runs.db",
			RetentionMode: "run",
			RetentionDays: 30,
			MaxRuns:       1000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.AppName, "VOX_APP_NAME")
	overrideString(&cfg.Environment, "VOX_ENVIRONMENT")
	overrideString(&cfg.OutputDir, "VOX_OUTPUT_DIR")
	overrideBool(&cfg.Telemetry.Enabled, "VOX_TELEMETRY_ENABLED")
	overrideString(&cfg.Telemetry.LogLevel, "VOX_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "VOX_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "VOX_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "VOX_TELEMETRY_PROMETHEUS_BIND")
	overrideString(&cfg.Media.FFmpegPath, "VOX_MEDIA_FFMPEG_PATH")
	overrideString(&cfg.Media.FFprobePath, "VOX_MEDIA_FFPROBE_PATH")
	overrideInt(&cfg.Media.SampleRate, "VOX_MEDIA_SAMPLE_RATE")
	overrideInt(&cfg.Media.Channels, "VOX_MEDIA_CHANNELS")
	overrideInt(&cfg.Media.PromptMaxMS, "VOX_MEDIA_PROMPT_MAX_MS")
	overrideString(&cfg.Transcribe.Mode, "VOX_TRANSCRIBE_MODE")
	overrideString(&cfg.Transcribe.Command, "VOX_TRANSCRIBE_COMMAND")
	overrideString(&cfg.Transcribe.ModelPath, "VOX_TRANSCRIBE_MODEL_PATH")
	overrideString(&cfg.Transcribe.Language, "VOX_TRANSCRIBE_LANGUAGE")
	overrideString(&cfg.Translate.Mode, "VOX_TRANSLATE_MODE")
	overrideString(&cfg.Translate.Endpoint, "VOX_TRANSLATE_ENDPOINT")
	overrideString(&cfg.Translate.Command, "VOX_TRANSLATE_COMMAND")
	overrideString(&cfg.Translate.Model, "VOX_TRANSLATE_MODEL")
	overrideInt(&cfg.Translate.Workers, "VOX_TRANSLATE_WORKERS")
	overrideInt(&cfg.Translate.MaxRetries, "VOX_TRANSLATE_MAX_RETRIES")
	overrideInt(&cfg.Translate.RetryBaseMS, "VOX_TRANSLATE_RETRY_BASE_MS")
	overrideInt(&cfg.Translate.RequestTimeoutMS, "VOX_TRANSLATE_REQUEST_TIMEOUT_MS")
	overrideFloat(&cfg.Translate.Temperature, "VOX_TRANSLATE_TEMPERATURE")
	overrideString(&cfg.Synth.Mode, "VOX_SYNTH_MODE")
	overrideString(&cfg.Synth.Command, "VOX_SYNTH_COMMAND")
	overrideString(&cfg.Synth.Voice, "VOX_SYNTH_VOICE")
	overrideInt(&cfg.Synth.SampleRate, "VOX_SYNTH_SAMPLE_RATE")
	overrideInt(&cfg.Synth.Channels, "VOX_SYNTH_CHANNELS")
	overrideInt(&cfg.Synth.RequestTimeoutMS, "VOX_SYNTH_REQUEST_TIMEOUT_MS")
	overrideString(&cfg.Assembly.Mode, "VOX_ASSEMBLY_MODE")
	overrideInt(&cfg.Assembly.GapMS, "VOX_ASSEMBLY_GAP_MS")
	overrideInt(&cfg.Assembly.FallbackDurationMS, "VOX_ASSEMBLY_FALLBACK_DURATION_MS")
	overrideString(&cfg.Artifacts.Path, "VOX_ARTIFACTS_PATH")
	overrideString(&cfg.Artifacts.RetentionMode, "VOX_ARTIFACTS_RETENTION_MODE")
	overrideInt(&cfg.Artifacts.RetentionDays, "VOX_ARTIFACTS_RETENTION_DAYS")
	overrideInt(&cfg.Artifacts.MaxRuns, "VOX_ARTIFACTS_MAX_RUNS")
	overrideBool(&cfg.Artifacts.VacuumOnStart, "VOX_ARTIFACTS_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.AppName == "" {
		return errors.New("app_name must not be empty")
	}
	if cfg.OutputDir == "" {
		return errors.New("output_dir must not be empty")
	}
	if cfg.Media.FFmpegPath == "" || cfg.Media.FFprobePath == "" {
		return errors.New("media.ffmpeg_path and media.ffprobe_path must not be empty")
	}
	if cfg.Media.SampleRate <= 0 {
		return errors.New("media.sample_rate must be positive")
	}
	if cfg.Media.Channels <= 0 {
		return errors.New("media.channels must be positive")
	}
	switch cfg.Transcribe.Mode {
	case "mock", "exec":
	default:
		return errors.New("transcribe.mode must be one of mock|exec")
	}
	if cfg.Transcribe.Mode == "exec" && cfg.Transcribe.Command == "" {
		return errors.New("transcribe.command must be set when mode=exec")
	}
	switch cfg.Translate.Mode {
	case "mock", "ollama", "exec":
	default:
		return errors.New("translate.mode must be one of mock|ollama|exec")
	}
	if cfg.Translate.Mode == "ollama" && cfg.Translate.Endpoint == "" {
		return errors.New("translate.endpoint must be set when mode=ollama")
	}
	if cfg.Translate.Mode == "exec" && cfg.Translate.Command == "" {
		return errors.New("translate.command must be set when mode=exec")
	}
	if cfg.Translate.Workers <= 0 {
		return errors.New("translate.workers must be >= 1")
	}
	if cfg.Translate.MaxRetries < 0 {
		return errors.New("translate.max_retries must be >= 0")
	}
	if cfg.Translate.RetryBaseMS <= 0 {
		return errors.New("translate.retry_base_ms must be positive")
	}
	switch cfg.Synth.Mode {
	case "mock", "exec":
	default:
		return errors.New("synth.mode must be one of mock|exec")
	}
	if cfg.Synth.Mode == "exec" && cfg.Synth.Command == "" {
		return errors.New("synth.command must be set when mode=exec")
	}
	if cfg.Synth.SampleRate <= 0 {
		return errors.New("synth.sample_rate must be positive")
	}
	if cfg.Synth.Channels <= 0 {
		return errors.New("synth.channels must be positive")
	}
	switch cfg.Assembly.Mode {
	case "synchronized", "sequential":
	default:
		return errors.New("assembly.mode must be one of synchronized|sequential")
	}
	if cfg.Assembly.GapMS < 0 {
		return errors.New("assembly.gap_ms must be >= 0")
	}
	if cfg.Assembly.FallbackDurationMS <= 0 {
		return errors.New("assembly.fallback_duration_ms must be positive")
	}
	if cfg.Artifacts.Path == "" {
		return errors.New("artifacts.path must not be empty")
	}
	switch cfg.Artifacts.RetentionMode {
	case "ephemeral", "run", "persistent":
		// ok
	default:
		return errors.New("artifacts.retention_mode must be one of ephemeral|run|persistent")
	}
	if cfg.Artifacts.RetentionDays < 0 {
		return errors.New("artifacts.retention_days must be >= 0")
	}
	return nil
}
