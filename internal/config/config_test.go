package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Translate.Workers != 4 {
		t.Fatalf("expected default worker count 4, got %d", cfg.Translate.Workers)
	}
	if cfg.Assembly.Mode != "synchronized" {
		t.Fatalf("expected default assembly mode synchronized, got %s", cfg.Assembly.Mode)
	}
	if cfg.Assembly.GapMS != 1000 {
		t.Fatalf("expected default gap 1000ms, got %d", cfg.Assembly.GapMS)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VOX_OUTPUT_DIR", "/tmp/dub")
	t.Setenv("VOX_TRANSLATE_MODE", "ollama")
	t.Setenv("VOX_TRANSLATE_ENDPOINT", "http://ollama:11434")
	t.Setenv("VOX_TRANSLATE_WORKERS", "8")
	t.Setenv("VOX_TRANSLATE_MAX_RETRIES", "5")
	t.Setenv("VOX_SYNTH_VOICE", "narrator")
	t.Setenv("VOX_SYNTH_SAMPLE_RATE", "22050")
	t.Setenv("VOX_ASSEMBLY_MODE", "sequential")
	t.Setenv("VOX_ASSEMBLY_GAP_MS", "250")
	t.Setenv("VOX_ARTIFACTS_PATH", "./tmp.db")
	t.Setenv("VOX_ARTIFACTS_RETENTION_MODE", "persistent")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.OutputDir != "/tmp/dub" {
		t.Fatalf("expected output dir override, got %s", cfg.OutputDir)
	}
	if cfg.Translate.Mode != "ollama" || cfg.Translate.Endpoint != "http://ollama:11434" {
		t.Fatalf("expected translate overrides, got %+v", cfg.Translate)
	}
	if cfg.Translate.Workers != 8 {
		t.Fatalf("expected 8 workers, got %d", cfg.Translate.Workers)
	}
	if cfg.Translate.MaxRetries != 5 {
		t.Fatalf("expected 5 retries, got %d", cfg.Translate.MaxRetries)
	}
	if cfg.Synth.Voice != "narrator" || cfg.Synth.SampleRate != 22050 {
		t.Fatalf("expected synth overrides, got %+v", cfg.Synth)
	}
	if cfg.Assembly.Mode != "sequential" || cfg.Assembly.GapMS != 250 {
		t.Fatalf("expected assembly overrides, got %+v", cfg.Assembly)
	}
	if cfg.Artifacts.Path != "./tmp.db" || cfg.Artifacts.RetentionMode != "persistent" {
		t.Fatalf("expected artifact overrides, got %+v", cfg.Artifacts)
	}
}

func TestValidateRejectsBadModes(t *testing.T) {
	t.Setenv("VOX_ASSEMBLY_MODE", "shuffled")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown assembly mode")
	}
}

func TestValidateRequiresExecCommand(t *testing.T) {
	t.Setenv("VOX_SYNTH_MODE", "exec")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for exec mode without command")
	}
}
