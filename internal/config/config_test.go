package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"minutes/internal/config"
)

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"OPENAI_API_KEY", "OPENAI_BASE_URL", "HUGGINGFACE_TOKEN", "HUGGING_FACE_HUB_TOKEN", "HF_TOKEN", "MINUTES_API_TOKEN"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearCredentialEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if want := filepath.Join(tempHome, ".cache", "minutes", "work"); cfg.Paths.WorkDir != want {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, want)
	}
	if want := filepath.Join(tempHome, ".local", "share", "minutes"); cfg.Paths.StateDir != want {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, want)
	}
	if cfg.Transcription.Backend != config.BackendWhisperX {
		t.Fatalf("unexpected backend: %q", cfg.Transcription.Backend)
	}
	if cfg.Diarization.Pipeline != "pyannote/speaker-diarization" {
		t.Fatalf("unexpected pipeline: %q", cfg.Diarization.Pipeline)
	}
	if cfg.Diarization.MinDurationOn != 0.5 {
		t.Fatalf("unexpected min_duration_on: %v", cfg.Diarization.MinDurationOn)
	}
	if cfg.Labeling.RollingCursor {
		t.Fatal("expected rolling cursor disabled by default")
	}
	if cfg.Export.FileName != "議事録.csv" {
		t.Fatalf("unexpected export file name: %q", cfg.Export.FileName)
	}
	if cfg.History.Enabled {
		t.Fatal("expected history disabled by default")
	}
	if got := cfg.Server.AllowedExtensions; len(got) != 1 || got[0] != "mp4" {
		t.Fatalf("unexpected allowed extensions: %v", got)
	}
	if cfg.LockPath() != filepath.Join(cfg.Paths.StateDir, "minutes.lock") {
		t.Fatalf("unexpected lock path: %q", cfg.LockPath())
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.WorkDir, cfg.Paths.StateDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearCredentialEnv(t)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "minutes.toml")

	type payload struct {
		Transcription struct {
			Backend      string `toml:"backend"`
			OpenAIAPIKey string `toml:"openai_api_key"`
		} `toml:"transcription"`
		Diarization struct {
			MinDurationOn float64 `toml:"min_duration_on"`
		} `toml:"diarization"`
		Labeling struct {
			RollingCursor bool `toml:"rolling_cursor"`
		} `toml:"labeling"`
		Server struct {
			AllowedExtensions []string `toml:"allowed_extensions"`
		} `toml:"server"`
	}
	custom := payload{}
	custom.Transcription.Backend = "OpenAI"
	custom.Transcription.OpenAIAPIKey = "file-key"
	custom.Diarization.MinDurationOn = 1.25
	custom.Labeling.RollingCursor = true
	custom.Server.AllowedExtensions = []string{".MP4", "mov", "mp4", " "}
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Transcription.Backend != config.BackendOpenAI {
		t.Fatalf("expected backend to normalize to openai, got %q", cfg.Transcription.Backend)
	}
	if cfg.Transcription.OpenAIAPIKey != "file-key" {
		t.Fatalf("expected key from file, got %q", cfg.Transcription.OpenAIAPIKey)
	}
	if cfg.Diarization.MinDurationOn != 1.25 {
		t.Fatalf("unexpected min_duration_on: %v", cfg.Diarization.MinDurationOn)
	}
	if !cfg.Labeling.RollingCursor {
		t.Fatal("expected rolling cursor enabled")
	}
	if got := strings.Join(cfg.Server.AllowedExtensions, ","); got != "mp4,mov" {
		t.Fatalf("unexpected allowed extensions: %q", got)
	}
	if !cfg.ExtensionAllowed("Meeting.MOV") || cfg.ExtensionAllowed("notes.txt") || cfg.ExtensionAllowed("noext") {
		t.Fatal("unexpected extension filter result")
	}
}

func TestEnvFallbacksForCredentials(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("OPENAI_API_KEY", " env-openai ")
	t.Setenv("HF_TOKEN", "env-hf")
	t.Setenv("MINUTES_API_TOKEN", "env-api")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Transcription.OpenAIAPIKey != "env-openai" {
		t.Fatalf("expected OpenAI key from env, got %q", cfg.Transcription.OpenAIAPIKey)
	}
	if cfg.Diarization.HFToken != "env-hf" {
		t.Fatalf("expected HF token from env, got %q", cfg.Diarization.HFToken)
	}
	if cfg.Server.APIToken != "env-api" {
		t.Fatalf("expected API token from env, got %q", cfg.Server.APIToken)
	}
}

func TestHuggingFaceTokenPrecedence(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("HF_TOKEN", "generic")
	t.Setenv("HUGGINGFACE_TOKEN", "preferred")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Diarization.HFToken != "preferred" {
		t.Fatalf("expected HUGGINGFACE_TOKEN to win, got %q", cfg.Diarization.HFToken)
	}
}

func TestDotEnvFileNextToConfig(t *testing.T) {
	clearCredentialEnv(t)
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("HUGGINGFACE_TOKEN=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("HUGGINGFACE_TOKEN") })

	cfg, _, _, err := config.Load(filepath.Join(dir, "minutes.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Diarization.HFToken != "from-dotenv" {
		t.Fatalf("expected token from .env, got %q", cfg.Diarization.HFToken)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"backend", func(c *config.Config) { c.Transcription.Backend = "vosk" }, "transcription.backend"},
		{"min duration", func(c *config.Config) { c.Diarization.MinDurationOn = -1 }, "min_duration_on"},
		{"pipeline", func(c *config.Config) { c.Diarization.Pipeline = "local" }, "diarization.pipeline"},
		{"format", func(c *config.Config) { c.Export.Format = "xlsx" }, "export.format"},
		{"level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tc.want)
			}
		})
	}
}

func TestSampleConfigLoads(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Export.Format != config.FormatCSV {
		t.Fatalf("unexpected format: %q", cfg.Export.Format)
	}
}

func TestEncodeMasksSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.Transcription.OpenAIAPIKey = "sk-secret"
	cfg.Diarization.HFToken = "hf-secret"
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	text := string(data)
	if strings.Contains(text, "sk-secret") || strings.Contains(text, "hf-secret") {
		t.Fatalf("secrets leaked in encoded config:\n%s", text)
	}
	if cfg.Transcription.OpenAIAPIKey != "sk-secret" {
		t.Fatal("Encode mutated the receiver")
	}
}
