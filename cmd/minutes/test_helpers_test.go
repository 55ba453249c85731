package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"minutes/internal/config"
	"minutes/internal/testsupport"
	"minutes/internal/turns"
)

type fakeExtractor struct{ err error }

func (f fakeExtractor) Extract(_ context.Context, _, dest string) error {
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(dest, []byte("RIFF"), 0o644)
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f fakeTranscriber) Transcribe(context.Context, string, string) (string, error) {
	return f.text, f.err
}

func (fakeTranscriber) Name() string { return "fake/whisper" }

type fakeDiarizer struct {
	segments []turns.Segment
	err      error
}

func (f fakeDiarizer) Diarize(context.Context, string, string) ([]turns.Segment, error) {
	return f.segments, f.err
}

func (fakeDiarizer) Name() string { return "fake/pyannote" }

var defaultSegments = []turns.Segment{
	{Start: 0, End: 6, Speaker: "SPEAKER_00"},
	{Start: 20, End: 30, Speaker: "SPEAKER_01"},
}

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// stubStages swaps the production collaborators for fakes until the test ends.
func stubStages(t *testing.T, stages stageSet) {
	t.Helper()
	original := newStages
	newStages = func(*config.Config, *slog.Logger) (stageSet, error) {
		return stages, nil
	}
	t.Cleanup(func() { newStages = original })
}

func defaultStages() stageSet {
	return stageSet{
		extractor:   fakeExtractor{},
		transcriber: fakeTranscriber{text: "Hello there. Goodbye now."},
		diarizer:    fakeDiarizer{segments: defaultSegments},
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
