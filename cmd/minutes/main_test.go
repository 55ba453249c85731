package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"minutes/internal/export"
	"minutes/internal/fileutil"
	"minutes/internal/pipeline"
	"minutes/internal/services"
	"minutes/internal/testsupport"
	"minutes/internal/turns"
)

func TestProcessWritesExportAndRecordsHistory(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithHistory())
	stubStages(t, defaultStages())

	video := filepath.Join(env.baseDir, "videos", "meeting.mp4")
	testsupport.WriteFile(t, video, 2048)

	out, _, err := runCLI(t, []string{"process", video}, env.configPath)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	for _, want := range []string{"Hello there. Goodbye now.", "SPEAKER_00", "SPEAKER_01", "00:00:20", "Processed meeting.mp4"} {
		if !strings.Contains(out, want) {
			t.Fatalf("process output missing %q:\n%s", want, out)
		}
	}

	csvPath := filepath.Join(filepath.Dir(video), export.DefaultFileName)
	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	want := "speaker,text,start_time\nSPEAKER_00,Hello there,00:00:00\nSPEAKER_01,Goodbye now,00:00:20\n"
	if string(data) != want {
		t.Fatalf("csv = %q, want %q", data, want)
	}

	out, _, err = runCLI(t, []string{"history", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	var jobs []jobSummary
	if err := json.Unmarshal([]byte(out), &jobs); err != nil {
		t.Fatalf("decode history list: %v\n%s", err, out)
	}
	if len(jobs) != 1 || jobs[0].SourceName != "meeting.mp4" || jobs[0].Sentences != 2 {
		t.Fatalf("unexpected history: %+v", jobs)
	}
	id := jobs[0].ID

	out, _, err = runCLI(t, []string{"history", "list"}, env.configPath)
	if err != nil || !strings.Contains(out, id) || !strings.Contains(out, "OK") {
		t.Fatalf("history list table: %v\n%s", err, out)
	}

	out, _, err = runCLI(t, []string{"history", "show", id}, env.configPath)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	if !strings.Contains(out, "fake/whisper") || !strings.Contains(out, "Goodbye now") {
		t.Fatalf("unexpected show output:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"history", "export", id, "--format", "json"}, env.configPath)
	if err != nil {
		t.Fatalf("history export: %v", err)
	}
	var doc export.Document
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode export: %v\n%s", err, out)
	}
	if doc.JobID != id || len(doc.Sentences) != 2 {
		t.Fatalf("unexpected export: %+v", doc)
	}

	digest, _, err := fileutil.HashFile(video)
	if err != nil {
		t.Fatalf("hash video: %v", err)
	}
	out, _, err = runCLI(t, []string{"history", "show", digest}, env.configPath)
	if err != nil || !strings.Contains(out, id) {
		t.Fatalf("history show by content hash: %v\n%s", err, out)
	}

	out, _, err = runCLI(t, []string{"view", id}, env.configPath)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if !strings.Contains(out, "Hello there") {
		t.Fatalf("view without a terminal should print minutes:\n%s", out)
	}

	if _, _, err := runCLI(t, []string{"history", "remove", id}, env.configPath); err != nil {
		t.Fatalf("history remove: %v", err)
	}
	if _, _, err := runCLI(t, []string{"history", "show", id}, env.configPath); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found after remove, got %v", err)
	}
}

func TestProcessFormatAndOutputFlags(t *testing.T) {
	env := setupCLITestEnv(t)
	stubStages(t, defaultStages())

	video := filepath.Join(env.baseDir, "meeting.mp4")
	testsupport.WriteFile(t, video, 64)
	target := filepath.Join(env.baseDir, "out", "minutes.md")
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if _, _, err := runCLI(t, []string{"process", video, "--format", "markdown", "-o", target}, env.configPath); err != nil {
		t.Fatalf("process: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "**SPEAKER_01** (00:00:20): Goodbye now") {
		t.Fatalf("unexpected markdown:\n%s", data)
	}
}

func TestProcessJSONOutput(t *testing.T) {
	env := setupCLITestEnv(t)
	stubStages(t, defaultStages())

	video := filepath.Join(env.baseDir, "meeting.mp4")
	testsupport.WriteFile(t, video, 64)

	out, _, err := runCLI(t, []string{"process", video, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	var result pipeline.Result
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode result: %v\n%s", err, out)
	}
	if result.Backend != "fake/whisper" || len(result.Sentences) != 2 || len(result.Segments) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestProcessReportsStageFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	stages := defaultStages()
	stages.transcriber = fakeTranscriber{err: services.Wrap(services.ErrTranscription, pipeline.StageTranscription, "whisperx", "run", errors.New("model missing"))}
	stubStages(t, stages)

	video := filepath.Join(env.baseDir, "meeting.mp4")
	testsupport.WriteFile(t, video, 64)

	_, _, err := runCLI(t, []string{"process", video}, env.configPath)
	if err == nil {
		t.Fatal("expected failure")
	}
	if got := err.Error(); got != "Transcription error: model missing" {
		t.Fatalf("error = %q", got)
	}
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("error should keep its marker: %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(env.baseDir, export.DefaultFileName)); !os.IsNotExist(statErr) {
		t.Fatalf("no export should be written on failure, stat err = %v", statErr)
	}
}

func TestLabelCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	transcriptPath := filepath.Join(env.baseDir, "transcript.txt")
	if err := os.WriteFile(transcriptPath, []byte("Hello there. Goodbye now."), 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}
	segmentsPath := filepath.Join(env.baseDir, "segments.json")
	testsupport.WriteSegments(t, segmentsPath, defaultSegments)

	out, _, err := runCLI(t, []string{"label", "--transcript", transcriptPath, "--segments", segmentsPath}, env.configPath)
	if err != nil {
		t.Fatalf("label: %v", err)
	}
	want := "speaker,text,start_time\nSPEAKER_00,Hello there,00:00:00\nSPEAKER_01,Goodbye now,00:00:20\n"
	if out != want {
		t.Fatalf("label output = %q, want %q", out, want)
	}
}

func TestLabelCommandRejectsEmptySegments(t *testing.T) {
	env := setupCLITestEnv(t)

	transcriptPath := filepath.Join(env.baseDir, "transcript.txt")
	if err := os.WriteFile(transcriptPath, []byte("Hello."), 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}
	segmentsPath := filepath.Join(env.baseDir, "segments.json")
	testsupport.WriteSegments(t, segmentsPath, []turns.Segment{})

	_, _, err := runCLI(t, []string{"label", "--transcript", transcriptPath, "--segments", segmentsPath}, env.configPath)
	if !errors.Is(err, turns.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}

	if _, _, err := runCLI(t, []string{"label", "--transcript", transcriptPath}, env.configPath); err == nil {
		t.Fatal("expected missing --segments to fail")
	}
}

func TestHistoryDisabled(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"history", "list"}, env.configPath)
	if !errors.Is(err, errHistoryDisabled) {
		t.Fatalf("expected errHistoryDisabled, got %v", err)
	}
}

func TestStatusJSON(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())

	out, _, err := runCLI(t, []string{"status", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v\n%s", err, out)
	}
	var report statusReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if !report.Ready || len(report.Dependencies) != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Config != env.configPath {
		t.Fatalf("config = %q, want %q", report.Config, env.configPath)
	}
}

func TestStatusReportsMissingToken(t *testing.T) {
	t.Setenv("HUGGINGFACE_TOKEN", "")
	t.Setenv("HUGGING_FACE_HUB_TOKEN", "")
	t.Setenv("HF_TOKEN", "")
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())
	env.cfg.Diarization.HFToken = ""
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err == nil {
		t.Fatalf("expected not-ready error:\n%s", out)
	}
	if !strings.Contains(out, "ERROR") || !strings.Contains(out, "FFmpeg") {
		t.Fatalf("unexpected status output:\n%s", out)
	}
}

func TestConfigInitShowValidate(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(env.baseDir, "generated", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("unexpected init output: %q", out)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected second init to refuse overwriting")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, target)
	if err != nil || !strings.Contains(out, "Configuration valid") {
		t.Fatalf("config validate: %v\n%s", err, out)
	}

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "hf_test") || !strings.Contains(out, "********") {
		t.Fatalf("config show should mask secrets:\n%s", out)
	}
}
