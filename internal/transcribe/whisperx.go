package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"minutes/internal/language"
	"minutes/internal/logging"
	"minutes/internal/services"
)

// WhisperX invocation constants.
const (
	DefaultWhisperXModel = "large-v3"
	CUDAIndexURL         = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL         = "https://pypi.org/simple"
	BatchSize            = "4"
	ChunkSize            = "15"
	BeamSize             = "5"
	CPUDevice            = "cpu"
	CUDADevice           = "cuda"
	CPUComputeType       = "float32"
	VADMethodSilero      = "silero"
	VADMethodPyannote    = "pyannote"
)

// WhisperXConfig captures runtime settings for WhisperX runs.
type WhisperXConfig struct {
	Binary      string
	Model       string
	Language    string
	CUDAEnabled bool
	// HFToken switches voice activity detection to pyannote when set.
	HFToken string
	Timeout time.Duration
}

// WhisperX transcribes audio with the whisperx CLI launched through uvx.
type WhisperX struct {
	cfg    WhisperXConfig
	run    CommandRunner
	logger *slog.Logger
}

// NewWhisperX creates a WhisperX transcriber.
func NewWhisperX(cfg WhisperXConfig, logger *slog.Logger) *WhisperX {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = "uvx"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultWhisperXModel
	}
	return &WhisperX{
		cfg:    cfg,
		run:    runCommand,
		logger: logging.NewComponentLogger(logger, "whisperx"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (w *WhisperX) WithCommandRunner(runner CommandRunner) *WhisperX {
	if runner != nil {
		w.run = runner
	}
	return w
}

// Name reports the backend and model.
func (w *WhisperX) Name() string {
	return "whisperx/" + w.cfg.Model
}

// Transcribe runs whisperx on audioPath, writing its output under workDir.
func (w *WhisperX) Transcribe(ctx context.Context, audioPath, workDir string) (string, error) {
	if strings.TrimSpace(audioPath) == "" {
		return "", services.Wrap(services.ErrTranscription, stageName, "whisperx", "audio path required", nil)
	}
	if workDir == "" {
		workDir = filepath.Dir(audioPath)
	}
	outputDir := filepath.Join(workDir, "whisperx")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrTranscription, stageName, "whisperx", "ensure output dir", err)
	}

	ctx, cancel := withTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	args := w.BuildArgs(audioPath, outputDir)
	logging.WithContext(ctx, w.logger).Debug("running whisperx",
		logging.String("model", w.cfg.Model),
		logging.Bool("cuda", w.cfg.CUDAEnabled),
	)
	if err := w.run(ctx, w.cfg.Binary, args...); err != nil {
		return "", services.Wrap(services.ErrTranscription, stageName, "whisperx", "", err)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	text, err := loadTranscriptText(filepath.Join(outputDir, base+".json"))
	if err != nil {
		return "", services.Wrap(services.ErrTranscription, stageName, "whisperx", "read output", err)
	}
	return normalizeText(text), nil
}

// BuildArgs constructs the uvx command arguments for WhisperX.
func (w *WhisperX) BuildArgs(source, outputDir string) []string {
	args := make([]string, 0, 32)

	if w.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", w.cfg.Model,
		"--batch_size", BatchSize,
		"--chunk_size", ChunkSize,
		"--beam_size", BeamSize,
		"--output_dir", outputDir,
		"--output_format", "json",
	)

	if token := strings.TrimSpace(w.cfg.HFToken); token != "" {
		args = append(args, "--vad_method", VADMethodPyannote, "--hf_token", token)
	} else {
		args = append(args, "--vad_method", VADMethodSilero)
	}

	if lang := language.ToISO2(w.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}

	if w.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}

// Segment is one transcribed span from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type whisperXPayload struct {
	Segments []Segment `json:"segments"`
}

// LoadSegments loads segments from a WhisperX JSON file.
func LoadSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload.Segments, nil
}

// loadTranscriptText joins the trimmed segment texts with single spaces.
func loadTranscriptText(jsonPath string) (string, error) {
	segments, err := LoadSegments(jsonPath)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load to weights_only=true, which breaks the
	// bundled pyannote checkpoints.
	cmd.Env = os.Environ()
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(cmd.Env, "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, tail(string(output), 5))
	}
	return nil
}

// tail returns the last n non-empty lines of output.
func tail(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			kept = append([]string{line}, kept...)
		}
	}
	return strings.Join(kept, " | ")
}
