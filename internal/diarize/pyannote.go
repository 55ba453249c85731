package diarize

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"minutes/internal/config"
	"minutes/internal/logging"
	"minutes/internal/services"
	"minutes/internal/turns"
)

//go:embed diarize.py
var helperScript string

const (
	stageName      = "diarization"
	helperFileName = "minutes_diarize.py"
	cudaIndexURL   = "https://download.pytorch.org/whl/cu128"
	pypiIndexURL   = "https://pypi.org/simple"
)

// Diarizer segments audio into speaker turns.
type Diarizer interface {
	Diarize(ctx context.Context, audioPath, workDir string) ([]turns.Segment, error)
	Name() string
}

// CommandRunner executes name with args and env, returning captured stdout and stderr.
type CommandRunner func(ctx context.Context, name string, args, env []string) (stdout, stderr []byte, err error)

// Config captures pyannote runtime settings.
type Config struct {
	Binary        string
	Pipeline      string
	MinDurationOn float64
	HFToken       string
	CUDAEnabled   bool
}

// Pyannote runs a pyannote.audio speaker-diarization pipeline.
type Pyannote struct {
	cfg    Config
	run    CommandRunner
	logger *slog.Logger
}

// New builds the pyannote diarizer from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Pyannote {
	return NewPyannote(Config{
		Binary:        cfg.UVXBinary(),
		Pipeline:      cfg.Diarization.Pipeline,
		MinDurationOn: cfg.Diarization.MinDurationOn,
		HFToken:       cfg.Diarization.HFToken,
		CUDAEnabled:   cfg.Diarization.CUDAEnabled,
	}, logger)
}

// NewPyannote creates a diarizer from explicit settings.
func NewPyannote(cfg Config, logger *slog.Logger) *Pyannote {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = "uvx"
	}
	return &Pyannote{
		cfg:    cfg,
		run:    runCommand,
		logger: logging.NewComponentLogger(logger, "pyannote"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (p *Pyannote) WithCommandRunner(runner CommandRunner) *Pyannote {
	if runner != nil {
		p.run = runner
	}
	return p
}

// Name reports the pipeline identifier.
func (p *Pyannote) Name() string {
	return p.cfg.Pipeline
}

// Diarize returns speaker turns ordered by start time.
func (p *Pyannote) Diarize(ctx context.Context, audioPath, workDir string) ([]turns.Segment, error) {
	token := strings.TrimSpace(p.cfg.HFToken)
	if token == "" {
		return nil, services.Wrap(services.ErrDiarization, stageName, "pyannote", "HUGGINGFACE_TOKEN is not set", nil)
	}
	if workDir == "" {
		workDir = filepath.Dir(audioPath)
	}
	scriptPath := filepath.Join(workDir, helperFileName)
	if err := os.WriteFile(scriptPath, []byte(helperScript), 0o644); err != nil {
		return nil, services.Wrap(services.ErrDiarization, stageName, "pyannote", "write helper script", err)
	}

	env := []string{"HF_TOKEN=" + token}
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		env = append(env, "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	logging.WithContext(ctx, p.logger).Debug("running pyannote",
		logging.String("pipeline", p.cfg.Pipeline),
		logging.Float64("min_duration_on", p.cfg.MinDurationOn),
	)
	stdout, stderr, err := p.run(ctx, p.cfg.Binary, p.BuildArgs(scriptPath, audioPath), env)
	if err != nil {
		return nil, services.Wrap(services.ErrDiarization, stageName, "pyannote", "", helperError(err, stderr, p.cfg.Pipeline))
	}

	segments, err := ParseSegments(stdout)
	if err != nil {
		return nil, services.Wrap(services.ErrDiarization, stageName, "pyannote", "parse output", err)
	}
	return segments, nil
}

// BuildArgs constructs the uvx arguments that launch the helper script.
func (p *Pyannote) BuildArgs(scriptPath, audioPath string) []string {
	args := []string{
		"--quiet",
		"--with", "pyannote.audio",
		"--with", "torchaudio",
		"--with", "soundfile",
		"--with", "omegaconf",
	}
	if p.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", cudaIndexURL,
			"--extra-index-url", pypiIndexURL,
		)
	}
	return append(args, "python", scriptPath,
		"--audio", audioPath,
		"--pipeline", p.cfg.Pipeline,
		"--min-duration-on", strconv.FormatFloat(p.cfg.MinDurationOn, 'f', -1, 64),
	)
}

type wireSegment struct {
	Start   decimal.Decimal `json:"start"`
	End     decimal.Decimal `json:"end"`
	Speaker string          `json:"speaker"`
}

type wirePayload struct {
	Segments []wireSegment `json:"segments"`
	Error    string        `json:"error,omitempty"`
}

// ParseSegments decodes helper output. Seconds may be JSON numbers or decimal
// strings. A segment ending before it starts is rejected.
func ParseSegments(data []byte) ([]turns.Segment, error) {
	var payload wirePayload
	if err := json.Unmarshal(bytes.TrimSpace(data), &payload); err != nil {
		return nil, fmt.Errorf("decode segments: %w", err)
	}
	if payload.Error != "" {
		return nil, errors.New(payload.Error)
	}
	out := make([]turns.Segment, 0, len(payload.Segments))
	for i, seg := range payload.Segments {
		if seg.End.LessThan(seg.Start) {
			return nil, fmt.Errorf("segment %d: end %s before start %s", i, seg.End, seg.Start)
		}
		if seg.Start.IsNegative() {
			return nil, fmt.Errorf("segment %d: negative start %s", i, seg.Start)
		}
		speaker := strings.TrimSpace(seg.Speaker)
		if speaker == "" {
			return nil, fmt.Errorf("segment %d: missing speaker", i)
		}
		out = append(out, turns.Segment{
			Start:   seg.Start.InexactFloat64(),
			End:     seg.End.InexactFloat64(),
			Speaker: speaker,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

// helperError condenses helper stderr into a single actionable cause.
func helperError(err error, stderr []byte, pipeline string) error {
	text := strings.TrimSpace(string(stderr))
	if text == "" {
		return err
	}
	if strings.Contains(text, "GatedRepoError") || strings.Contains(text, "401") {
		return fmt.Errorf("HuggingFace model access denied; accept the model terms at https://hf.co/%s and retry", pipeline)
	}
	lines := strings.Split(text, "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	var payload wirePayload
	if json.Unmarshal([]byte(last), &payload) == nil && payload.Error != "" {
		return errors.New(payload.Error)
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return fmt.Errorf("%w: %s", err, line)
		}
	}
	return err
}

func runCommand(ctx context.Context, name string, args, env []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = append(os.Environ(), env...)
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
