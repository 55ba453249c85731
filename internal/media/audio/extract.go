package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"minutes/internal/logging"
	"minutes/internal/media/ffprobe"
	"minutes/internal/services"
)

// SampleRate and Channels describe the extracted WAV layout.
const (
	SampleRate = 16000
	Channels   = 1
)

const stageName = "extraction"

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Extractor converts videos into analysis-ready WAV files.
type Extractor struct {
	ffmpegBinary  string
	ffprobeBinary string
	language      string
	run           Runner
	logger        *slog.Logger
}

// Option customises an Extractor.
type Option func(*Extractor)

// WithRunner replaces the command runner (used by tests).
func WithRunner(run Runner) Option {
	return func(e *Extractor) {
		if run != nil {
			e.run = run
		}
	}
}

// WithLanguage sets the preferred audio stream language.
func WithLanguage(code string) Option {
	return func(e *Extractor) {
		e.language = strings.TrimSpace(code)
	}
}

// NewExtractor builds an Extractor using the given binaries.
func NewExtractor(ffmpegBinary, ffprobeBinary string, logger *slog.Logger, opts ...Option) *Extractor {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(ffprobeBinary) == "" {
		ffprobeBinary = "ffprobe"
	}
	e := &Extractor{
		ffmpegBinary:  ffmpegBinary,
		ffprobeBinary: ffprobeBinary,
		run:           execRunner,
		logger:        logging.NewComponentLogger(logger, "audio"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract writes the selected audio stream of source to dest.
func (e *Extractor) Extract(ctx context.Context, source, dest string) error {
	probe, err := ffprobe.InspectWith(ctx, ffprobe.Runner(e.run), e.ffprobeBinary, source)
	if err != nil {
		return services.Wrap(services.ErrExtraction, stageName, "ffprobe", "", err)
	}
	selection, ok := Select(probe.Streams, e.language)
	if !ok {
		return services.Wrap(services.ErrExtraction, stageName, "ffprobe", "no readable audio stream", nil)
	}

	logger := logging.WithContext(ctx, e.logger)
	logger.Debug("audio stream selected",
		logging.Int("stream_index", selection.Stream.Index),
		logging.String("stream", selection.Label()),
		logging.String("reason", selection.Reason),
		logging.Float64("duration_seconds", probe.DurationSeconds()),
	)

	args := BuildArgs(source, selection.Ordinal, dest)
	if output, err := e.run(ctx, e.ffmpegBinary, args...); err != nil {
		if line := lastLine(output); line != "" {
			err = fmt.Errorf("ffmpeg: %s: %w", line, err)
		}
		return services.Wrap(services.ErrExtraction, stageName, "ffmpeg", "", err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return services.Wrap(services.ErrExtraction, stageName, "ffmpeg", "output missing", err)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrExtraction, stageName, "ffmpeg", "output is empty", nil)
	}
	logger.Info("audio extracted",
		logging.String("stream", selection.Label()),
		logging.Bytes("size", info.Size()),
	)
	return nil
}

// BuildArgs returns the ffmpeg arguments that extract audio stream ordinal
// of source as mono 16 kHz 16-bit PCM.
func BuildArgs(source string, ordinal int, dest string) []string {
	if ordinal < 0 {
		ordinal = 0
	}
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", fmt.Sprintf("0:a:%d", ordinal),
		"-vn",
		"-sn",
		"-dn",
		"-ac", fmt.Sprint(Channels),
		"-ar", fmt.Sprint(SampleRate),
		"-c:a", "pcm_s16le",
		dest,
	}
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

func lastLine(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
