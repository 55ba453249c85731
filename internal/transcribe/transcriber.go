package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"minutes/internal/config"
	"minutes/internal/services"
)

const stageName = "transcription"

// Transcriber produces the full transcript of an audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, workDir string) (string, error)
	// Name identifies the backend and model for logs and history.
	Name() string
}

// CommandRunner executes an external command, returning combined output on failure.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// New builds the backend selected by cfg.Transcription.Backend.
func New(cfg *config.Config, logger *slog.Logger) (Transcriber, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "new", "config required", nil)
	}
	timeout := time.Duration(cfg.Transcription.TimeoutSeconds) * time.Second
	switch cfg.Transcription.Backend {
	case config.BackendWhisperX:
		return NewWhisperX(WhisperXConfig{
			Binary:      cfg.UVXBinary(),
			Model:       cfg.Transcription.Model,
			Language:    cfg.Transcription.Language,
			CUDAEnabled: cfg.Transcription.CUDAEnabled,
			HFToken:     cfg.Diarization.HFToken,
			Timeout:     timeout,
		}, logger), nil
	case config.BackendOpenAI:
		return NewOpenAI(OpenAIConfig{
			APIKey:   cfg.Transcription.OpenAIAPIKey,
			BaseURL:  cfg.Transcription.OpenAIBaseURL,
			Model:    cfg.Transcription.OpenAIModel,
			Language: cfg.Transcription.Language,
			Timeout:  timeout,
		}, logger)
	default:
		return nil, services.Wrap(services.ErrConfiguration, stageName, "new", fmt.Sprintf("unknown backend %q", cfg.Transcription.Backend), nil)
	}
}

// normalizeText applies Unicode NFC and trims surrounding whitespace so
// sentence offsets are stable across backends.
func normalizeText(text string) string {
	return strings.TrimSpace(norm.NFC.String(text))
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
