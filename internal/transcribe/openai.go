package transcribe

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"minutes/internal/language"
	"minutes/internal/logging"
	"minutes/internal/services"
)

// DefaultOpenAIModel is the hosted Whisper model.
const DefaultOpenAIModel = openai.Whisper1

// OpenAIConfig configures the hosted transcription backend.
type OpenAIConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Timeout  time.Duration
}

// OpenAI transcribes audio through the OpenAI audio transcription endpoint.
type OpenAI struct {
	client   *openai.Client
	model    string
	language string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewOpenAI validates cfg and builds the client. A missing API key is a
// configuration error.
func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger) (*OpenAI, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "openai", "OPENAI_API_KEY is not set", nil)
	}
	clientCfg := openai.DefaultConfig(key)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = strings.TrimRight(base, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    model,
		language: language.ToISO2(cfg.Language),
		timeout:  cfg.Timeout,
		logger:   logging.NewComponentLogger(logger, "openai"),
	}, nil
}

// Name reports the backend and model.
func (o *OpenAI) Name() string {
	return "openai/" + o.model
}

// Transcribe uploads audioPath and returns the recognised text. workDir is unused.
func (o *OpenAI) Transcribe(ctx context.Context, audioPath, _ string) (string, error) {
	if strings.TrimSpace(audioPath) == "" {
		return "", services.Wrap(services.ErrTranscription, stageName, "openai", "audio path required", nil)
	}
	ctx, cancel := withTimeout(ctx, o.timeout)
	defer cancel()

	logging.WithContext(ctx, o.logger).Debug("requesting transcription", logging.String("model", o.model))
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		FilePath: audioPath,
		Language: o.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", services.Wrap(services.ErrTranscription, stageName, "openai", "", apiErr)
		}
		return "", services.Wrap(services.ErrTranscription, stageName, "openai", "", err)
	}
	return normalizeText(resp.Text), nil
}
