package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. Credentials are checked at
// run time by the preflight package so that commands which never reach a
// model (config show, history list) still load.
func (c *Config) Validate() error {
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateDiarization(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.Backend {
	case BackendWhisperX, BackendOpenAI:
	default:
		return fmt.Errorf("transcription.backend must be %q or %q, got %q", BackendWhisperX, BackendOpenAI, c.Transcription.Backend)
	}
	if c.Transcription.TimeoutSeconds <= 0 {
		return errors.New("transcription.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateDiarization() error {
	if c.Diarization.MinDurationOn < 0 {
		return errors.New("diarization.min_duration_on must be >= 0")
	}
	if !strings.Contains(c.Diarization.Pipeline, "/") {
		return fmt.Errorf("diarization.pipeline must be a Hugging Face repository id (owner/name), got %q", c.Diarization.Pipeline)
	}
	return nil
}

func (c *Config) validateExport() error {
	switch c.Export.Format {
	case FormatCSV, FormatJSON, FormatMarkdown:
		return nil
	default:
		return fmt.Errorf("export.format must be one of csv, json, markdown; got %q", c.Export.Format)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not recognised", c.Logging.Level)
	}
}
