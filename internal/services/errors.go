package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExtraction    = errors.New("audio extraction error")
	ErrTranscription = errors.New("transcription error")
	ErrDiarization   = errors.New("diarization error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrBusy          = errors.New("another run is in progress")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrValidation
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns the short classification name of err's marker, or "internal"
// when no known marker is present.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrExtraction):
		return "extraction"
	case errors.Is(err, ErrTranscription):
		return "transcription"
	case errors.Is(err, ErrDiarization):
		return "diarization"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "internal"
	}
}

// UserMessage renders err the way the interactive surfaces report a failed
// run: a stage prefix followed by the innermost cause.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	cause := rootCause(err)
	switch {
	case errors.Is(err, ErrExtraction):
		return "Audio extraction failed: " + cause
	case errors.Is(err, ErrTranscription):
		return "Transcription error: " + cause
	case errors.Is(err, ErrDiarization):
		return "Diarization error: " + cause
	case errors.Is(err, ErrBusy):
		return "Another video is being processed; try again when it finishes"
	default:
		return err.Error()
	}
}

// rootCause returns the error handed to Wrap, or the Wrap detail when no
// cause was given.
func rootCause(err error) string {
	for {
		switch e := err.(type) {
		case interface{ Unwrap() []error }:
			errs := e.Unwrap()
			if len(errs) == 2 && isMarker(errs[0]) {
				return errs[1].Error()
			}
			if len(errs) == 0 {
				return err.Error()
			}
			err = errs[len(errs)-1]
		case interface{ Unwrap() error }:
			next := e.Unwrap()
			if next == nil {
				return err.Error()
			}
			if isMarker(next) {
				return strings.TrimPrefix(err.Error(), next.Error()+": ")
			}
			err = next
		default:
			return err.Error()
		}
	}
}

func isMarker(err error) bool {
	for _, marker := range []error{ErrExtraction, ErrTranscription, ErrDiarization, ErrValidation, ErrConfiguration, ErrBusy} {
		if err == marker {
			return true
		}
	}
	return false
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
