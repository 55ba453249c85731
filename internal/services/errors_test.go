package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"minutes/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTranscription, "transcription", "whisperx", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"transcription", "whisperx", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarkerAndDetail(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestUserMessage(t *testing.T) {
	cause := errors.New("ffmpeg exited with status 1")
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"extraction", services.Wrap(services.ErrExtraction, "extraction", "ffmpeg", "run", cause), "Audio extraction failed: ffmpeg exited with status 1"},
		{"transcription", services.Wrap(services.ErrTranscription, "transcription", "openai", "request", errors.New("401")), "Transcription error: 401"},
		{"diarization", services.Wrap(services.ErrDiarization, "diarization", "pyannote", "gated model", nil), "Diarization error: diarization: pyannote: gated model"},
		{"busy", services.ErrBusy, "Another video is being processed; try again when it finishes"},
		{"other", errors.New("plain"), "plain"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.UserMessage(tc.err); got != tc.want {
				t.Fatalf("UserMessage() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestKind(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", services.Wrap(services.ErrDiarization, "diarization", "", "", nil))
	if got := services.Kind(wrapped); got != "diarization" {
		t.Fatalf("Kind() = %q", got)
	}
	if got := services.Kind(errors.New("x")); got != "internal" {
		t.Fatalf("Kind() = %q", got)
	}
	if got := services.Kind(nil); got != "" {
		t.Fatalf("Kind(nil) = %q", got)
	}
}
