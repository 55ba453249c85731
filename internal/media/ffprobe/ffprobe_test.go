package ffprobe

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{Index: 0, CodecType: "video"},
			{Index: 1, CodecType: "audio", Tags: map[string]string{"LANGUAGE": "JPN"}},
			{Index: 2, CodecType: "Audio", Disposition: map[string]int{"default": 1}},
		},
		Format: Format{Duration: "123.45", Size: "1000"},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	audio := result.AudioStreams()
	if len(audio) != 2 || audio[0].Index != 1 || audio[1].Index != 2 {
		t.Fatalf("unexpected audio streams: %+v", audio)
	}
	if !result.HasAudio() {
		t.Fatal("expected HasAudio")
	}
	if audio[0].Language() != "jpn" {
		t.Fatalf("unexpected language: %q", audio[0].Language())
	}
	if audio[0].IsDefault() || !audio[1].IsDefault() {
		t.Fatal("unexpected default disposition")
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{Format: Format{Duration: "bad", Size: "-1"}}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.HasAudio() {
		t.Fatal("expected no audio")
	}
}

func TestInspectWithParsesOutput(t *testing.T) {
	var gotArgs []string
	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		if name != "ffprobe" {
			t.Fatalf("unexpected binary %q", name)
		}
		gotArgs = args
		return []byte(`{"streams":[{"index":0,"codec_type":"video"},{"index":1,"codec_type":"audio","channels":2}],"format":{"duration":"61.5"}}`), nil
	}
	result, err := InspectWith(context.Background(), run, "", "/tmp/meeting.mp4")
	if err != nil {
		t.Fatalf("InspectWith: %v", err)
	}
	if len(result.AudioStreams()) != 1 || result.DurationSeconds() != 61.5 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if gotArgs[len(gotArgs)-1] != "/tmp/meeting.mp4" || gotArgs[len(gotArgs)-2] != "--" {
		t.Fatalf("expected path after --, got %v", gotArgs)
	}
}

func TestInspectWithErrors(t *testing.T) {
	if _, err := InspectWith(context.Background(), nil, "ffprobe", " "); err == nil {
		t.Fatal("expected error for empty path")
	}
	failing := func(context.Context, string, ...string) ([]byte, error) {
		return []byte("moov atom not found"), errors.New("exit status 1")
	}
	_, err := InspectWith(context.Background(), failing, "ffprobe", "broken.mp4")
	if err == nil || !strings.Contains(err.Error(), "moov atom not found") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
	garbage := func(context.Context, string, ...string) ([]byte, error) { return []byte("not json"), nil }
	if _, err := InspectWith(context.Background(), garbage, "ffprobe", "x.mp4"); err == nil {
		t.Fatal("expected parse error")
	}
}
