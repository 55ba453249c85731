package audio

import (
	"fmt"
	"strings"

	"minutes/internal/language"
	"minutes/internal/media/ffprobe"
)

// Selection names the audio stream chosen for extraction.
type Selection struct {
	Stream ffprobe.Stream
	// Ordinal is the position among audio streams, used for ffmpeg's 0:a:N mapping.
	Ordinal int
	Reason  string
}

// Label returns a short human-readable summary of the stream.
func (s Selection) Label() string {
	parts := make([]string, 0, 4)
	if codec := strings.TrimSpace(s.Stream.CodecName); codec != "" {
		parts = append(parts, codec)
	}
	if s.Stream.Channels > 0 {
		parts = append(parts, fmt.Sprintf("%dch", s.Stream.Channels))
	}
	if lang := s.Stream.Language(); lang != "" {
		parts = append(parts, language.DisplayName(lang))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("stream %d", s.Stream.Index)
	}
	return strings.Join(parts, " ")
}

// Select picks the audio stream to extract. ok is false when streams holds
// no audio.
func Select(streams []ffprobe.Stream, preferredLanguage string) (Selection, bool) {
	audio := make([]ffprobe.Stream, 0, len(streams))
	for _, stream := range streams {
		if stream.IsAudio() {
			audio = append(audio, stream)
		}
	}
	if len(audio) == 0 {
		return Selection{Ordinal: -1}, false
	}

	if preferredLanguage != "" {
		for i, stream := range audio {
			if language.Matches(stream.Language(), preferredLanguage) {
				return Selection{Stream: stream, Ordinal: i, Reason: "language match"}, true
			}
		}
	}
	for i, stream := range audio {
		if stream.IsDefault() {
			return Selection{Stream: stream, Ordinal: i, Reason: "default disposition"}, true
		}
	}
	return Selection{Stream: audio[0], Ordinal: 0, Reason: "first audio stream"}, true
}
