package turns

import (
	"errors"
	"math"
	"strings"
	"unicode/utf8"
)

// Delimiter separates candidate sentences in a transcript.
const Delimiter = "."

// ErrEmptyInput reports that no diarization segments were supplied.
var ErrEmptyInput = errors.New("turn labeling requires at least one diarization segment")

// Segment is one speaker turn emitted by the diarizer. Start and End are in
// seconds. Segments are not guaranteed to be disjoint or gap-free.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// Midpoint returns the arithmetic mean of the segment bounds.
func (s Segment) Midpoint() float64 {
	return (s.Start + s.End) / 2
}

// LabeledSentence is one transcript sentence attributed to a speaker.
type LabeledSentence struct {
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
	StartTime string `json:"start_time"`
}

// Options tunes sentence location.
type Options struct {
	// RollingCursor resumes each substring search at the end of the previous
	// match instead of the start of the transcript.
	RollingCursor bool
}

// Label attributes every non-empty sentence of transcript to a segment using
// first-occurrence sentence lookup.
func Label(transcript string, segments []Segment) ([]LabeledSentence, error) {
	return LabelWithOptions(transcript, segments, Options{})
}

// LabelWithOptions is Label with explicit lookup options.
func LabelWithOptions(transcript string, segments []Segment, opts Options) ([]LabeledSentence, error) {
	if len(segments) == 0 {
		return nil, ErrEmptyInput
	}

	labeled := make([]LabeledSentence, 0)
	cursor := 0 // byte offset where the next search begins
	for _, fragment := range strings.Split(transcript, Delimiter) {
		sentence := strings.TrimSpace(fragment)
		if sentence == "" {
			continue
		}

		from := 0
		if opts.RollingCursor {
			from = cursor
		}
		byteStart := locate(transcript, sentence, from)
		cursor = byteStart + len(sentence)

		start := utf8.RuneCountInString(transcript[:byteStart])
		end := start + utf8.RuneCountInString(sentence)
		midpoint := float64(start+end) / 2

		seg := closest(segments, midpoint)
		labeled = append(labeled, LabeledSentence{
			Speaker:   seg.Speaker,
			Text:      sentence,
			StartTime: FormatClock(seg.Start),
		})
	}
	return labeled, nil
}

// locate returns the byte offset of the first occurrence of sentence at or
// after from. Every trimmed fragment is a substring of transcript, and a
// rolling cursor never passes a fragment that has yet to be matched, so the
// fallback to a whole-transcript search only guards malformed input.
func locate(transcript, sentence string, from int) int {
	if from > 0 && from <= len(transcript) {
		if idx := strings.Index(transcript[from:], sentence); idx >= 0 {
			return from + idx
		}
	}
	if idx := strings.Index(transcript, sentence); idx >= 0 {
		return idx
	}
	return 0
}

// closest scans segments in order and keeps the first one with the smallest
// absolute distance between its midpoint and target.
func closest(segments []Segment, target float64) Segment {
	best := segments[0]
	bestDist := math.Abs(best.Midpoint() - target)
	for _, seg := range segments[1:] {
		if dist := math.Abs(seg.Midpoint() - target); dist < bestDist {
			best = seg
			bestDist = dist
		}
	}
	return best
}

// Speakers returns the distinct speaker labels in first-seen order.
func Speakers(sentences []LabeledSentence) []string {
	seen := make(map[string]struct{}, len(sentences))
	out := make([]string, 0)
	for _, s := range sentences {
		if _, ok := seen[s.Speaker]; ok {
			continue
		}
		seen[s.Speaker] = struct{}{}
		out = append(out, s.Speaker)
	}
	return out
}
