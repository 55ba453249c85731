// Package turns aligns an untimed transcript with diarization segments.
//
// Label splits the transcript on periods, locates each sentence by its
// character offset inside the full text, and assigns the speaker of the
// segment whose time midpoint is numerically closest to the sentence's
// character midpoint. The comparison mixes characters and seconds; it only
// tracks real speaker changes when speech rate is roughly uniform. Callers
// that need exact attribution should supply word-level timestamps instead.
//
// Offsets are counted in runes so multi-byte transcripts (Japanese meeting
// audio is the common case) measure the same positions as a code-point
// indexed string would.
//
// By default every sentence is searched from the start of the transcript,
// which makes a verbatim repeat resolve to its first occurrence. Setting
// Options.RollingCursor resumes each search after the previous match.
package turns
