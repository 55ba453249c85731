// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video stream properties
//   - Format: container-level metadata (duration, size, format name)
//
// Inspect executes ffprobe and returns the parsed Result. The audio
// extractor uses it to reject containers without a readable audio stream
// before ffmpeg runs.
package ffprobe
