// Package audio turns an input video into the mono 16 kHz PCM WAV that both
// the transcriber and the diarizer consume.
//
// Extract inspects the container with ffprobe, picks one audio stream with
// Select, and runs ffmpeg. A container without audio fails with
// services.ErrExtraction before ffmpeg is started.
//
// Select prefers, in order: a stream whose language tag matches the
// configured transcription language, the stream flagged as default, and
// finally the first audio stream in container order.
package audio
