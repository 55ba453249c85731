// Package diarize produces speaker turns for an audio file.
//
// The pyannote backend writes an embedded Python helper into the run
// workspace and launches it through uvx with pyannote.audio and torchaudio
// layered in. The helper prints {"segments":[{"start","end","speaker"}]} on
// stdout, or {"error": "..."} on stderr before exiting non-zero.
package diarize
