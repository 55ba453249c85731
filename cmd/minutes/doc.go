// Package main hosts the minutes CLI entrypoint and command graph.
//
// The Cobra command tree runs the extraction, transcription, diarization and
// labeling pipeline against a local video, serves the same pipeline over
// HTTP, inspects run history, and scaffolds configuration. Configuration and
// logging are resolved once in a shared command context so subcommands only
// deal with presentation.
package main
