// Package services defines shared utilities consumed by the pipeline stages
// and the external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that keep the failure
//     taxonomy (extraction, transcription, diarization) intact across stage
//     boundaries.
//   - UserMessage, which renders a stage failure as the short text shown to
//     whoever started the run (CLI output or HTTP response).
//
// Stages only return errors; presentation code decides how to show them.
package services
