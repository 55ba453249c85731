// Package logging assembles structured slog loggers and formatting helpers used
// across the minutes CLI and HTTP service.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with job IDs, stage names, source videos, and correlation IDs. When a
// log file is configured, records are duplicated into it as JSON lines through
// a fan-out handler. A no-op logger is provided for tests and wiring code that
// cannot fail.
package logging
