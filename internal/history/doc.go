// Package history persists finished runs in SQLite so transcripts and speaker
// tables can be listed, reopened and re-exported after the workspace is gone.
//
// Only final outputs are stored: the transcript, the labeled sentences and
// per-stage timings. Source videos and intermediate audio never are. The
// database lives at <state_dir>/history.db in WAL mode with an embedded,
// versioned schema; a version mismatch is reported rather than migrated.
package history
