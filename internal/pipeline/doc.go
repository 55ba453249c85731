// Package pipeline runs one video through extraction, transcription,
// diarization and turn labeling.
//
// A Pipeline serialises runs twice: an in-process mutex and a gofrs/flock
// lock on <state_dir>/minutes.lock, so a CLI run and a server run never
// overlap on the same machine. Each run gets its own workspace under
// paths.work_dir which is removed on every exit path. The first failing
// stage ends the run; nothing partial is returned.
package pipeline
