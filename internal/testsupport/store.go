package testsupport

import (
	"context"
	"testing"

	"minutes/internal/config"
	"minutes/internal/history"
)

// MustOpenHistory opens a history.Store for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// RecordJob stores job and fails the test on error.
func RecordJob(t testing.TB, store *history.Store, job *history.Job) *history.Job {
	t.Helper()

	if err := store.Record(context.Background(), job); err != nil {
		t.Fatalf("store.Record: %v", err)
	}
	return job
}
