package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"minutes/internal/turns"
)

// WriteFile fills path with size bytes of a repeating pattern, creating
// parent directories. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0x42
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteSegments writes segments in the {"segments":[...]} form the label
// command and diarization helper exchange.
func WriteSegments(t testing.TB, path string, segments []turns.Segment) {
	t.Helper()

	data, err := json.Marshal(map[string][]turns.Segment{"segments": segments})
	if err != nil {
		t.Fatalf("encode segments: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
