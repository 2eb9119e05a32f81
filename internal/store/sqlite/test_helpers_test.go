package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/roach88/shelf/internal/record"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testImage creates an unkeyed image with a small fixed payload.
func testImage(title string) record.Image {
	return record.Image{
		Title: title,
		Data:  []byte{0, 1, 2, 3, 4, 5},
		Type:  "image/png",
	}
}
