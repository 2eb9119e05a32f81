package bolt

import (
	"path/filepath"
	"testing"

	"go.etcd.io/bbolt"

	"github.com/roach88/shelf/internal/ident"
	"github.com/roach88/shelf/internal/record"
	"github.com/roach88/shelf/internal/store"
)

// openTestImages opens an image store with sequence keys in a temp dir.
func openTestImages(t *testing.T, opts Options) *Store[record.Image] {
	t.Helper()
	if opts.Bucket == "" {
		opts.Bucket = record.KindImage
	}
	if opts.Keys == nil {
		opts.Keys = Sequence{}
	}
	s, err := Open[record.Image](filepath.Join(t.TempDir(), "images.db"), opts)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// openTestVerses opens a verse store with deterministic UUID-scheme keys.
func openTestVerses(t *testing.T, opts Options) *Store[record.Verse] {
	t.Helper()
	if opts.Bucket == "" {
		opts.Bucket = record.KindVerse
	}
	if opts.Keys == nil {
		opts.Keys = UUID{Generator: ident.NewSequentialGenerator("verse")}
	}
	s, err := Open[record.Verse](filepath.Join(t.TempDir(), "verses.db"), opts)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testImage(title string) record.Image {
	return record.Image{
		Title: title,
		Data:  []byte{0, 1, 2, 3, 4, 5},
		Type:  "image/png",
	}
}

func testVerse(book string, chapter, verse int) record.Verse {
	return record.Verse{
		Book:    book,
		Chapter: chapter,
		Verse:   verse,
		Text:    "In the beginning",
	}
}

// putRaw writes an already encoded payload, bypassing the codec.
func putRaw[T store.Record[T]](t *testing.T, s *Store[T], id string, payload []byte) {
	t.Helper()
	key, err := s.opts.Keys.Encode(id)
	if err != nil {
		t.Fatalf("encode key: %v", err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Put(key, payload)
	})
	if err != nil {
		t.Fatalf("put raw: %v", err)
	}
}
