package sqlite

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/shelf/internal/store"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if s.Path() != path {
		t.Errorf("Path() = %q, want %q", s.Path(), path)
	}
}

func TestOpen_OpensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	var count int
	if err := s2.db.QueryRow("SELECT COUNT(*) FROM images").Scan(&count); err != nil {
		t.Errorf("query failed: %v", err)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path, Options{})
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	var name string
	err = s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
		"images",
	).Scan(&name)
	if err != nil {
		t.Errorf("images table not found after idempotent opens: %v", err)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db", Options{})
	if err == nil {
		t.Fatal("expected error for invalid path, got nil")
	}
	if !errors.Is(err, store.ErrIO) {
		t.Errorf("expected ErrIO, got %v", err)
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("", Options{})
	if !errors.Is(err, store.ErrIO) {
		t.Errorf("expected ErrIO, got %v", err)
	}
}

func TestOpen_NotADatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.db")
	if err := os.WriteFile(path, bytes.Repeat([]byte("x"), 4096), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Open(path, Options{})
	if err == nil {
		t.Fatal("expected error for non-database file")
	}
	if !errors.Is(err, store.ErrCorrupt) {
		t.Errorf("expected ErrCorrupt, got %v", err)
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestClose_MultipleCalls(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), Options{})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("first Close() failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
}

func TestClosedStore_Operations(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), Options{})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	s.Close()

	if _, err := s.Insert(ctx, testImage("late")); !errors.Is(err, store.ErrIO) {
		t.Errorf("Insert after close: expected ErrIO, got %v", err)
	}
	if _, err := s.GetAll(ctx); !errors.Is(err, store.ErrIO) {
		t.Errorf("GetAll after close: expected ErrIO, got %v", err)
	}
	if err := s.Flush(ctx); !errors.Is(err, store.ErrIO) {
		t.Errorf("Flush after close: expected ErrIO, got %v", err)
	}
}

func TestDB_ReturnsUnderlyingConnection(t *testing.T) {
	s := createTestStore(t)

	db := s.DB()
	if db == nil {
		t.Fatal("DB() returned nil")
	}
	if err := db.Ping(); err != nil {
		t.Errorf("DB() connection not usable: %v", err)
	}
}

// Pragma tests

func TestPragma_JournalMode(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
}

func TestPragma_Synchronous(t *testing.T) {
	s := createTestStore(t)
	// FULL = 2
	if err := s.verifyPragma("synchronous", "2"); err != nil {
		t.Error(err)
	}
}

func TestPragma_BusyTimeout(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
}

func TestPragma_ForeignKeys(t *testing.T) {
	s := createTestStore(t)
	// ON = 1
	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		t.Error(err)
	}
}

// Migration tests

func TestMigrations_SetsUserVersion(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("user_version", "1"); err != nil {
		t.Error(err)
	}
}

func TestMigrations_CreatesTitleIndex(t *testing.T) {
	s := createTestStore(t)

	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name=?",
		"idx_images_title",
	).Scan(&name)
	if err != nil {
		t.Errorf("title index not found: %v", err)
	}
}

func TestCreateTable_Idempotent(t *testing.T) {
	s := createTestStore(t)
	for i := 0; i < 3; i++ {
		if err := s.CreateTable(context.Background()); err != nil {
			t.Fatalf("CreateTable() iteration %d failed: %v", i, err)
		}
	}
}

func TestFlush_CheckpointsWAL(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "flush.db")
	s, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := s.Insert(ctx, testImage("flushed")); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush() failed: %v", err)
	}

	info, err := os.Stat(path + "-wal")
	if err == nil && info.Size() != 0 {
		t.Errorf("WAL not truncated after flush: %d bytes", info.Size())
	}
}
