package sqlite

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/roach88/shelf/internal/schema"
	"github.com/roach88/shelf/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (images table only)
// 1 - Added index on images.title
const currentSchemaVersion = 1

// Options configures the SQLite store.
type Options struct {
	store.Options

	// Validator, if set, checks each image before it is written.
	Validator schema.Validator
}

// Store is the relational image store backed by a single SQLite file.
type Store struct {
	db   *sqlx.DB
	path string
	opts Options
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas, creates the images table and runs migrations.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - FULL synchronous mode (every commit is durable)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts Options) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, store.IO("open", "", errors.New("database path is required"))
	}

	// Open database (creates file if doesn't exist)
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, store.IO("open", "", fmt.Errorf("failed to open database: %w", err))
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, translate("open", "", fmt.Errorf("failed to connect to database: %w", err))
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, translate("open", "", fmt.Errorf("failed to apply pragmas: %w", err))
	}

	s := &Store{db: db, path: path, opts: opts}
	if err := s.CreateTable(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, translate("open", "", fmt.Errorf("failed to run migrations: %w", err))
	}

	opts.Log().Debug("opened sqlite store", "path", path)
	return s, nil
}

// CreateTable creates the images table if it does not exist.
func (s *Store) CreateTable(ctx context.Context) error {
	if err := s.ready("create_table"); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return translate("create_table", "", fmt.Errorf("failed to execute schema: %w", err))
	}
	return nil
}

// Path returns the database path the store was opened on.
func (s *Store) Path() string {
	return s.path
}

// DB returns the underlying connection for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Flush checkpoints the write-ahead log into the main database file.
func (s *Store) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready("flush"); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return translate("flush", "", err)
	}
	return nil
}

// Close flushes and closes the database connection.
// Safe to call more than once.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	flushErr := s.Flush(context.Background())
	closeErr := s.db.Close()
	s.db = nil
	if err := errors.Join(flushErr, closeErr); err != nil {
		return store.IO("close", "", err)
	}
	return nil
}

func (s *Store) ready(op string) error {
	if s == nil || s.db == nil {
		return store.IO(op, "", errors.New("store is closed"))
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sqlx.DB) error {
	var version int
	if err := db.Get(&version, "PRAGMA user_version"); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds an index on images.title for lookups by name.
func migrateToV1(db *sqlx.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_images_title ON images(title)`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// translate maps engine errors onto the store taxonomy.
func translate(op, key string, err error) error {
	var se *store.Error
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		switch sqErr.Code {
		case sqlite3.ErrCorrupt, sqlite3.ErrNotADB:
			return store.Corrupt(op, key, err)
		}
	}
	return store.IO(op, key, err)
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
