package store

import (
	"context"
	"log/slog"
)

// Record is the capability every stored type provides: it exposes its key
// and can return a copy of itself carrying a newly assigned key.
//
// An empty key means "not yet assigned"; stores generate one on insert.
type Record[T any] interface {
	Key() string
	WithKey(key string) T
}

// Store is the CRUD surface shared by every backend.
//
// Implementations perform no locking of their own; the embedded engine
// serializes access to its file.
type Store[T any] interface {
	// Insert writes rec, assigning a key when rec has none, and returns the
	// key. An existing record under the same key is overwritten.
	Insert(ctx context.Context, rec T) (string, error)

	// Get returns the record stored under id. A missing record is reported
	// as (zero, false, nil).
	Get(ctx context.Context, id string) (T, bool, error)

	// GetAll returns every decodable record. Order is unspecified.
	GetAll(ctx context.Context) ([]T, error)

	// Delete removes the record under id. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id string) error

	// Flush forces buffered writes to durable storage.
	Flush(ctx context.Context) error

	// Close flushes and releases the handle. Safe to call more than once.
	Close() error
}

// Options configures behaviour shared by all backends.
type Options struct {
	// Strict makes GetAll fail on the first undecodable record instead of
	// skipping it.
	Strict bool

	// Logger receives warnings about skipped records. Defaults to slog.Default().
	Logger *slog.Logger
}

// Log returns the configured logger or the process default.
func (o Options) Log() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
