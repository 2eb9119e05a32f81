package bolt

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/roach88/shelf/internal/codec"
	"github.com/roach88/shelf/internal/schema"
	"github.com/roach88/shelf/internal/store"
)

// DefaultTimeout bounds how long Open waits for the file lock.
const DefaultTimeout = time.Second

// Options configures a bolt store.
type Options struct {
	store.Options

	// Bucket holds the records. Defaults to "records".
	Bucket string

	// Keys maps ids to bucket keys. Defaults to UUID keys.
	Keys KeyScheme

	// Codec encodes payloads. Defaults to CBOR.
	Codec codec.Codec

	// Validator, if set, checks each record before it is written.
	Validator schema.Validator

	// Timeout bounds the wait for the file lock. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// observer is implemented by key schemes that track explicitly supplied ids.
type observer interface {
	Observe(b *bbolt.Bucket, id string) error
}

// Store is a bbolt-backed record store, one bucket per store.
type Store[T store.Record[T]] struct {
	db     *bbolt.DB
	path   string
	bucket []byte
	opts   Options
}

// Open creates or opens the bbolt file at path and ensures the bucket exists.
func Open[T store.Record[T]](path string, opts Options) (*Store[T], error) {
	if strings.TrimSpace(path) == "" {
		return nil, store.IO("open", "", errors.New("storage path is required"))
	}
	if opts.Bucket == "" {
		opts.Bucket = "records"
	}
	if opts.Keys == nil {
		opts.Keys = UUID{}
	}
	if opts.Codec == nil {
		opts.Codec = codec.NewCBOR()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, store.IO("open", "", fmt.Errorf("open storage db: %w", err))
	}

	s := &Store[T]{
		db:     db,
		path:   cleanPath,
		bucket: []byte(opts.Bucket),
		opts:   opts,
	}
	if err := s.ensureBucket(); err != nil {
		_ = db.Close()
		return nil, err
	}

	opts.Log().Debug("opened bolt store", "path", cleanPath, "bucket", opts.Bucket, "codec", opts.Codec.Name())
	return s, nil
}

// Path returns the file the store was opened on.
func (s *Store[T]) Path() string {
	return s.path
}

// Insert implements store.Store.
func (s *Store[T]) Insert(ctx context.Context, rec T) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.ready("insert"); err != nil {
		return "", err
	}

	id := rec.Key()
	if s.opts.Validator != nil {
		if err := s.opts.Validator.Validate(rec); err != nil {
			return "", store.Invalid("insert", id, err)
		}
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return store.IO("insert", id, fmt.Errorf("bucket %q is missing", s.bucket))
		}

		if id == "" {
			next, err := s.opts.Keys.Next(b)
			if err != nil {
				return store.Invalid("insert", "", err)
			}
			id = next
		} else if o, ok := s.opts.Keys.(observer); ok {
			if err := o.Observe(b, id); err != nil {
				return store.Invalid("insert", id, err)
			}
		}

		key, err := s.opts.Keys.Encode(id)
		if err != nil {
			return store.Invalid("insert", id, err)
		}
		// Canonical form: "007" becomes "7", string keys become NFC.
		id = s.opts.Keys.Decode(key)

		keyed := rec.WithKey(id)
		if keyed.Key() != id {
			return store.Invalid("insert", id, fmt.Errorf("id %s does not fit the record key", id))
		}

		payload, err := s.opts.Codec.Marshal(keyed)
		if err != nil {
			return store.Serialization("insert", id, err)
		}
		if err := b.Put(key, payload); err != nil {
			return store.IO("insert", id, err)
		}
		return nil
	})
	if err != nil {
		return "", s.wrap("insert", id, err)
	}
	return id, nil
}

// Get implements store.Store. An id the key scheme cannot encode is absent.
func (s *Store[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}
	if err := s.ready("get"); err != nil {
		return zero, false, err
	}

	key, err := s.opts.Keys.Encode(id)
	if err != nil {
		s.opts.Log().Debug("get with unencodable id", "id", id, "error", err)
		return zero, false, nil
	}

	var (
		rec   T
		found bool
	)
	err = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return store.IO("get", id, fmt.Errorf("bucket %q is missing", s.bucket))
		}
		payload := b.Get(key)
		if payload == nil {
			return nil
		}
		decoded, err := s.decode(key, payload)
		if err != nil {
			return store.Serialization("get", id, err)
		}
		rec, found = decoded, true
		return nil
	})
	if err != nil {
		return zero, false, s.wrap("get", id, err)
	}
	return rec, found, nil
}

// GetAll implements store.Store. Records come back in key order.
func (s *Store[T]) GetAll(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready("get_all"); err != nil {
		return nil, err
	}

	records := []T{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return store.IO("get_all", "", fmt.Errorf("bucket %q is missing", s.bucket))
		}
		return b.ForEach(func(k, v []byte) error {
			rec, err := s.decode(k, v)
			if err != nil {
				id := s.opts.Keys.Decode(k)
				if s.opts.Strict {
					return store.Serialization("get_all", id, err)
				}
				s.opts.Log().Warn("skipping undecodable record", "bucket", string(s.bucket), "id", id, "error", err)
				return nil
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, s.wrap("get_all", "", err)
	}
	return records, nil
}

// Delete implements store.Store.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready("delete"); err != nil {
		return err
	}

	key, err := s.opts.Keys.Encode(id)
	if err != nil {
		return store.NotFound("delete", id)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return store.IO("delete", id, fmt.Errorf("bucket %q is missing", s.bucket))
		}
		if b.Get(key) == nil {
			return store.NotFound("delete", id)
		}
		return b.Delete(key)
	})
	if err != nil {
		return s.wrap("delete", id, err)
	}
	return nil
}

// Count returns the number of keys in the bucket, decodable or not.
func (s *Store[T]) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.ready("count"); err != nil {
		return 0, err
	}

	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return store.IO("count", "", fmt.Errorf("bucket %q is missing", s.bucket))
		}
		n = b.Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, s.wrap("count", "", err)
	}
	return n, nil
}

// Flush implements store.Store by fsyncing the file.
func (s *Store[T]) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready("flush"); err != nil {
		return err
	}
	if err := s.db.Sync(); err != nil {
		return store.IO("flush", "", err)
	}
	return nil
}

// Close implements store.Store.
func (s *Store[T]) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	syncErr := s.db.Sync()
	closeErr := s.db.Close()
	s.db = nil
	if err := errors.Join(syncErr, closeErr); err != nil {
		return store.IO("close", "", err)
	}
	return nil
}

func (s *Store[T]) decode(key, payload []byte) (T, error) {
	var rec T
	if err := s.opts.Codec.Unmarshal(payload, &rec); err != nil {
		return rec, err
	}
	// The bucket key is authoritative for the id.
	return rec.WithKey(s.opts.Keys.Decode(key)), nil
}

func (s *Store[T]) ready(op string) error {
	if s == nil || s.db == nil {
		return store.IO(op, "", errors.New("store is closed"))
	}
	return nil
}

func (s *Store[T]) ensureBucket() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(s.bucket); err != nil {
			return store.IO("open", "", fmt.Errorf("create %s bucket: %w", s.bucket, err))
		}
		return nil
	})
}

// wrap passes store errors through and classifies the rest as IO.
func (s *Store[T]) wrap(op, id string, err error) error {
	var se *store.Error
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return store.IO(op, id, err)
}
