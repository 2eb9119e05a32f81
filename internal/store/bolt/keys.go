package bolt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"go.etcd.io/bbolt"

	"github.com/roach88/shelf/internal/codec"
	"github.com/roach88/shelf/internal/ident"
)

// KeyScheme maps record ids to bucket keys and assigns ids to unkeyed records.
type KeyScheme interface {
	// Next assigns an id for a record inserted without one.
	// Called inside the write transaction that stores the record.
	Next(b *bbolt.Bucket) (string, error)

	// Encode converts an id to its bucket key.
	Encode(id string) ([]byte, error)

	// Decode converts a bucket key back to its id.
	Decode(key []byte) string
}

// errKeyRequired is returned by Natural.Next.
var errKeyRequired = errors.New("record key is required")

// Sequence assigns auto-increment integer ids from the bucket sequence and
// stores them as 8-byte big-endian keys, so iteration is in id order.
type Sequence struct{}

func (Sequence) Next(b *bbolt.Bucket) (string, error) {
	n, err := b.NextSequence()
	if err != nil {
		return "", fmt.Errorf("next sequence: %w", err)
	}
	return strconv.FormatUint(n, 10), nil
}

func (Sequence) Encode(id string) ([]byte, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("sequence id %q: %w", id, err)
	}
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, n)
	return key, nil
}

// Observe advances the bucket sequence past an explicitly supplied id so a
// later Next cannot hand it out again.
func (Sequence) Observe(b *bbolt.Bucket, id string) error {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return fmt.Errorf("sequence id %q: %w", id, err)
	}
	if n > b.Sequence() {
		return b.SetSequence(n)
	}
	return nil
}

func (Sequence) Decode(key []byte) string {
	if len(key) != 8 {
		return string(key)
	}
	return strconv.FormatUint(binary.BigEndian.Uint64(key), 10)
}

// UUID assigns ids from a generator (UUIDv7 by default) and stores them as
// NFC-normalized UTF-8 keys.
type UUID struct {
	Generator ident.Generator
}

func (u UUID) Next(*bbolt.Bucket) (string, error) {
	gen := u.Generator
	if gen == nil {
		gen = ident.UUIDv7Generator{}
	}
	return gen.Generate(), nil
}

func (UUID) Encode(id string) ([]byte, error) {
	return stringKey(id)
}

func (UUID) Decode(key []byte) string {
	return string(key)
}

// Natural uses the caller-supplied record key; inserting an unkeyed record fails.
type Natural struct{}

func (Natural) Next(*bbolt.Bucket) (string, error) {
	return "", errKeyRequired
}

func (Natural) Encode(id string) ([]byte, error) {
	return stringKey(id)
}

func (Natural) Decode(key []byte) string {
	return string(key)
}

func stringKey(id string) ([]byte, error) {
	if id == "" {
		return nil, errKeyRequired
	}
	return []byte(codec.NormalizeKey(id)), nil
}
