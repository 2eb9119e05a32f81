package store

import (
	"errors"
	"fmt"
)

// Kind categorizes store failures independently of the backing engine.
type Kind string

const (
	// KindNotFound indicates the requested key does not exist.
	KindNotFound Kind = "not_found"

	// KindInvalid indicates a malformed identifier or a record rejected by validation.
	KindInvalid Kind = "invalid"

	// KindSerialization indicates a record could not be encoded or decoded.
	KindSerialization Kind = "serialization"

	// KindIO indicates the engine failed to open, read, write or sync.
	KindIO Kind = "io"

	// KindCorrupt indicates the engine reported a damaged database file.
	KindCorrupt Kind = "corrupt"
)

// Sentinels for errors.Is matching. A *Error of a given Kind matches the
// sentinel of the same Kind.
var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalid       = errors.New("invalid record")
	ErrSerialization = errors.New("serialization failed")
	ErrIO            = errors.New("storage i/o failed")
	ErrCorrupt       = errors.New("storage corrupt")
)

// Error is the single error type returned by store implementations.
type Error struct {
	// Kind identifies the failure category.
	Kind Kind

	// Op is the store operation that failed ("insert", "get", ...).
	Op string

	// Key is the record key involved, if any.
	Key string

	// Err is the underlying engine or codec error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Key != "" {
		msg = fmt.Sprintf("%s %q: %s", e.Op, e.Key, e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the kind sentinel and the underlying error.
func (e *Error) Unwrap() []error {
	errs := []error{sentinel(e.Kind)}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func sentinel(k Kind) error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindInvalid:
		return ErrInvalid
	case KindSerialization:
		return ErrSerialization
	case KindCorrupt:
		return ErrCorrupt
	default:
		return ErrIO
	}
}

// NotFound creates a KindNotFound error for key.
func NotFound(op, key string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Key: key}
}

// Invalid creates a KindInvalid error.
func Invalid(op, key string, err error) *Error {
	return &Error{Kind: KindInvalid, Op: op, Key: key, Err: err}
}

// Serialization creates a KindSerialization error.
func Serialization(op, key string, err error) *Error {
	return &Error{Kind: KindSerialization, Op: op, Key: key, Err: err}
}

// IO creates a KindIO error.
func IO(op, key string, err error) *Error {
	return &Error{Kind: KindIO, Op: op, Key: key, Err: err}
}

// Corrupt creates a KindCorrupt error.
func Corrupt(op, key string, err error) *Error {
	return &Error{Kind: KindCorrupt, Op: op, Key: key, Err: err}
}

// KindOf returns the Kind of err, or "" if err is not a store error.
// Uses errors.As to handle wrapped errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsNotFound returns true if err reports a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
