// Package store defines the record store contract shared by the embedded
// backends, and the single error taxonomy they report.
//
// # Backends
//
//   - store/bolt: ordered key/value file (bbolt), generic over the record type
//   - store/sqlite: relational file (SQLite) with the fixed images table
//
// # Semantics
//
//   - Insert upserts; an empty key is assigned by the backend
//   - Get models absence as (zero, false, nil), not as an error
//   - GetAll skips undecodable records unless Options.Strict is set
//   - Delete returns ErrNotFound for an absent key
//   - Close flushes before releasing the file
//
// Every failure is a *Error whose Kind matches one of the sentinels
// (ErrNotFound, ErrInvalid, ErrSerialization, ErrIO, ErrCorrupt) via errors.Is.
package store
