// Package bolt stores records in a bbolt file, one bucket per store.
//
// Keys come from a KeyScheme:
//   - Sequence: bucket NextSequence, 8-byte big-endian keys (numeric order)
//   - UUID: generated identifiers, UTF-8 keys
//   - Natural: caller-supplied identifiers, UTF-8 keys
//
// String keys are NFC-normalized. Payloads are encoded with a codec.Codec,
// CBOR unless configured otherwise.
package bolt
