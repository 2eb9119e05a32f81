// Package record holds the application record types persisted by the stores.
//
// Each type satisfies store.Record: Key returns its identifier (empty when
// unassigned) and WithKey returns a copy carrying a new one.
package record
