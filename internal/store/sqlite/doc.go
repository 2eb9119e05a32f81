// Package sqlite provides the relational image store: a single SQLite file
// with one fixed-schema table.
//
//	images(id INTEGER PRIMARY KEY, title VARCHAR(255) NOT NULL,
//	       data BLOB NOT NULL, type VARCHAR(50) NOT NULL)
//
// Ids are SQLite rowids, so inserting without an id auto-increments.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=FULL: Every commit survives a crash
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
//   - One open connection; SQLite has a single writer anyway
//
// Flush checkpoints the WAL into the main file; Close flushes first.
package sqlite
