// Package storage persists scheduled-message definitions.
//
// Drivers:
//   - "sqlite": modernc.org/sqlite database file (default)
//   - "postgres": PostgreSQL through lib/pq
//   - "file": in-memory table backed by a JSON snapshot
//   - "memory": in-memory only
//
// SQL schemas are versioned with golang-migrate and embedded in the binary.
package storage
