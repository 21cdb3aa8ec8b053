// Package store provides SQLite-backed durable storage for the artist catalog
// and its featured-artist history.
//
// The store is the source of truth for rotation state: each artist row carries
// a nullable featured_at column, and the rotation core derives both "who is
// next" and "who is current" from it.
//
// # Ordering
//
// Every query that picks a single artist orders by a total key so results are
// deterministic:
//   - next eligible:   featured_at ASC with NULLs first, then id ASC
//   - most recent:     featured_at DESC (featured rows only), then id ASC
//
// # Time
//
// Timestamps are stored as INTEGER Unix nanoseconds in UTC. Comparisons against
// a period start are plain integer comparisons, independent of the SQLite
// date functions and of the server time zone.
//
// # History
//
// A trigger appends a featured_history row whenever featured_at changes, inside
// the same statement as the update. History can never disagree with the
// artists table.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
