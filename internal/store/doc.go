// Package store provides SQLite-backed durable storage for recorded runs.
//
// A recording is an append-only sequence of event records keyed by
// (run_id, seq). Replaying a recording feeds the stored events, in seq
// order, through a fresh trace observer.
//
// # Ordering
//
//   - Events are ordered by seq (logical position), NEVER by timestamp
//   - Runs are listed by id; UUIDv7 ids sort by creation time
//   - Queries return empty slices, not nil, when nothing matches
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// A finished run stores the digest of its event sequence (ir.RecordingDigest)
// so later replays can confirm the recording was not altered.
package store
