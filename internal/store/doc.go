// Package store provides SQLite-backed storage for scenario run history.
//
// Every run of a scenario is appended as a RunRecord:
//   - id: UUIDv7, time-sortable, from an IDGenerator
//   - seq: logical clock, strictly increasing per database
//   - scenario, program_hash, cycles, pass
//   - errors: canonical JSON array of failure messages
//
// # Ordering
//
// Ordering uses seq (logical clock), never timestamps. Queries order by
// seq ASC, id ASC COLLATE BINARY so results are identical across reads.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - A single connection: SQLite allows one writer
package store
