// Package store provides SQLite-backed history of verification runs.
//
// Every persisted report can be appended as a run:
//   - runs: one row per run with suite, host group, target and totals
//   - records: the report records in their original order
//
// History is write-only from the engine's point of view; checks never read
// it, so every run evaluates the host from scratch.
//
// # Ordering
//
//   - Runs are ordered by seq INTEGER, assigned inside the write
//     transaction, never by timestamps
//   - Records are ordered by position within their run
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
