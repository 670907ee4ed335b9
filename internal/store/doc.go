// Package store provides SQLite-backed run history for cdclab.
//
// A run records the canonical scenario a simulation observed, the seed and
// tick it was driven with, and for every lane the engine configuration, the
// verifier report, and the full captured event stream:
//   - runs: one row per simulation run
//   - lane_reports: per-lane engine kind, options, stream hash, report
//   - lane_events: per-lane captured events in emission order
//
// Ordering uses the logical seq columns, never wall-clock time, so listing
// and reading runs is deterministic. Run ids are UUIDv7 by default; tests
// inject a fixed generator with WithRunIDGenerator.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity (lane rows cascade)
//
// Row images are stored as canonical JSON produced by internal/ir, so the
// stream hash of events read back equals the hash recorded at write time.
package store
