// Package capture implements the change-data-capture engine family.
//
// Three engines share the Engine interface but no implementation:
//
//   - Polling diffs a current-image table against the last polled snapshot at
//     fixed boundaries. Intermediate writes coalesce and hard deletes are
//     invisible.
//   - Trigger lands every operation in an outbox after a fixed overhead and
//     releases outbox rows at extraction boundaries.
//   - Log tails the commit log with a small seeded jitter; it is the fidelity
//     baseline.
//
// # Boundaries
//
// Every engine batches on multiples of its interval. A batch at boundary B
// contains items whose time lies in the half-open window [B-interval, B); an
// item scheduled exactly at B belongs to the next batch.
//
// # Callbacks
//
// Handlers registered with OnEvent run synchronously inside Advance, in
// emission order, and never after Advance returns. Engines are not safe for
// concurrent use; each instance owns its queue and snapshot state.
package capture
