// Package verify scores a lane's captured events against the canonical
// operation log.
//
// Compare walks operations in source order and pairs each with at most one
// event of the same row. Unpaired operations count as missing, unpaired
// events as extra, and a pairing that reaches back past an event already
// claimed by an earlier operation counts as an ordering violation. Lag is
// the event's ts_ms minus the operation's t.
//
// Trigger and Log lanes are matched strictly one-to-one. Polling lanes are
// matched in coalescing mode: every operation in a poll window pairs with
// the single event that window produced for its row, if any.
//
// Mismatches are findings, not errors; Compare never fails.
package verify
