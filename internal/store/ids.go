package store

import (
	"github.com/google/uuid"
)

// RunIDGenerator produces identifiers for stored runs.
// Implemented by UUIDv7Generator (production) and testutil.FixedRunIDGenerator (tests).
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run ids.
//
// The embedded timestamp only makes ids readable in order; the store never
// orders by it.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
