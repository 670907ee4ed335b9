package testutil

import (
	"fmt"
	"sync"
)

// FixedRunIDGenerator returns predictable run ids for tests.
//
// Ids are "<prefix>-1", "<prefix>-2", ... so stored runs and golden output
// stay stable across test runs.
//
// Thread-safety: FixedRunIDGenerator is safe for concurrent use via internal mutex.
type FixedRunIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewFixedRunIDGenerator creates a generator with the given prefix.
// If prefix is empty, "test-run" is used.
func NewFixedRunIDGenerator(prefix string) *FixedRunIDGenerator {
	if prefix == "" {
		prefix = "test-run"
	}
	return &FixedRunIDGenerator{prefix: prefix}
}

// Generate returns the next id.
//
// Implements store.RunIDGenerator.
func (g *FixedRunIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts the sequence at 1.
func (g *FixedRunIDGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
