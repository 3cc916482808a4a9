package testutil

import (
	"fmt"
	"sync"
)

// FixedSessionGenerator hands out journal session ids in a fixed sequence.
//
// Golden traces and journal tests compare ids byte for byte, so tests use
// this instead of the UUIDv7 generator. Ids look like
// "<prefix>-0001", "<prefix>-0002", ...
//
// Thread-safety: Generate is safe for concurrent use.
type FixedSessionGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewFixedSessionGenerator creates a generator. An empty prefix becomes
// "session".
func NewFixedSessionGenerator(prefix string) *FixedSessionGenerator {
	if prefix == "" {
		prefix = "session"
	}
	return &FixedSessionGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *FixedSessionGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
