// Package id issues unique int64 identifiers for transactions and cards.
//
// Identifiers are millisecond timestamps bumped past the last issued value,
// so they stay unique within a process even when a batch is expanded faster
// than the clock ticks. Uniqueness is the only guarantee callers rely on.
package id

import (
	"sync"
	"time"
)

type Generator struct {
	mu   sync.Mutex
	last int64
}

func NewGenerator() *Generator {
	return &Generator{}
}

// Next returns a fresh identifier strictly greater than every identifier
// this generator issued before.
func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := time.Now().UnixMilli()
	if n <= g.last {
		n = g.last + 1
	}
	g.last = n
	return n
}

// Seed bumps the generator so it never issues an identifier at or below
// the given value. Used at startup to move past stored ids.
func (g *Generator) Seed(last int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if last > g.last {
		g.last = last
	}
}
