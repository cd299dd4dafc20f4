package feed

import (
	"context"
	"sync"
)

// InMemory records published changes. Used by tests and as the publisher
// when no brokers are configured.
type InMemory struct {
	mu      sync.Mutex
	changes []Change
}

// NewInMemory creates an empty in-memory publisher.
func NewInMemory() *InMemory {
	return &InMemory{}
}

func (m *InMemory) Publish(ctx context.Context, c Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, c)
	return nil
}

func (m *InMemory) Close() {}

// Changes returns a copy of everything published so far.
func (m *InMemory) Changes() []Change {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Change, len(m.changes))
	copy(out, m.changes)
	return out
}
