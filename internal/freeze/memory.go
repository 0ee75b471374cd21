package freeze

import (
	"context"
	"sync"
)

// MemoryStore keeps the freeze state in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	state State
}

// NewMemoryStore creates an unfrozen store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// State implements Store.
func (m *MemoryStore) State(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, nil
}

// Set implements Store.
func (m *MemoryStore) Set(ctx context.Context, s State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
	return nil
}
