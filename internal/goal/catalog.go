package goal

import (
	"fmt"
	"sort"
	"sync"
)

// ConflictingGoalError reports one goal name registered with two metadata shapes.
type ConflictingGoalError struct {
	Name     string
	Existing Goal
	Incoming Goal
}

func (e *ConflictingGoalError) Error() string {
	return fmt.Sprintf("goal %q registered with conflicting metadata: %+v vs %+v", e.Name, e.Existing, e.Incoming)
}

// Catalog tracks every goal a machine can produce. It is filled at assembly
// time so configuration mistakes surface before any push is resolved.
type Catalog struct {
	mu    sync.RWMutex
	goals map[string]Goal
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{goals: make(map[string]Goal)}
}

// Register adds a goal. Re-registering an identical goal is a no-op.
func (c *Catalog) Register(g Goal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.goals[g.Name]; ok {
		if existing != g {
			return &ConflictingGoalError{Name: g.Name, Existing: existing, Incoming: g}
		}
		return nil
	}
	c.goals[g.Name] = g
	return nil
}

// RegisterSet registers every goal in s, stopping at the first conflict.
func (c *Catalog) RegisterSet(s Set) error {
	for _, g := range s.goals {
		if err := c.Register(g); err != nil {
			return fmt.Errorf("goal set %q: %w", s.name, err)
		}
	}
	return nil
}

// Lookup returns the registered goal with the given name.
func (c *Catalog) Lookup(name string) (Goal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.goals[name]
	return g, ok
}

// Names returns all registered goal names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.goals))
	for name := range c.goals {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
