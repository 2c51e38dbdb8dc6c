package reward

import (
	"context"
	"sync"
)

// MemoryCart is an in-memory Cart used in development and tests, standing
// in for the storefront's hosted cart backend.
type MemoryCart struct {
	mu    sync.RWMutex
	lines map[string]CartLine // keyed by reward id
}

// NewMemoryCart creates an empty in-memory cart.
func NewMemoryCart() *MemoryCart {
	return &MemoryCart{lines: make(map[string]CartLine)}
}

// Exists reports whether a line for the reward is in the cart.
func (c *MemoryCart) Exists(ctx context.Context, rewardID string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.lines[rewardID]
	return ok, nil
}

// Insert adds a cart line.
func (c *MemoryCart) Insert(ctx context.Context, line CartLine) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines[line.RewardID] = line
	return nil
}

// Remove deletes all lines matching the predicate and returns how many were
// removed.
func (c *MemoryCart) Remove(predicate func(CartLine) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, line := range c.lines {
		if predicate(line) {
			delete(c.lines, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of lines in the cart.
func (c *MemoryCart) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lines)
}
