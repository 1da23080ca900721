package task

import "sync"

// CancelRegistry is the process-wide set of task ids with a pending
// cancellation request. Running work polls it between items; the scheduler
// clears entries once their task reaches a terminal state.
type CancelRegistry struct {
	mu        sync.Mutex
	requested map[string]struct{}
}

// NewCancelRegistry creates an empty cancellation registry.
func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{requested: make(map[string]struct{})}
}

// RequestCancel marks a task id for cancellation. Idempotent.
func (c *CancelRegistry) RequestCancel(taskID string) {
	c.mu.Lock()
	c.requested[taskID] = struct{}{}
	c.mu.Unlock()
}

// IsCancelled reports whether cancellation has been requested for the id.
func (c *CancelRegistry) IsCancelled(taskID string) bool {
	c.mu.Lock()
	_, ok := c.requested[taskID]
	c.mu.Unlock()
	return ok
}

// Clear removes a task id's mark.
func (c *CancelRegistry) Clear(taskID string) {
	c.mu.Lock()
	delete(c.requested, taskID)
	c.mu.Unlock()
}
