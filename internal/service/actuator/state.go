package actuator

import (
	"encoding/json"
	"sync"
	"time"
)

// Snapshot is the last status message received from the controller.
// Payload is kept exactly as received.
type Snapshot struct {
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}

// StateCache holds the latest Snapshot. Update is called only by the StatusConsumer.
type StateCache struct {
	mu       sync.RWMutex
	snapshot Snapshot
	present  bool
}

func NewStateCache() *StateCache {
	return &StateCache{}
}

// Update replaces the snapshot wholesale.
func (c *StateCache) Update(s Snapshot) {
	c.mu.Lock()
	c.snapshot = s
	c.present = true
	c.mu.Unlock()
}

// Read returns the latest snapshot, or false if none arrived yet.
func (c *StateCache) Read() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot, c.present
}
