package frame

import "sync"

// Cache holds the most recent processed frame and its JPEG encoding.
// Readers get copies; the JPEG slice is never mutated after Publish.
type Cache struct {
	mu    sync.RWMutex
	frame Frame
	jpeg  []byte
	seq   uint64
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Publish replaces the cached frame. The caller keeps ownership of f.
func (c *Cache) Publish(f Frame, jpeg []byte) {
	clone := f.Clone()

	c.mu.Lock()
	c.frame = clone
	c.jpeg = jpeg
	c.seq++
	c.mu.Unlock()
}

// Snapshot returns a copy of the latest frame.
func (c *Cache) Snapshot() (Frame, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.seq == 0 {
		return Frame{}, false
	}
	return c.frame.Clone(), true
}

// JPEG returns the encoded latest frame and its sequence number.
// The sequence increases on every Publish so pollers can skip repeats.
func (c *Cache) JPEG() ([]byte, uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.seq == 0 {
		return nil, 0, false
	}
	return c.jpeg, c.seq, true
}
