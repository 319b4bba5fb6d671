package matcher

import (
	"fmt"
	"sync"

	"sorter/internal/apperror"
	"sorter/internal/model"
)

// Matcher maps normalized text tokens to actuator ids in 1..maxID.
type Matcher struct {
	mu      sync.RWMutex
	mapping map[string]int
	maxID   int
}

// New creates a Matcher seeded with initial. Seed entries go through the same validation as Update.
func New(initial map[string]int, maxID int) (*Matcher, error) {
	m := &Matcher{
		mapping: make(map[string]int, len(initial)),
		maxID:   maxID,
	}
	if _, err := m.Update(initial); err != nil {
		return nil, err
	}
	return m, nil
}

// Match returns the actuator id for a normalized token.
func (m *Matcher) Match(token string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.mapping[token]
	return id, ok
}

// Update merges partial into the mapping key by key and returns the full result.
// If any id is out of range, or two keys normalize to the same token with different
// ids, nothing is applied.
func (m *Matcher) Update(partial map[string]int) (map[string]int, error) {
	normalized := make(map[string]int, len(partial))
	for token, id := range partial {
		key := model.NormalizeText(token)
		if key == "" {
			return nil, fmt.Errorf("%w: empty token", apperror.ErrConfig)
		}
		if id < 1 || id > m.maxID {
			return nil, fmt.Errorf("%w: actuator %d for token %q outside 1..%d", apperror.ErrConfig, id, key, m.maxID)
		}
		if prev, dup := normalized[key]; dup && prev != id {
			return nil, fmt.Errorf("%w: token %q given twice with actuators %d and %d", apperror.ErrConfig, key, prev, id)
		}
		normalized[key] = id
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, id := range normalized {
		m.mapping[key] = id
	}
	return m.copyLocked(), nil
}

// Mapping returns a copy of the current mapping.
func (m *Matcher) Mapping() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.copyLocked()
}

func (m *Matcher) copyLocked() map[string]int {
	out := make(map[string]int, len(m.mapping))
	for k, v := range m.mapping {
		out[k] = v
	}
	return out
}
