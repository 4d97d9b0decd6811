package message

import "sync"

type cacheKey struct {
	msg      Message
	provider string
}

// Cache memoizes the provider-specific serialized form of messages. Entries
// are keyed by message identity plus provider id, so replaying the same
// history against models from different vendors never collides. Because
// messages are immutable once appended, each entry is computed at most once.
//
// The cache is the only shared mutable state touched while a renderer reads a
// history that is still being appended to, so all access goes through a
// RWMutex instead of mutating the messages themselves.
type Cache struct {
	mu      sync.RWMutex
	entries map[cacheKey]any
}

// NewCache returns an empty payload cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]any)}
}

// GetOrCompute returns the cached payload for (msg, provider), invoking
// compute and storing its result on a miss. Concurrent callers may race to
// compute; the first stored value wins and later results are discarded, which
// is harmless since compute is deterministic for an immutable message.
func (c *Cache) GetOrCompute(provider string, msg Message, compute func() (any, error)) (any, error) {
	key := cacheKey{msg: msg, provider: provider}

	c.mu.RLock()
	payload, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return payload, nil
	}

	payload, err := compute()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if existing, ok := c.entries[key]; ok {
		payload = existing
	} else {
		c.entries[key] = payload
	}
	c.mu.Unlock()

	return payload, nil
}

// Len returns the number of cached payloads.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
