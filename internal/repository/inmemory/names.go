package inmemory

import (
	"sync"
	"time"
)

// NameCache is a TTL cache for person display names.
type NameCache struct {
	mu    sync.RWMutex
	items map[string]nameItem
}

type nameItem struct {
	value     string
	expiresAt time.Time
}

func NewNameCache() *NameCache {
	return &NameCache{
		items: make(map[string]nameItem),
	}
}

func (c *NameCache) GetName(personID string) (string, bool) {
	now := time.Now()

	c.mu.RLock()
	item, ok := c.items[personID]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}

	if !item.expiresAt.After(now) {
		c.mu.Lock()
		item, ok = c.items[personID]
		if ok && !item.expiresAt.After(now) {
			delete(c.items, personID)
		}
		c.mu.Unlock()
		return "", false
	}

	return item.value, true
}

func (c *NameCache) SetName(personID, name string, ttl time.Duration) {
	if name == "" || ttl <= 0 {
		c.mu.Lock()
		delete(c.items, personID)
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.items[personID] = nameItem{
		value:     name,
		expiresAt: time.Now().Add(ttl),
	}
	c.mu.Unlock()
}

func (c *NameCache) Clear() {
	c.mu.Lock()
	c.items = make(map[string]nameItem)
	c.mu.Unlock()
}
