// Package cache holds the short-lived leaderboard result cache. Expiry is
// decided when an entry is read; nothing sweeps stale entries, they are
// simply overwritten by the next Set for the same key.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/coder/quartz"
)

// DefaultTTL is how long a stored payload is served.
const DefaultTTL = 60 * time.Second

// Store is a key to JSON payload mapping with read-time expiry. Set is an
// unconditional last-writer-wins overwrite.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, payload []byte)
}

// Entry is one stored payload.
type Entry struct {
	Payload  []byte
	StoredAt time.Time
}

// Fresh reports whether the entry is still servable at now.
func (e Entry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.StoredAt) < ttl
}

// Memory is the process-local Store.
type Memory struct {
	mu    sync.RWMutex
	items map[string]Entry
	ttl   time.Duration
	clock quartz.Clock
}

// NewMemory creates an in-memory store. A nil clock uses the real clock.
func NewMemory(ttl time.Duration, clock quartz.Clock) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Memory{
		items: make(map[string]Entry),
		ttl:   ttl,
		clock: clock,
	}
}

// Get returns the payload while it is fresh. Stale entries stay in place.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, exists := m.items[key]
	if !exists || !item.Fresh(m.clock.Now(), m.ttl) {
		return nil, false
	}
	return item.Payload, true
}

// Set stores a payload
func (m *Memory) Set(_ context.Context, key string, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = Entry{Payload: payload, StoredAt: m.clock.Now()}
}

// Stats returns cache statistics
func (m *Memory) Stats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.clock.Now()
	stale := 0
	for _, item := range m.items {
		if !item.Fresh(now, m.ttl) {
			stale++
		}
	}

	return map[string]interface{}{
		"backend":      "memory",
		"total_items":  len(m.items),
		"stale_items":  stale,
		"active_items": len(m.items) - stale,
		"ttl_seconds":  m.ttl.Seconds(),
	}
}
