package respcache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/metrics"
)

const tierMemory = "memory"

type entry struct {
	value  json.RawMessage
	expiry time.Time
}

// MemoryTier is the process-lifetime tier.
type MemoryTier struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	timeNow func() time.Time
}

func NewMemoryTier(ttl time.Duration) *MemoryTier {
	if ttl <= 0 {
		ttl = DefaultMemoryTTL
	}
	return &MemoryTier{
		entries: make(map[string]entry),
		ttl:     ttl,
		timeNow: time.Now,
	}
}

func (m *MemoryTier) Name() string {
	return tierMemory
}

func (m *MemoryTier) TTL() time.Duration {
	return m.ttl
}

func (m *MemoryTier) Get(_ context.Context, key Key) (json.RawMessage, bool) {
	k := key.String()

	m.mu.RLock()
	e, found := m.entries[k]
	m.mu.RUnlock()

	if !found {
		metrics.CacheLookupsTotal.WithLabelValues(tierMemory, "miss").Inc()
		return nil, false
	}

	if !m.timeNow().Before(e.expiry) {
		m.mu.Lock()
		// a concurrent Set may have refreshed it
		if cur, ok := m.entries[k]; ok && cur.expiry.Equal(e.expiry) {
			delete(m.entries, k)
			metrics.MemoryCacheItems.Dec()
		}
		m.mu.Unlock()
		metrics.CacheLookupsTotal.WithLabelValues(tierMemory, "stale").Inc()
		return nil, false
	}

	metrics.CacheLookupsTotal.WithLabelValues(tierMemory, "hit").Inc()
	return cloneRaw(e.value), true
}

// Put writes with the tier's default TTL.
func (m *MemoryTier) Put(ctx context.Context, key Key, value json.RawMessage) {
	m.Set(ctx, key, value, m.ttl)
}

// Set overwrites the entry; ttl below MinTTL is raised to MinTTL.
func (m *MemoryTier) Set(_ context.Context, key Key, value json.RawMessage, ttl time.Duration) {
	e := entry{
		value:  cloneRaw(value),
		expiry: m.timeNow().Add(clampTTL(ttl)),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[key.String()]; !exists {
		metrics.MemoryCacheItems.Inc()
	}
	m.entries[key.String()] = e
}

// Len counts entries, expired ones included until they are read.
func (m *MemoryTier) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func cloneRaw(v json.RawMessage) json.RawMessage {
	if v == nil {
		return nil
	}
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out
}
