package respcache

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMemoryTier(clock *fakeClock, ttl time.Duration) *MemoryTier {
	m := NewMemoryTier(ttl)
	m.timeNow = clock.Now
	return m
}

func TestMemoryTier_RoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m := newTestMemoryTier(clock, 0)
	key := NewKey("NS", "q=1", "u1")

	m.Set(ctx, key, json.RawMessage(`{"foo":1}`), 5*time.Second)

	v, ok := m.Get(ctx, key)
	require.True(t, ok)
	assert.JSONEq(t, `{"foo":1}`, string(v))

	clock.Advance(5*time.Second + time.Millisecond)

	v, ok = m.Get(ctx, key)
	assert.False(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, 0, m.Len())
}

func TestMemoryTier_UserIsolation(t *testing.T) {
	ctx := context.Background()
	m := newTestMemoryTier(newFakeClock(), 0)

	m.Put(ctx, NewKey("NS", "q=1", "u1"), json.RawMessage(`"mine"`))

	_, ok := m.Get(ctx, NewKey("NS", "q=1", "u2"))
	assert.False(t, ok)
	_, ok = m.Get(ctx, NewKey("NS", "q=1", ""))
	assert.False(t, ok)
	_, ok = m.Get(ctx, NewKey("OTHER", "q=1", "u1"))
	assert.False(t, ok)
}

func TestMemoryTier_QueryOrderMatters(t *testing.T) {
	ctx := context.Background()
	m := newTestMemoryTier(newFakeClock(), 0)

	m.Put(ctx, NewKey("NS", "a=1&b=2", "u1"), json.RawMessage(`1`))

	_, ok := m.Get(ctx, NewKey("NS", "b=2&a=1", "u1"))
	assert.False(t, ok)
}

func TestMemoryTier_MinimumTTL(t *testing.T) {
	ctx := context.Background()

	for _, ttl := range []time.Duration{0, -100 * time.Millisecond, time.Nanosecond} {
		clock := newFakeClock()
		m := newTestMemoryTier(clock, 0)
		key := NewKey("NS", "q=1", "u1")

		m.Set(ctx, key, json.RawMessage(`true`), ttl)

		clock.Advance(999 * time.Millisecond)
		_, ok := m.Get(ctx, key)
		assert.True(t, ok, "ttl %s", ttl)

		clock.Advance(2 * time.Millisecond)
		_, ok = m.Get(ctx, key)
		assert.False(t, ok, "ttl %s", ttl)
	}
}

func TestMemoryTier_DefaultTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m := newTestMemoryTier(clock, 0)
	key := NewKey("NS", "q", "u")

	assert.Equal(t, DefaultMemoryTTL, m.TTL())
	m.Put(ctx, key, json.RawMessage(`1`))

	clock.Advance(DefaultMemoryTTL - time.Second)
	_, ok := m.Get(ctx, key)
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = m.Get(ctx, key)
	assert.False(t, ok)
}

func TestMemoryTier_OverwriteRefreshes(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	m := newTestMemoryTier(clock, 10*time.Second)
	key := NewKey("NS", "q", "u")

	m.Put(ctx, key, json.RawMessage(`"old"`))
	clock.Advance(8 * time.Second)
	m.Put(ctx, key, json.RawMessage(`"new"`))
	clock.Advance(8 * time.Second)

	v, ok := m.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, `"new"`, string(v))
}

func TestMemoryTier_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	m := newTestMemoryTier(newFakeClock(), 0)
	key := NewKey("NS", "q", "u")

	in := json.RawMessage(`"abc"`)
	m.Put(ctx, key, in)
	in[1] = 'x'

	out, ok := m.Get(ctx, key)
	require.True(t, ok)
	out[1] = 'y'

	again, _ := m.Get(ctx, key)
	assert.Equal(t, `"abc"`, string(again))
}

func TestMemoryTier_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryTier(time.Minute)
	key := NewKey("NS", "q", "u")
	values := []json.RawMessage{json.RawMessage(`{"v":"aaaa"}`), json.RawMessage(`{"v":"bbbb"}`)}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				m.Put(ctx, key, values[(i+j)%2])
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if v, ok := m.Get(ctx, key); ok {
					s := string(v)
					assert.True(t, s == string(values[0]) || s == string(values[1]), s)
				}
			}
		}()
	}
	wg.Wait()
}
