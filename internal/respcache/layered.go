package respcache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Tier is one cache level. Get reports a hit only for unexpired entries.
type Tier interface {
	Name() string
	Get(ctx context.Context, key Key) (json.RawMessage, bool)
	Put(ctx context.Context, key Key, value json.RawMessage)
	Set(ctx context.Context, key Key, value json.RawMessage, ttl time.Duration)
}

// Source tells where a Layered lookup was answered from.
type Source string

const (
	SourceMemory    Source = "memory"
	SourcePersisted Source = "persisted"
	SourceFetch     Source = "fetch"
)

type FetchFunc func(ctx context.Context) (json.RawMessage, error)

// DefaultFetchTimeout bounds a shared fetch once it no longer follows any
// single caller's context.
const DefaultFetchTimeout = 30 * time.Second

// Layered reads memory, then persisted, then fetches. Only a successful fetch
// writes, and it writes both tiers. A persisted hit is not copied into
// memory; the tiers are independent stores.
type Layered struct {
	memory       Tier
	persisted    Tier
	group        singleflight.Group
	fetchTimeout time.Duration
	logger       *zap.Logger
}

func NewLayered(memory, persisted Tier, logger *zap.Logger) *Layered {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Layered{
		memory:       memory,
		persisted:    persisted,
		fetchTimeout: DefaultFetchTimeout,
		logger:       logger,
	}
}

// Get returns the cached response for key or fetches it. memoryTTL overrides
// the memory tier TTL when positive. Concurrent misses on one key share a
// single fetch; it keeps the first caller's values but not its cancellation,
// so a caller that gives up only ends its own wait.
func (l *Layered) Get(ctx context.Context, key Key, memoryTTL time.Duration, fetch FetchFunc) (json.RawMessage, Source, error) {
	if v, ok := l.lookup(ctx, l.memory, key); ok {
		return v, SourceMemory, nil
	}
	if v, ok := l.lookup(ctx, l.persisted, key); ok {
		return v, SourcePersisted, nil
	}

	ch := l.group.DoChan(key.String(), func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.fetchTimeout)
		defer cancel()

		v, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		l.store(fetchCtx, key, v, memoryTTL)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, SourceFetch, res.Err
		}
		if res.Shared {
			l.logger.Debug("shared in-flight fetch", zap.String("key", key.String()))
		}
		return cloneRaw(res.Val.(json.RawMessage)), SourceFetch, nil
	case <-ctx.Done():
		return nil, SourceFetch, ctx.Err()
	}
}

func (l *Layered) lookup(ctx context.Context, tier Tier, key Key) (json.RawMessage, bool) {
	if tier == nil {
		return nil, false
	}
	return tier.Get(ctx, key)
}

func (l *Layered) store(ctx context.Context, key Key, value json.RawMessage, memoryTTL time.Duration) {
	if l.memory != nil {
		if memoryTTL > 0 {
			l.memory.Set(ctx, key, value, memoryTTL)
		} else {
			l.memory.Put(ctx, key, value)
		}
	}
	if l.persisted != nil {
		l.persisted.Put(ctx, key, value)
	}
}
