//go:generate mockgen -source ./persisted.go -destination=./mocks/persisted.go -package=mock_respcache
package respcache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/metrics"
)

const tierPersisted = "persisted"

// KVStore is a durable string key/value store. Any method may fail.
type KVStore interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// persistedBlob is the stored form of one entry. Expiry is unix milliseconds.
type persistedBlob struct {
	Value  json.RawMessage `json:"value"`
	Expiry int64           `json:"expiry"`
}

// PersistedTier keeps entries in a KVStore so they survive restarts. Store
// failures are treated as misses or dropped writes.
type PersistedTier struct {
	store   KVStore
	ttl     time.Duration
	logger  *zap.Logger
	timeNow func() time.Time
}

func NewPersistedTier(store KVStore, ttl time.Duration, logger *zap.Logger) *PersistedTier {
	if ttl <= 0 {
		ttl = DefaultPersistedTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersistedTier{
		store:   store,
		ttl:     ttl,
		logger:  logger,
		timeNow: time.Now,
	}
}

func (p *PersistedTier) Name() string {
	return tierPersisted
}

func (p *PersistedTier) TTL() time.Duration {
	return p.ttl
}

func (p *PersistedTier) Get(ctx context.Context, key Key) (json.RawMessage, bool) {
	k := key.String()

	raw, found, err := p.store.GetItem(ctx, k)
	if err != nil {
		p.storeFailed("get", k, err)
		return nil, false
	}
	if !found {
		metrics.CacheLookupsTotal.WithLabelValues(tierPersisted, "miss").Inc()
		return nil, false
	}

	var blob persistedBlob
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		p.logger.Debug("dropping undecodable cache entry", zap.String("key", k), zap.Error(err))
		p.remove(ctx, k)
		metrics.CacheLookupsTotal.WithLabelValues(tierPersisted, "miss").Inc()
		return nil, false
	}

	if blob.Expiry <= p.timeNow().UnixMilli() {
		p.remove(ctx, k)
		metrics.CacheLookupsTotal.WithLabelValues(tierPersisted, "stale").Inc()
		return nil, false
	}

	metrics.CacheLookupsTotal.WithLabelValues(tierPersisted, "hit").Inc()
	return blob.Value, true
}

// Put writes with the tier's default TTL.
func (p *PersistedTier) Put(ctx context.Context, key Key, value json.RawMessage) {
	p.Set(ctx, key, value, p.ttl)
}

// Set overwrites the entry; ttl below MinTTL is raised to MinTTL.
func (p *PersistedTier) Set(ctx context.Context, key Key, value json.RawMessage, ttl time.Duration) {
	k := key.String()
	blob, err := json.Marshal(persistedBlob{
		Value:  value,
		Expiry: p.timeNow().Add(clampTTL(ttl)).UnixMilli(),
	})
	if err != nil {
		// value was not valid JSON
		p.logger.Debug("skipping cache write", zap.String("key", k), zap.Error(err))
		return
	}

	if err := p.store.SetItem(ctx, k, string(blob)); err != nil {
		p.storeFailed("set", k, err)
	}
}

func (p *PersistedTier) remove(ctx context.Context, key string) {
	if err := p.store.RemoveItem(ctx, key); err != nil {
		p.storeFailed("remove", key, err)
	}
}

func (p *PersistedTier) storeFailed(op, key string, err error) {
	metrics.CacheStoreErrorsTotal.WithLabelValues(op).Inc()
	p.logger.Debug("persisted cache store failed",
		zap.String("operation", op),
		zap.String("key", key),
		zap.Error(err))
}
