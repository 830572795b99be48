package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(vars map[string]string) func(string) string {
	return func(key string) string {
		return vars[key]
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := FromEnv(envOf(nil))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, SourceUpstream, cfg.OrderSource)
	assert.Equal(t, StoreMemory, cfg.CacheStore)
	assert.Equal(t, 60*time.Second, cfg.CacheMemoryTTL)
	assert.Equal(t, 120*time.Second, cfg.CachePersistTTL)
	assert.Equal(t, 10*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.ConsumerEnabled)
	assert.Equal(t, 6, cfg.CutoffDaysBefore)
	assert.Equal(t, 1, cfg.CutoffHour)
	assert.Equal(t, "America/New_York", cfg.CutoffTimezone)
	assert.Equal(t, 20.0, cfg.RateLimitRPS)
	assert.Equal(t, 40, cfg.RateLimitBurst)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Parallel()

	cfg, err := FromEnv(envOf(map[string]string{
		"HTTP_PORT":          "8080",
		"ORDER_SOURCE":       "Snapshot",
		"CACHE_STORE":        "redis",
		"CACHE_MEMORY_TTL":   "5s",
		"KAFKA_BROKERS":      "k1:9092, k2:9092,",
		"DB_HOST":            "db",
		"DB_PORT":            "6432",
		"POSTGRES_USER":      "orders",
		"POSTGRES_PASSWORD":  "secret",
		"POSTGRES_DB":        "orders_db",
		"CUTOFF_DAYS_BEFORE": "3",
	}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, SourceSnapshot, cfg.OrderSource)
	assert.Equal(t, StoreRedis, cfg.CacheStore)
	assert.Equal(t, 5*time.Second, cfg.CacheMemoryTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 3, cfg.CutoffDaysBefore)
	assert.Equal(t, "host=db port=6432 user=orders password=secret dbname=orders_db sslmode=disable", cfg.DB.DSN())
}

func TestFromEnv_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "bad duration", env: map[string]string{"UPSTREAM_TIMEOUT": "ten"}, want: "UPSTREAM_TIMEOUT"},
		{name: "bad int", env: map[string]string{"DB_PORT": "x"}, want: "DB_PORT"},
		{name: "bad bool", env: map[string]string{"SNAPSHOT_CONSUMER_ENABLED": "maybe"}, want: "SNAPSHOT_CONSUMER_ENABLED"},
		{name: "bad float", env: map[string]string{"RATE_LIMIT_RPS": "fast"}, want: "RATE_LIMIT_RPS"},
		{name: "unknown source", env: map[string]string{"ORDER_SOURCE": "firestore"}, want: "ORDER_SOURCE"},
		{name: "unknown store", env: map[string]string{"CACHE_STORE": "disk"}, want: "CACHE_STORE"},
		{name: "zero burst", env: map[string]string{"RATE_LIMIT_BURST": "0"}, want: "rate limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := FromEnv(envOf(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
