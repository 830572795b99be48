// Package config reads service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	SourceUpstream = "upstream"
	SourceSnapshot = "snapshot"

	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Config struct {
	HTTPPort    string
	LogLevel    string
	OrderSource string

	UpstreamBaseURL string
	UpstreamTimeout time.Duration

	CacheStore      string
	CacheMemoryTTL  time.Duration
	CachePersistTTL time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	DB DBConfig

	KafkaBrokers    []string
	KafkaTopic      string
	KafkaGroupID    string
	ConsumerEnabled bool

	CutoffDaysBefore int
	CutoffHour       int
	CutoffTimezone   string

	RateLimitRPS   float64
	RateLimitBurst int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

// DSN is the pgx connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
}

// Load picks up a .env file if one is found and reads the environment.
// A missing file is not an error.
func Load() (Config, error) {
	loadEnv()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults to unset values.
func FromEnv(getenv func(string) string) (Config, error) {
	r := reader{getenv: getenv}

	cfg := Config{
		HTTPPort:    r.str("HTTP_PORT", "9000"),
		LogLevel:    r.str("LOG_LEVEL", "debug"),
		OrderSource: strings.ToLower(r.str("ORDER_SOURCE", SourceUpstream)),

		UpstreamBaseURL: r.str("UPSTREAM_BASE_URL", "http://localhost:5001"),
		UpstreamTimeout: r.duration("UPSTREAM_TIMEOUT", 10*time.Second),

		CacheStore:      strings.ToLower(r.str("CACHE_STORE", StoreMemory)),
		CacheMemoryTTL:  r.duration("CACHE_MEMORY_TTL", 60*time.Second),
		CachePersistTTL: r.duration("CACHE_PERSISTED_TTL", 120*time.Second),
		RedisAddr:       r.str("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   r.str("REDIS_PASSWORD", ""),
		RedisDB:         r.int("REDIS_DB", 0),

		DB: DBConfig{
			Host:     r.str("DB_HOST", "localhost"),
			Port:     r.int("DB_PORT", 5432),
			User:     r.str("POSTGRES_USER", "postgres"),
			Password: r.str("POSTGRES_PASSWORD", ""),
			Name:     r.str("POSTGRES_DB", "buyer_orders"),
		},

		KafkaBrokers: r.list("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaTopic:   r.str("KAFKA_ORDERS_TOPIC", "buyer_orders"),
		KafkaGroupID: r.str("KAFKA_GROUP_ID", "buyer-orders-snapshot"),

		ConsumerEnabled: r.bool("SNAPSHOT_CONSUMER_ENABLED", true),

		CutoffDaysBefore: r.int("CUTOFF_DAYS_BEFORE", 6),
		CutoffHour:       r.int("CUTOFF_HOUR", 1),
		CutoffTimezone:   r.str("CUTOFF_TIMEZONE", "America/New_York"),

		RateLimitRPS:   r.float("RATE_LIMIT_RPS", 20),
		RateLimitBurst: r.int("RATE_LIMIT_BURST", 40),
	}
	if r.err != nil {
		return Config{}, r.err
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.OrderSource {
	case SourceUpstream, SourceSnapshot:
	default:
		return fmt.Errorf("ORDER_SOURCE: unknown source %q", c.OrderSource)
	}
	switch c.CacheStore {
	case StoreMemory, StoreRedis, StorePostgres:
	default:
		return fmt.Errorf("CACHE_STORE: unknown store %q", c.CacheStore)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit must be positive, got %v rps burst %d", c.RateLimitRPS, c.RateLimitBurst)
	}
	return nil
}

// reader keeps the first parse error so FromEnv can read every field in
// one expression.
type reader struct {
	getenv func(string) string
	err    error
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) int(key string, def int) int {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return n
}

func (r *reader) bool(key string, def bool) bool {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return b
}

func (r *reader) float(key string, def float64) float64 {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return f
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return d
}

func (r *reader) list(key string, def []string) []string {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func (r *reader) fail(key string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%s: %w", key, err)
	}
}

func loadEnv() {
	wd, err := os.Getwd()
	if err != nil {
		log.Printf("Error getting working directory: %v", err)
		return
	}

	possiblePaths := []string{
		filepath.Join(wd, ".env"),
		filepath.Join(wd, "..", ".env"),
		filepath.Join(wd, "..", "..", ".env"),
	}

	for _, envPath := range possiblePaths {
		if err := godotenv.Load(envPath); err == nil {
			log.Printf("Loaded environment variables from %s", envPath)
			return
		}
	}

	for _, envPath := range possiblePaths {
		examplePath := filepath.Join(filepath.Dir(envPath), ".example.env")
		if err := godotenv.Load(examplePath); err == nil {
			log.Printf("Loaded environment variables from %s", examplePath)
			return
		}
	}

	log.Println("No .env or .example.env file found, using environment only")
}
