package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/kafka"
	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/kvstore"
	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/logger"
	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/orders"
	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/repository/postgresql"
	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/respcache"
	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/server"
	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/upstream"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ordersvc:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	policy, err := orders.NewCutoffPolicy(cfg.CutoffDaysBefore, cfg.CutoffHour, cfg.CutoffTimezone)
	if err != nil {
		return fmt.Errorf("cutoff policy: %w", err)
	}
	classifier := orders.NewClassifier(
		orders.WithLogger(log.Named("classifier")),
		orders.WithCutoffPolicy(policy),
	)

	var database *db.Database
	if cfg.CacheStore == config.StorePostgres || cfg.OrderSource == config.SourceSnapshot {
		database, err = db.NewDb(ctx, cfg.DB.DSN())
		if err != nil {
			return err
		}
		defer database.Close()
	}

	var store respcache.KVStore
	switch cfg.CacheStore {
	case config.StoreRedis:
		client, err := kvstore.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer client.Close()
		store = kvstore.NewRedisStore(client)
	case config.StorePostgres:
		store = kvstore.NewPostgresStore(database)
	default:
		store = kvstore.NewMemoryStore()
	}

	cache := respcache.NewLayered(
		respcache.NewMemoryTier(cfg.CacheMemoryTTL),
		respcache.NewPersistedTier(store, cfg.CachePersistTTL, log.Named("cache")),
		log.Named("cache"),
	)

	g, gctx := errgroup.WithContext(ctx)

	var source server.OrderSource
	switch cfg.OrderSource {
	case config.SourceSnapshot:
		repo := postgresql.NewSnapshotRepo(database)
		source = repo
		if cfg.ConsumerEnabled {
			reader := kafka.NewReader(kafka.ReaderConfig{
				Brokers: cfg.KafkaBrokers,
				Topic:   cfg.KafkaTopic,
				GroupID: cfg.KafkaGroupID,
			})
			consumer := kafka.NewSnapshotConsumer(reader, repo, log.Named("snapshot"))
			g.Go(func() error {
				return consumer.Run(gctx)
			})
		}
	default:
		source = upstream.NewClient(upstream.Config{
			BaseURL:    cfg.UpstreamBaseURL,
			Timeout:    cfg.UpstreamTimeout,
			MaxRetries: 2,
		}, log.Named("upstream"))
	}

	srv := server.New(source, cache, classifier, server.Config{
		MemoryTTL:      cfg.CacheMemoryTTL,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}, log)

	g.Go(func() error {
		return srv.Run(gctx, cfg.HTTPPort)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info("ordersvc started",
		zap.String("port", cfg.HTTPPort),
		zap.String("source", cfg.OrderSource),
		zap.String("cache_store", cfg.CacheStore))

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("ordersvc stopped")
	return nil
}
