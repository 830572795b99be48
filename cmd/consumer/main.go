package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/kafka"
	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/logger"
	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/repository/postgresql"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "consumer: config:", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	database, err := db.NewDb(ctx, cfg.DB.DSN())
	if err != nil {
		log.Error("database init error", zap.Error(err))
		os.Exit(1)
	}
	defer database.Close()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		GroupID: cfg.KafkaGroupID,
	})

	log.Info("snapshot consumer starting",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.KafkaTopic),
		zap.String("group_id", cfg.KafkaGroupID))

	consumer := kafka.NewSnapshotConsumer(reader, postgresql.NewSnapshotRepo(database), log.Named("snapshot"))
	if err := consumer.Run(ctx); err != nil {
		log.Error("snapshot consumer failed", zap.Error(err))
	}
}
