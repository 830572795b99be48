//go:generate mockgen -source ./consumer.go -destination=./mocks/consumer.go -package=mock_kafka
package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/orders"
	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/repository"
)

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type SnapshotStore interface {
	Upsert(ctx context.Context, snap *repository.OrderSnapshot) error
}

type ReaderConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

func NewReader(cfg ReaderConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
		MaxWait:        3 * time.Second,
	})
}

// SnapshotConsumer materialises the order feed: every message is the full
// current document of one order. Offsets are committed only after the
// snapshot is stored, or when the message can never be stored.
type SnapshotConsumer struct {
	reader     MessageReader
	store      SnapshotStore
	logger     *zap.Logger
	retryDelay time.Duration
	timeNow    func() time.Time
}

func NewSnapshotConsumer(reader MessageReader, store SnapshotStore, logger *zap.Logger) *SnapshotConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotConsumer{
		reader:     reader,
		store:      store,
		logger:     logger,
		retryDelay: time.Second,
		timeNow:    time.Now,
	}
}

// Run consumes until ctx is cancelled, then closes the reader.
func (c *SnapshotConsumer) Run(ctx context.Context) error {
	c.logger.Info("snapshot consumer started")
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Error("failed to close kafka reader", zap.Error(err))
		}
	}()

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("snapshot consumer stopped")
				return nil
			}
			c.logger.Error("fetch message error", zap.Error(err))
			if !c.wait(ctx) {
				return nil
			}
			continue
		}

		if err := c.handle(ctx, m); err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			c.logger.Error("failed to handle message", zap.Int64("offset", m.Offset), zap.Error(err))
			continue
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			metrics.OperationErrorsTotal.WithLabelValues("snapshot_commit").Inc()
			c.logger.Error("commit message failed", zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

func (c *SnapshotConsumer) handle(ctx context.Context, m kafka.Message) error {
	snap, ok := c.snapshotOf(m)
	if !ok {
		metrics.SnapshotMessagesTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	for {
		err := c.store.Upsert(ctx, snap)
		if err == nil {
			metrics.SnapshotMessagesTotal.WithLabelValues("stored").Inc()
			c.logger.Debug("order snapshot stored", zap.String("order_id", snap.ID), zap.String("buyer_id", snap.BuyerID))
			return nil
		}
		metrics.OperationErrorsTotal.WithLabelValues("snapshot_upsert").Inc()
		c.logger.Error("failed to store order snapshot", zap.String("order_id", snap.ID), zap.Error(err))
		if !c.wait(ctx) {
			return ctx.Err()
		}
	}
}

// snapshotOf rejects messages that can never be stored: invalid JSON,
// non-objects, and orders without an id or buyer.
func (c *SnapshotConsumer) snapshotOf(m kafka.Message) (*repository.OrderSnapshot, bool) {
	o, err := orders.Parse(m.Value)
	if err != nil || !o.Valid() {
		c.logger.Warn("invalid order document, skipping message", zap.Int64("offset", m.Offset))
		return nil, false
	}

	id := o.ID()
	if id == "" {
		id = string(m.Key)
	}
	buyerID, ok := o.BuyerID()
	if id == "" || !ok || buyerID == "" {
		c.logger.Warn("order document missing id or buyer, skipping message",
			zap.Int64("offset", m.Offset),
			zap.String("order_id", id))
		return nil, false
	}

	updated := m.Time
	if updated.IsZero() {
		updated = c.timeNow()
	}
	return &repository.OrderSnapshot{
		ID:        id,
		BuyerID:   buyerID,
		Document:  o.Raw(),
		UpdatedAt: updated.UTC(),
	}, true
}

func (c *SnapshotConsumer) wait(ctx context.Context) bool {
	t := time.NewTimer(c.retryDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
