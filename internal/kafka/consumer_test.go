package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	mock_kafka "gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/kafka/mocks"
	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/repository"
)

func newTestConsumer(t *testing.T) (*SnapshotConsumer, *mock_kafka.MockMessageReader, *mock_kafka.MockSnapshotStore) {
	t.Helper()
	ctrl := gomock.NewController(t)
	reader := mock_kafka.NewMockMessageReader(ctrl)
	store := mock_kafka.NewMockSnapshotStore(ctrl)
	c := NewSnapshotConsumer(reader, store, nil)
	c.retryDelay = time.Millisecond
	return c, reader, store
}

// stopAfter makes the next fetch cancel the run.
func stopAfter(reader *mock_kafka.MockMessageReader, cancel context.CancelFunc) *gomock.Call {
	return reader.EXPECT().FetchMessage(gomock.Any()).DoAndReturn(func(ctx context.Context) (kafka.Message, error) {
		cancel()
		return kafka.Message{}, context.Canceled
	})
}

func TestSnapshotConsumer_StoresAndCommits(t *testing.T) {
	t.Parallel()
	c, reader, store := newTestConsumer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sent := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	msg := kafka.Message{
		Key:    []byte("o1"),
		Value:  []byte(`{"id":"o1","buyerId":"b1","status":"paid"}`),
		Offset: 7,
		Time:   sent,
	}

	gomock.InOrder(
		reader.EXPECT().FetchMessage(gomock.Any()).Return(msg, nil),
		store.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, snap *repository.OrderSnapshot) error {
			assert.Equal(t, "o1", snap.ID)
			assert.Equal(t, "b1", snap.BuyerID)
			assert.JSONEq(t, string(msg.Value), string(snap.Document))
			assert.True(t, sent.Equal(snap.UpdatedAt))
			return nil
		}),
		reader.EXPECT().CommitMessages(gomock.Any(), msg).Return(nil),
		stopAfter(reader, cancel),
		reader.EXPECT().Close().Return(nil),
	)

	require.NoError(t, c.Run(ctx))
}

func TestSnapshotConsumer_IDFromMessageKey(t *testing.T) {
	t.Parallel()
	c, reader, store := newTestConsumer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := kafka.Message{Key: []byte("o9"), Value: []byte(`{"buyerInfo":{"uid":"b2"}}`)}

	gomock.InOrder(
		reader.EXPECT().FetchMessage(gomock.Any()).Return(msg, nil),
		store.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, snap *repository.OrderSnapshot) error {
			assert.Equal(t, "o9", snap.ID)
			assert.Equal(t, "b2", snap.BuyerID)
			assert.False(t, snap.UpdatedAt.IsZero())
			return nil
		}),
		reader.EXPECT().CommitMessages(gomock.Any(), msg).Return(nil),
		stopAfter(reader, cancel),
		reader.EXPECT().Close().Return(nil),
	)

	require.NoError(t, c.Run(ctx))
}

func TestSnapshotConsumer_SkipsUnusableMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "invalid json", key: "o1", value: `{"id":`},
		{name: "not an object", key: "o1", value: `["o1"]`},
		{name: "no buyer", key: "o1", value: `{"id":"o1","status":"paid"}`},
		{name: "numeric buyer", key: "o1", value: `{"id":"o1","buyerId":42}`},
		{name: "no id", value: `{"buyerId":"b1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, reader, _ := newTestConsumer(t)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			msg := kafka.Message{Key: []byte(tt.key), Value: []byte(tt.value)}
			gomock.InOrder(
				reader.EXPECT().FetchMessage(gomock.Any()).Return(msg, nil),
				reader.EXPECT().CommitMessages(gomock.Any(), msg).Return(nil),
				stopAfter(reader, cancel),
				reader.EXPECT().Close().Return(nil),
			)

			require.NoError(t, c.Run(ctx))
		})
	}
}

func TestSnapshotConsumer_RetriesStoreWithoutCommit(t *testing.T) {
	t.Parallel()
	c, reader, store := newTestConsumer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := kafka.Message{Value: []byte(`{"id":"o1","buyerId":"b1"}`)}

	gomock.InOrder(
		reader.EXPECT().FetchMessage(gomock.Any()).Return(msg, nil),
		store.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(errors.New("connection reset")).Times(2),
		store.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(nil),
		reader.EXPECT().CommitMessages(gomock.Any(), msg).Return(nil),
		stopAfter(reader, cancel),
		reader.EXPECT().Close().Return(nil),
	)

	require.NoError(t, c.Run(ctx))
}

func TestSnapshotConsumer_StopsWhileStoreIsDown(t *testing.T) {
	t.Parallel()
	c, reader, store := newTestConsumer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := kafka.Message{Value: []byte(`{"id":"o1","buyerId":"b1"}`)}

	gomock.InOrder(
		reader.EXPECT().FetchMessage(gomock.Any()).Return(msg, nil),
		store.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, *repository.OrderSnapshot) error {
			cancel()
			return errors.New("database is down")
		}),
		reader.EXPECT().Close().Return(nil),
	)

	require.NoError(t, c.Run(ctx))
}

func TestSnapshotConsumer_FetchErrorBacksOff(t *testing.T) {
	t.Parallel()
	c, reader, _ := newTestConsumer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gomock.InOrder(
		reader.EXPECT().FetchMessage(gomock.Any()).Return(kafka.Message{}, errors.New("broker unavailable")),
		stopAfter(reader, cancel),
		reader.EXPECT().Close().Return(nil),
	)

	require.NoError(t, c.Run(ctx))
}
