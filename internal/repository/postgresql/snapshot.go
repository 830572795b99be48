package postgresql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"

	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/buyer-orders/internal/repository"
)

// SnapshotRepo stores order documents in order_snapshots:
//
//	CREATE TABLE order_snapshots (
//	    id         TEXT PRIMARY KEY,
//	    buyer_id   TEXT NOT NULL,
//	    document   JSONB NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX order_snapshots_buyer_idx ON order_snapshots (buyer_id, updated_at DESC);
type SnapshotRepo struct {
	db db.DB
}

func NewSnapshotRepo(db db.DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Upsert replaces the stored document unless the stored one is newer.
func (r *SnapshotRepo) Upsert(ctx context.Context, snap *repository.OrderSnapshot) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO order_snapshots (id, buyer_id, document, updated_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO UPDATE SET
            buyer_id = EXCLUDED.buyer_id,
            document = EXCLUDED.document,
            updated_at = EXCLUDED.updated_at
        WHERE order_snapshots.updated_at <= EXCLUDED.updated_at
    `, snap.ID, snap.BuyerID, snap.Document, snap.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert order snapshot %s: %w", snap.ID, err)
	}
	return nil
}

func (r *SnapshotRepo) GetByID(ctx context.Context, id string) (*repository.OrderSnapshot, error) {
	var snap repository.OrderSnapshot
	err := r.db.Get(ctx, &snap, "SELECT id, buyer_id, document, updated_at FROM order_snapshots WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return &snap, nil
}

func (r *SnapshotRepo) ListByBuyer(ctx context.Context, buyerID string) ([]*repository.OrderSnapshot, error) {
	var snaps []*repository.OrderSnapshot
	err := r.db.Select(ctx, &snaps, `
        SELECT id, buyer_id, document, updated_at
        FROM order_snapshots
        WHERE buyer_id = $1
        ORDER BY updated_at DESC
    `, buyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order snapshots: %w", err)
	}
	return snaps, nil
}

// FetchBuyerOrders serves snapshots in the same raw array form as the
// backend. The token is not needed for local reads.
func (r *SnapshotRepo) FetchBuyerOrders(ctx context.Context, _ string, buyerID string) (json.RawMessage, error) {
	snaps, err := r.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, s := range snaps {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(s.Document)
	}
	buf.WriteByte(']')
	return json.RawMessage(buf.Bytes()), nil
}
