package repository

import (
	"errors"
	"time"
)

var ErrObjectNotFound = errors.New("not found")

// OrderSnapshot is the latest known document of one order, as pushed by the
// order feed.
type OrderSnapshot struct {
	ID        string    `db:"id"`
	BuyerID   string    `db:"buyer_id"`
	Document  []byte    `db:"document"`
	UpdatedAt time.Time `db:"updated_at"`
}
