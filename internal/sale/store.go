package sale

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by stores when a sale, product or payment
	// method does not exist.
	ErrNotFound = errors.New("sale: not found")
)

// Store is the unit-of-work boundary of the engine. InTx runs fn inside one
// database transaction: it commits when fn returns nil and rolls back
// otherwise, so no partial sale, item or stock change can survive a failure.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	GetSale(ctx context.Context, id uuid.UUID) (Sale, error)
	ListSales(ctx context.Context, filter ListFilter) ([]Sale, int, error)
}

// Tx is the set of writes available inside a transaction. Lock methods hold
// a row lock until the transaction ends.
type Tx interface {
	LockProduct(ctx context.Context, id uuid.UUID) (Product, error)
	SetProductStock(ctx context.Context, id uuid.UUID, stock int64) error
	PaymentMethodExists(ctx context.Context, id uuid.UUID) (bool, error)
	InsertSale(ctx context.Context, s Sale) error
	InsertItems(ctx context.Context, items []Item) error
	LockSale(ctx context.Context, id uuid.UUID) (Sale, error)
	SetVoided(ctx context.Context, id uuid.UUID, voidedAt *time.Time) error
	ListItems(ctx context.Context, saleID uuid.UUID) ([]Item, error)
}
