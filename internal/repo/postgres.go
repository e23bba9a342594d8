package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/pos-engine/internal/sale"
)

// Postgres is the production store. Reads go through the pool; InTx runs the
// engine's writes in a read-committed transaction and relies on row locks
// taken by LockProduct and LockSale for serialization.
type Postgres struct {
	*Queries
	Pool *pgxpool.Pool
}

var _ sale.Store = (*Postgres)(nil)

// NewPostgres wraps pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{Queries: New(pool), Pool: pool}
}

// InTx implements sale.Store.
func (p *Postgres) InTx(ctx context.Context, fn func(ctx context.Context, tx sale.Tx) error) error {
	tx, err := p.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(ctx, p.Queries.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", classify(err))
	}
	return nil
}
