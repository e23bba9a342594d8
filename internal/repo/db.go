// Package repo implements the engine, report and payment stores on
// PostgreSQL through pgx.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/pos-engine/internal/sale"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"

	saleNumberConstraint = "sales_sale_number_key"
)

var (
	// ErrDuplicateSaleNumber indicates the unique sale number constraint fired.
	ErrDuplicateSaleNumber = errors.New("duplicate sale number")
	// ErrReferenceMissing indicates a foreign key constraint fired.
	ErrReferenceMissing = errors.New("referenced row missing")
	// ErrConstraint indicates a check constraint fired.
	ErrConstraint = errors.New("constraint violated")
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Queries runs the store's SQL against a pool or a transaction.
type Queries struct {
	db DBTX
}

// New wraps db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a copy of q bound to tx.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// classify maps driver errors onto the package and engine sentinels, keeping
// the original error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %w", sale.ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			if pgErr.ConstraintName == saleNumberConstraint {
				return fmt.Errorf("%w: %w", ErrDuplicateSaleNumber, err)
			}
		case pgForeignKeyViolation:
			return fmt.Errorf("%w (%s): %w", ErrReferenceMissing, pgErr.ConstraintName, err)
		case pgCheckViolation:
			return fmt.Errorf("%w (%s): %w", ErrConstraint, pgErr.ConstraintName, err)
		}
	}
	return err
}

func uuidArg(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: *id, Valid: true}
}

func uuidPtr(v pgtype.UUID) *uuid.UUID {
	if !v.Valid {
		return nil
	}
	id := uuid.UUID(v.Bytes)
	return &id
}

func timeArg(t *time.Time) pgtype.Timestamptz {
	if t == nil || t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func timePtr(v pgtype.Timestamptz) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

// windowArgs returns the three leading parameters used by windowClause.
func windowArgs(from, to time.Time, includeVoided bool) []any {
	return []any{timeArg(&from), timeArg(&to), includeVoided}
}

// windowClause filters alias s on the half-open window bound to $1 and $2,
// with $3 admitting voided sales.
const windowClause = `($1::timestamptz IS NULL OR s.created_at >= $1)
  AND ($2::timestamptz IS NULL OR s.created_at < $2)
  AND ($3::boolean OR NOT s.is_voided)`
