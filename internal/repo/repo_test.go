package repo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pos-engine/internal/sale"
)

func TestClassifyNoRows(t *testing.T) {
	err := classify(fmt.Errorf("scan: %w", pgx.ErrNoRows))
	require.ErrorIs(t, err, sale.ErrNotFound)
	require.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestClassifyConstraintViolations(t *testing.T) {
	dup := classify(&pgconn.PgError{Code: pgUniqueViolation, ConstraintName: saleNumberConstraint})
	require.ErrorIs(t, dup, ErrDuplicateSaleNumber)

	otherUnique := &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "products_barcode_key"}
	require.Same(t, error(otherUnique), classify(otherUnique))

	fk := classify(&pgconn.PgError{Code: pgForeignKeyViolation, ConstraintName: "sales_payment_method_id_fkey"})
	require.ErrorIs(t, fk, ErrReferenceMissing)
	require.Contains(t, fk.Error(), "sales_payment_method_id_fkey")

	check := classify(&pgconn.PgError{Code: pgCheckViolation, ConstraintName: "sales_total_check"})
	require.ErrorIs(t, check, ErrConstraint)

	var pgErr *pgconn.PgError
	require.True(t, errors.As(check, &pgErr))
	require.Nil(t, classify(nil))
}

func TestNullableHelpers(t *testing.T) {
	require.False(t, uuidArg(nil).Valid)
	id := uuid.New()
	arg := uuidArg(&id)
	require.True(t, arg.Valid)
	require.Equal(t, id, *uuidPtr(arg))
	require.Nil(t, uuidPtr(uuidArg(nil)))

	require.False(t, timeArg(nil).Valid)
	require.False(t, timeArg(&time.Time{}).Valid)
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.FixedZone("WIB", 7*3600))
	ts := timeArg(&at)
	require.True(t, ts.Valid)
	require.Equal(t, time.UTC, timePtr(ts).Location())
	require.True(t, at.Equal(*timePtr(ts)))
}

func TestWindowArgsLeaveOpenBoundsNull(t *testing.T) {
	args := windowArgs(time.Time{}, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), true)
	require.Len(t, args, 3)
	require.False(t, args[0].(pgtype.Timestamptz).Valid)
	require.True(t, args[1].(pgtype.Timestamptz).Valid)
	require.Equal(t, true, args[2])
}

type execStub struct {
	tag  string
	err  error
	sqls []string
}

func (s *execStub) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	s.sqls = append(s.sqls, sql)
	return pgconn.NewCommandTag(s.tag), s.err
}

func (s *execStub) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (s *execStub) QueryRow(context.Context, string, ...any) pgx.Row {
	return errRow{err: pgx.ErrNoRows}
}

func (s *execStub) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("unexpected batch")
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

func TestSetProductStockMissingRow(t *testing.T) {
	q := New(&execStub{tag: "UPDATE 0"})
	err := q.SetProductStock(context.Background(), uuid.New(), 5)
	require.ErrorIs(t, err, sale.ErrNotFound)

	q = New(&execStub{tag: "UPDATE 1"})
	require.NoError(t, q.SetProductStock(context.Background(), uuid.New(), 5))
}

func TestSetVoidedMissingRow(t *testing.T) {
	now := time.Now()
	err := New(&execStub{tag: "UPDATE 0"}).SetVoided(context.Background(), uuid.New(), &now)
	require.ErrorIs(t, err, sale.ErrNotFound)
}

func TestInsertSaleClassifiesDuplicateNumber(t *testing.T) {
	stub := &execStub{err: &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: saleNumberConstraint}}
	err := New(stub).InsertSale(context.Background(), sale.Sale{ID: uuid.New(), Number: "SALE-1"})
	require.ErrorIs(t, err, ErrDuplicateSaleNumber)
	require.Len(t, stub.sqls, 1)
}

func TestLockMissingRowsMapToNotFound(t *testing.T) {
	q := New(&execStub{})
	_, err := q.LockProduct(context.Background(), uuid.New())
	require.ErrorIs(t, err, sale.ErrNotFound)
	_, err = q.LockSale(context.Background(), uuid.New())
	require.ErrorIs(t, err, sale.ErrNotFound)
	_, err = q.GetSale(context.Background(), uuid.New())
	require.ErrorIs(t, err, sale.ErrNotFound)
}

func TestInsertItemsEmptyIsNoop(t *testing.T) {
	require.NoError(t, New(&execStub{}).InsertItems(context.Background(), nil))
}

func TestMigrationURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@db:5432/pos?sslmode=disable", MigrationURL("postgres://u:p@db:5432/pos?sslmode=disable"))
	require.Equal(t, "pgx5://db/pos", MigrationURL("postgresql://db/pos"))
	require.Equal(t, "pgx5://db/pos", MigrationURL("pgx5://db/pos"))
}

func TestEmbeddedMigrationsPaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)
	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
			_, err := fs.Stat(migrationsFS, "migrations/"+strings.TrimSuffix(e.Name(), ".up.sql")+".down.sql")
			require.NoError(t, err, "missing down migration for %s", e.Name())
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	require.Positive(t, ups)
	require.Equal(t, ups, downs)

	schema, err := fs.ReadFile(migrationsFS, "migrations/000001_init.up.sql")
	require.NoError(t, err)
	require.Contains(t, string(schema), "CONSTRAINT "+saleNumberConstraint+" UNIQUE")
}
