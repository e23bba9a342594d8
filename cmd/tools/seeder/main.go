package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pos-engine/internal/app"
	"github.com/noah-isme/pos-engine/internal/config"
	"github.com/noah-isme/pos-engine/internal/obs"
	"github.com/noah-isme/pos-engine/internal/repo"
	"github.com/noah-isme/pos-engine/internal/repo/memory"
)

func main() {
	cfg := config.MustLoad()
	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("tool", "seeder").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	m, err := repo.NewMigrate(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("init migrations")
	}
	if err := app.RunMigrations(m); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}
	_, _ = m.Close()

	pool, err := app.OpenPool(ctx, cfg.DatabaseURL, 2)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer pool.Close()

	if err := seed(ctx, pool, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed")
	}
	logger.Info().Msg("seeding completed")
}

func seed(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for _, pm := range memory.DefaultPaymentMethods() {
			if _, err := tx.Exec(ctx, `INSERT INTO payment_methods (id, code, name, is_active)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, is_active = EXCLUDED.is_active`,
				pm.ID, pm.Code, pm.Name, pm.Active); err != nil {
				return err
			}
		}
		logger.Info().Int("count", len(memory.DefaultPaymentMethods())).Msg("payment methods seeded")

		products := memory.DemoProducts()
		for _, p := range products {
			if _, err := tx.Exec(ctx, `INSERT INTO products (id, name, barcode, price, is_taxable, tax_rate, stock_quantity)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price,
  is_taxable = EXCLUDED.is_taxable, tax_rate = EXCLUDED.tax_rate, updated_at = now()`,
				p.ID, p.Name, p.Barcode, p.Price, p.Taxable, p.TaxRate, p.Stock); err != nil {
				return err
			}
		}
		logger.Info().Int("count", len(products)).Msg("products seeded")
		return nil
	})
}
