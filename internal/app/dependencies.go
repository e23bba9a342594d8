// Package app assembles the shared infrastructure the API runs on.
package app

import (
	"context"
	"errors"
	"fmt"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pos-engine/internal/analytics"
	"github.com/noah-isme/pos-engine/internal/config"
	"github.com/noah-isme/pos-engine/internal/obs"
	"github.com/noah-isme/pos-engine/internal/payment"
	"github.com/noah-isme/pos-engine/internal/reconcile"
	"github.com/noah-isme/pos-engine/internal/repo"
	"github.com/noah-isme/pos-engine/internal/repo/memory"
	"github.com/noah-isme/pos-engine/internal/sale"
)

// Store is everything the API reads and writes through.
type Store interface {
	sale.Store
	reconcile.Querier
	payment.Querier
	analytics.Querier
}

// Dependencies enumerates core services shared across modules.
type Dependencies struct {
	DB    *pgxpool.Pool
	Redis *redis.Client
	Store Store
}

// Open connects the configured store and Redis. DB is nil for the memory
// driver and Redis is nil when REDIS_URL is unset.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{}

	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		st := memory.New()
		st.SeedDemo()
		deps.Store = st
		logger.Warn().Msg("using in-memory store; data is lost on restart")
	default:
		pool, err := OpenPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return nil, err
		}
		deps.DB = pool
		deps.Store = repo.NewPostgres(pool)
		if cfg.DBAutoMigrate {
			m, err := repo.NewMigrate(cfg.DatabaseURL)
			if err != nil {
				deps.Close()
				return nil, err
			}
			err = RunMigrations(m)
			srcErr, dbErr := m.Close()
			if err = errors.Join(err, srcErr, dbErr); err != nil {
				deps.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
			logger.Info().Msg("migrations applied")
		}
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		if err := redisotel.InstrumentTracing(rdb); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			deps.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		deps.Redis = rdb
	}
	return deps, nil
}

// OpenPool connects a traced pgx pool and verifies it with a ping.
func OpenPool(ctx context.Context, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "pos-engine"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Close releases the pool and the Redis client.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}

// RunMigrations applies all pending migrations.
func RunMigrations(m *migrate.Migrate) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
