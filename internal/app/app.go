// Package app wires configuration into the storage, cache and event
// adapters shared by the server and the admin CLI.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rl1809/stockflow/internal/adapter/events"
	"github.com/rl1809/stockflow/internal/adapter/storage"
	"github.com/rl1809/stockflow/internal/config"
	"github.com/rl1809/stockflow/internal/port"
)

// Cache holds reserved stock, carts, sessions and idempotency keys.
type Cache interface {
	port.CacheRepository
	port.CartStore
	port.SessionStore
	Ping(ctx context.Context) error
}

func noopClose() error { return nil }

// OpenStore connects to the configured database and applies the schema.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (*storage.SQLAdapter, func() error, error) {
	dialect, err := storage.ParseDialect(cfg.Driver)
	if err != nil {
		return nil, nil, err
	}
	db, err := storage.OpenSQL(ctx, dialect, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewSQLAdapter(db, dialect)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return store, db.Close, nil
}

// OpenCache connects to Redis, or falls back to an in-process cache when no
// address is configured. The in-process cache only suits a single replica.
func OpenCache(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (Cache, func() error, error) {
	if cfg.Addr == "" {
		log.Warn().Msg("REDIS_ADDR not set, using in-process cache")
		return storage.NewMemoryCache(), noopClose, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	log.Info().Str("addr", cfg.Addr).Msg("connected to redis")
	return storage.NewRedisAdapter(rdb), rdb.Close, nil
}

// OpenPublisher connects to RabbitMQ, or logs events when no URL is
// configured.
func OpenPublisher(cfg config.RabbitConfig, log zerolog.Logger) (port.EventPublisher, func() error, error) {
	if cfg.URL == "" {
		return events.NewLogPublisher(log), noopClose, nil
	}
	publisher, err := events.Connect(cfg.URL)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("exchange", events.ExchangeEvents).Msg("connected to rabbitmq")
	return publisher, publisher.Close, nil
}
