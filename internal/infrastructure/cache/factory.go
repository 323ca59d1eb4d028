package cache

import (
	"context"
	"errors"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Stores holds the idempotency stores used by the service: one for outbox
// event handlers and one for HTTP Idempotency-Key headers.
type Stores struct {
	Events   shared.IdempotencyStore
	Requests shared.IdempotencyStore
	client   *redis.Client
}

// NewStores picks Redis when a host is configured. Without Redis, or when
// Redis is unreachable outside production, both stores fall back to memory.
func NewStores(ctx context.Context, cfg config.RedisConfig, production bool, logger *zap.Logger) (*Stores, error) {
	if cfg.Host == "" {
		logger.Info("redis not configured, using in-memory idempotency stores")
		return inMemoryStores(), nil
	}

	client, err := NewRedisClient(ctx, cfg)
	if err != nil {
		if production {
			return nil, err
		}
		logger.Warn("redis unavailable, falling back to in-memory idempotency stores",
			zap.String("addr", cfg.Addr()),
			zap.Error(err),
		)
		return inMemoryStores(), nil
	}

	logger.Info("using redis idempotency stores", zap.String("addr", cfg.Addr()))
	return &Stores{
		Events:   NewRedisIdempotencyStore(client, EventKeyPrefix),
		Requests: NewRedisIdempotencyStore(client, RequestKeyPrefix),
		client:   client,
	}, nil
}

func inMemoryStores() *Stores {
	return &Stores{
		Events:   NewInMemoryIdempotencyStore(),
		Requests: NewInMemoryIdempotencyStore(),
	}
}

// Close releases the stores and the shared Redis client
func (s *Stores) Close() error {
	errs := []error{s.Events.Close(), s.Requests.Close()}
	if s.client != nil {
		errs = append(errs, s.client.Close())
	}
	return errors.Join(errs...)
}
