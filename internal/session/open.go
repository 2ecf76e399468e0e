package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/luckfunc/stockwatch/internal/config"
)

// Open builds the Store for the configured backend. The returned close
// function releases backend resources and is always non-nil.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Session.Backend {
	case config.BackendFile:
		return New(NewFileStorage(cfg.Session.Dir), log), noop, nil
	case config.BackendMemory:
		return New(NewMemoryStorage(), log), noop, nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Redis.Addr, err)
		}
		return New(NewRedisStorage(client, cfg.Redis.Key), log), client.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}
