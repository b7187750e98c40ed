package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"classroom-poll-service/internal/app"
	"classroom-poll-service/internal/config"
	"classroom-poll-service/internal/infra/file"
	"classroom-poll-service/internal/infra/memory"
	pgstore "classroom-poll-service/internal/infra/postgres"
	redisstore "classroom-poll-service/internal/infra/redis"
	"classroom-poll-service/internal/logging"
	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

const connectTimeout = 30 * time.Second

// backends holds whatever external clients the config asked for.
type backends struct {
	redis    *redis.Client
	pool     *pgxpool.Pool
	history  app.BlobStore
	presence app.Presence
}

func (b *backends) Close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	return logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
}

// openBackends connects to Redis/Postgres (with retry) and picks the history store.
func openBackends(ctx context.Context, cfg config.Config, logger *slog.Logger) (*backends, error) {
	b := &backends{}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := retry(ctx, logger, "redis", func() error { return client.Ping(ctx).Err() }); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		b.redis = client
		b.presence = redisstore.NewPresence(client, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	} else {
		b.presence = memory.NewPresence()
	}

	if cfg.Postgres.URL != "" {
		var pool *pgxpool.Pool
		err := retry(ctx, logger, "postgres", func() error {
			p, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return err
			}
			pool = p
			return nil
		})
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.pool = pool
	}

	switch cfg.History.Backend {
	case config.BackendRedis:
		b.history = redisstore.NewBlobStore(b.redis, cfg.History.Key)
	case config.BackendPostgres:
		b.history = pgstore.NewBlobStore(b.pool, cfg.History.Key)
	case config.BackendMemory:
		b.history = memory.NewBlobStore()
	default:
		b.history = file.NewBlobStore(cfg.History.Path)
	}
	logger.Info("history backend ready", "backend", cfg.History.Backend)
	return b, nil
}

func retry(ctx context.Context, logger *slog.Logger, name string, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = connectTimeout
	return backoff.RetryNotify(op, backoff.WithContext(policy, ctx), func(err error, next time.Duration) {
		logger.Warn("backend not ready, retrying", "backend", name, "error", err, "next", next)
	})
}
