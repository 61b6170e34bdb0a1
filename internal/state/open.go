package state

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/OnlyOnCloud/TallySyncService/internal/config"
)

const (
	DefaultDocumentID = "default"
	DefaultRedisKey   = "tallysync:state"
)

// Open builds the Store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StateConfig, logger *slog.Logger) (*Store, error) {
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s state backend: %w", cfg.Backend, err)
	}
	return NewStore(backend, logger), nil
}

func openBackend(ctx context.Context, cfg config.StateConfig) (Backend, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "file":
		return NewFileBackend(cfg.File), nil
	case "postgres":
		return OpenPostgres(ctx, cfg.DatabaseURL, cfg.DocumentID, PoolConfig{
			MaxConns:        int32(cfg.MaxConns),
			MinConns:        int32(cfg.MinConns),
			MaxConnLifetime: cfg.MaxConnLifetime,
			MaxConnIdleTime: cfg.MaxConnIdleTime,
		})
	case "sqlite":
		return OpenSQLite(ctx, cfg.SQLitePath, cfg.DocumentID)
	case "redis":
		return OpenRedis(ctx, &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.RedisKey)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
