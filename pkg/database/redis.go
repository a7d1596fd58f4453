package database

import (
	"context"
	"fmt"
	"time"

	"doubtiq-go/internal/config"
	"doubtiq-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

// NewRedis connects to redis and pings it once.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}

	log.Info("Redis client connected")
	return rdb, nil
}
