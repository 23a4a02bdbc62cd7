package database

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/statforge/statforge-go/internal/config"
)

// NewRedisClient builds a Redis client from configuration. Connectivity is
// not verified here: the result cache owns the connection lifecycle and
// degrades to misses when the backend is unreachable, so a down Redis must
// not block construction.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
