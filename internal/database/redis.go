package database

import (
	"fmt"
	"time"

	"github.com/betanery/easy-doc-signer-sub000/internal/config"

	"github.com/go-redis/redis/v8"
)

// RedisOptions maps the redis settings onto client options. The pool is
// shared by idempotency claims on the request path and the reconciliation
// workers, whose BRPOPLPUSH holds a connection for up to a poll interval.
func RedisOptions(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  milliseconds(cfg.DialTimeout),
		ReadTimeout:  milliseconds(cfg.ReadTimeout),
		WriteTimeout: milliseconds(cfg.WriteTimeout),
		PoolTimeout:  milliseconds(cfg.PoolTimeout),
	}
}

// NewRedisClient creates the Redis client used for idempotency keys and the
// reconciliation job queue
func NewRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(RedisOptions(cfg.Redis))
}

// milliseconds converts a config value; zero keeps the client default
func milliseconds(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
