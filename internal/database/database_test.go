package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/betanery/easy-doc-signer-sub000/internal/config"
)

func TestRedisOptions(t *testing.T) {
	opts := RedisOptions(config.RedisConfig{
		Host:         "cache.internal",
		Port:         6380,
		DB:           2,
		PoolSize:     20,
		MinIdleConns: 4,
		DialTimeout:  2000,
		ReadTimeout:  500,
		WriteTimeout: 500,
		PoolTimeout:  1000,
	})

	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 20, opts.PoolSize)
	assert.Equal(t, 4, opts.MinIdleConns)
	assert.Equal(t, 2*time.Second, opts.DialTimeout)
	assert.Equal(t, 500*time.Millisecond, opts.ReadTimeout)
	assert.Equal(t, 500*time.Millisecond, opts.WriteTimeout)
	assert.Equal(t, time.Second, opts.PoolTimeout)
}

func TestNewRedisClientUsesConfiguredPool(t *testing.T) {
	client := NewRedisClient(&config.Config{Redis: config.RedisConfig{Host: "localhost", Port: 6379, PoolSize: 7}})
	defer client.Close()

	assert.Equal(t, 7, client.Options().PoolSize)
}

func TestPoolSettingsFor(t *testing.T) {
	settings := PoolSettingsFor(config.DatabaseConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    40,
		ConnMaxLifetime: 300,
		ConnMaxIdleTime: 60,
	})

	assert.Equal(t, 10, settings.MaxOpenConns)
	assert.Equal(t, 10, settings.MaxIdleConns)
	assert.Equal(t, 5*time.Minute, settings.ConnMaxLifetime)
	assert.Equal(t, time.Minute, settings.ConnMaxIdleTime)

	unbounded := PoolSettingsFor(config.DatabaseConfig{MaxIdleConns: 3})
	assert.Equal(t, 3, unbounded.MaxIdleConns)
}
