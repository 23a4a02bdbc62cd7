package database

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statforge/statforge-go/internal/config"
)

func TestPostgresDB_Close_NilPool(t *testing.T) {
	db := &PostgresDB{Pool: nil}

	assert.NotPanics(t, func() {
		db.Close()
	})
}

func TestNewPostgresConnection_InvalidURL(t *testing.T) {
	cfg := config.DatabaseConfig{
		DatabaseURL: "invalid-url",
	}

	db, err := NewPostgresConnection(cfg)
	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "failed to parse database config")
}

func TestNewPostgresConnection_UnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network dial in short mode")
	}

	cfg := config.DatabaseConfig{
		Host:         "127.0.0.1",
		Port:         54329,
		User:         "test",
		Password:     "test",
		DBName:       "test",
		SSLMode:      "disable",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		// Invalid durations must not fail config parsing.
		ConnMaxLifetime: "invalid-duration",
		ConnMaxIdleTime: "invalid-duration",
	}

	db, err := NewPostgresConnection(cfg)
	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "failed to ping database")
}

func TestNewRedisClient_ConnectsToBackend(t *testing.T) {
	mr := miniredis.RunT(t)

	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	client := NewRedisClient(config.RedisConfig{
		Host: mr.Host(),
		Port: port,
	})
	require.NotNil(t, client)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, client.Ping(ctx).Err())
}

func TestNewRedisClient_DownBackendStillConstructs(t *testing.T) {
	client := NewRedisClient(config.RedisConfig{
		Host: "127.0.0.1",
		Port: 63999,
	})
	require.NotNil(t, client)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, client.Ping(ctx).Err())
}
