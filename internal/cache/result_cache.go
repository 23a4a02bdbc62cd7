package cache

import (
	"bufio"
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/statforge/statforge-go/internal/utils"
)

// Cache categories and their default TTLs. Forecasts are cheaper to recompute
// and go stale faster than general analysis results, so they expire sooner.
const (
	CategoryAnalysis = "analysis"
	CategoryForecast = "forecast"

	DefaultAnalysisTTL = time.Hour
	DefaultForecastTTL = 30 * time.Minute

	defaultOpTimeout = 2 * time.Second
)

// Options tunes cache TTLs and the per-operation timeout. Zero fields fall
// back to the package defaults above.
type Options struct {
	AnalysisTTL time.Duration
	ForecastTTL time.Duration
	OpTimeout   time.Duration
}

// ResultCacheStats is a point-in-time snapshot of cache state and counters.
type ResultCacheStats struct {
	Connected  bool  `json:"connected"`
	UsedMemory int64 `json:"used_memory_bytes"`
	TotalKeys  int64 `json:"total_keys"`
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Sets       int64 `json:"sets"`
	Errors     int64 `json:"errors"`
}

// ResultCache stores serialized computation results in Redis under
// content-addressable keys. It treats the backend as an optimization only:
// when Redis is nil, disconnected, or erroring, every operation degrades to
// a miss or no-op rather than failing the surrounding request.
type ResultCache struct {
	client      *redis.Client
	logger      *logrus.Logger
	opTimeout   time.Duration
	analysisTTL time.Duration
	forecastTTL time.Duration

	mu        sync.RWMutex
	connected bool
	hits      int64
	misses    int64
	sets      int64
	errors    int64
}

// NewResultCache creates a result cache over the given Redis client. A nil
// client is valid and yields a cache that always misses.
func NewResultCache(client *redis.Client, opts Options, logger *logrus.Logger) *ResultCache {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.AnalysisTTL <= 0 {
		opts.AnalysisTTL = DefaultAnalysisTTL
	}
	if opts.ForecastTTL <= 0 {
		opts.ForecastTTL = DefaultForecastTTL
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = defaultOpTimeout
	}
	return &ResultCache{
		client:      client,
		logger:      logger,
		opTimeout:   opts.OpTimeout,
		analysisTTL: opts.AnalysisTTL,
		forecastTTL: opts.ForecastTTL,
	}
}

// TTLFor returns the configured TTL for a category prefix. Unknown categories
// fall back to the analysis TTL.
func (c *ResultCache) TTLFor(category string) time.Duration {
	if strings.HasPrefix(category, CategoryForecast) {
		return c.forecastTTL
	}
	return c.analysisTTL
}

// Connect verifies the Redis connection. Idempotent; safe to call on an
// already-connected cache. A nil client leaves the cache in degraded mode
// without error.
func (c *ResultCache) Connect(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		c.logger.WithError(err).Warn("Result cache unreachable, continuing without caching")
		c.setConnected(false)
		return nil
	}
	c.setConnected(true)
	c.logger.Info("Result cache connected")
	return nil
}

// Disconnect closes the Redis connection. Idempotent.
func (c *ResultCache) Disconnect() {
	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.mu.Unlock()

	if c.client != nil && wasConnected {
		if err := c.client.Close(); err != nil {
			c.logger.WithError(err).Warn("Error closing result cache connection")
		}
	}
}

// Get returns the payload stored under key, or (nil, false) on miss, expiry,
// or any backend error.
func (c *ResultCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if !c.available() {
		c.recordMiss()
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.recordMiss()
		return nil, false
	}
	if err != nil {
		c.logger.WithError(utils.NewCacheUnavailableError(err)).WithField("key", key).
			Warn("Result cache read failed")
		c.recordError()
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	return data, true
}

// Set stores payload under key with the given TTL, overwriting any existing
// entry. Write failures are logged and swallowed.
func (c *ResultCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	if !c.available() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		c.logger.WithError(utils.NewCacheUnavailableError(err)).WithField("key", key).
			Warn("Result cache write failed")
		c.recordError()
		return
	}
	c.mu.Lock()
	c.sets++
	c.mu.Unlock()
}

// InvalidatePattern deletes all keys matching a glob-like pattern and returns
// the number removed. Uses SCAN rather than KEYS to avoid blocking the server.
func (c *ResultCache) InvalidatePattern(ctx context.Context, pattern string) (int64, error) {
	if !c.available() {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	var keys []string
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.recordError()
		return 0, utils.NewCacheUnavailableError(err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	deleted, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		c.recordError()
		return 0, utils.NewCacheUnavailableError(err)
	}
	c.logger.WithFields(logrus.Fields{
		"pattern": pattern,
		"deleted": deleted,
	}).Info("Invalidated cached results")
	return deleted, nil
}

// Stats returns a best-effort snapshot of backend usage and local counters.
func (c *ResultCache) Stats(ctx context.Context) ResultCacheStats {
	c.mu.RLock()
	stats := ResultCacheStats{
		Connected: c.connected,
		Hits:      c.hits,
		Misses:    c.misses,
		Sets:      c.sets,
		Errors:    c.errors,
	}
	c.mu.RUnlock()

	if !stats.Connected || c.client == nil {
		return stats
	}
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if total, err := c.client.DBSize(ctx).Result(); err == nil {
		stats.TotalKeys = total
	}
	if info, err := c.client.Info(ctx, "memory").Result(); err == nil {
		stats.UsedMemory = parseUsedMemory(info)
	}
	return stats
}

// HealthCheck reports whether the backend currently answers a ping.
func (c *ResultCache) HealthCheck(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

func (c *ResultCache) available() bool {
	if c.client == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *ResultCache) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *ResultCache) recordHit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *ResultCache) recordMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

func (c *ResultCache) recordError() {
	c.mu.Lock()
	c.errors++
	c.mu.Unlock()
}

// parseUsedMemory extracts the used_memory value from an INFO memory reply.
func parseUsedMemory(info string) int64 {
	scanner := bufio.NewScanner(strings.NewReader(info))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "used_memory:") {
			v, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, "used_memory:")), 10, 64)
			if err == nil {
				return v
			}
		}
	}
	return 0
}
