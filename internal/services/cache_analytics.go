package services

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheStats aggregates hit/miss counters for one cache category.
type CacheStats struct {
	Hits        int64     `json:"hits"`
	Misses      int64     `json:"misses"`
	HitRate     float64   `json:"hit_rate"`
	TotalOps    int64     `json:"total_ops"`
	LastUpdated time.Time `json:"last_updated"`
}

// CacheMetrics combines per-category counters with backend-level metrics
// read from Redis.
type CacheMetrics struct {
	Overall          CacheStats            `json:"overall"`
	ByCategory       map[string]CacheStats `json:"by_category"`
	RedisInfo        map[string]string     `json:"redis_info"`
	MemoryUsage      int64                 `json:"memory_usage_bytes"`
	ConnectedClients int64                 `json:"connected_clients"`
	KeyCount         int64                 `json:"key_count"`
}

// CacheAnalyticsService tracks result-cache performance per analysis
// category (forecast, analysis:correlation, ...). Counters live in memory;
// Redis-level metrics are sampled on demand. The service works with a nil
// client, reporting counters only.
type CacheAnalyticsService struct {
	redisClient *redis.Client
	stats       map[string]*CacheStats
	mu          sync.RWMutex
}

// NewCacheAnalyticsService creates a new cache analytics service.
func NewCacheAnalyticsService(redisClient *redis.Client) *CacheAnalyticsService {
	return &CacheAnalyticsService{
		redisClient: redisClient,
		stats:       make(map[string]*CacheStats),
	}
}

// RecordHit records a cache hit for the given category.
func (c *CacheAnalyticsService) RecordHit(category string) {
	c.record(category, true)
}

// RecordMiss records a cache miss for the given category.
func (c *CacheAnalyticsService) RecordMiss(category string) {
	c.record(category, false)
}

func (c *CacheAnalyticsService) record(category string, hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, name := range []string{category, "overall"} {
		stats := c.stats[name]
		if stats == nil {
			stats = &CacheStats{}
			c.stats[name] = stats
		}
		if hit {
			stats.Hits++
		} else {
			stats.Misses++
		}
		stats.TotalOps++
		stats.HitRate = float64(stats.Hits) / float64(stats.TotalOps)
		stats.LastUpdated = time.Now()
	}
}

// GetStats returns the counters for one category, zero-valued when the
// category has seen no traffic.
func (c *CacheAnalyticsService) GetStats(category string) CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if stats, exists := c.stats[category]; exists {
		return *stats
	}
	return CacheStats{}
}

// GetAllStats returns a copy of every category's counters.
func (c *CacheAnalyticsService) GetAllStats() map[string]CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]CacheStats, len(c.stats))
	for category, stats := range c.stats {
		result[category] = *stats
	}
	return result
}

// GetMetrics returns the counters together with backend metrics sampled from
// Redis. Backend sampling is best-effort; with no client the counters alone
// are returned.
func (c *CacheAnalyticsService) GetMetrics(ctx context.Context) (*CacheMetrics, error) {
	allStats := c.GetAllStats()

	metrics := &CacheMetrics{
		ByCategory: allStats,
		RedisInfo:  map[string]string{},
	}
	if overall, exists := allStats["overall"]; exists {
		metrics.Overall = overall
	}

	if c.redisClient == nil {
		return metrics, nil
	}

	info, err := c.redisClient.Info(ctx, "memory", "clients", "keyspace").Result()
	if err != nil {
		return nil, err
	}
	metrics.RedisInfo = parseRedisInfo(info)

	if raw, ok := metrics.RedisInfo["used_memory"]; ok {
		if used, err := strconv.ParseInt(raw, 10, 64); err == nil {
			metrics.MemoryUsage = used
		}
	}
	if raw, ok := metrics.RedisInfo["connected_clients"]; ok {
		if clients, err := strconv.ParseInt(raw, 10, 64); err == nil {
			metrics.ConnectedClients = clients
		}
	}
	if keyCount, err := c.redisClient.DBSize(ctx).Result(); err == nil {
		metrics.KeyCount = keyCount
	}

	return metrics, nil
}

// parseRedisInfo parses Redis INFO output into a flat key/value map.
func parseRedisInfo(info string) map[string]string {
	result := make(map[string]string)
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) == 2 {
			result[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return result
}

// ResetStats clears all counters.
func (c *CacheAnalyticsService) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = make(map[string]*CacheStats)
}

// StartPeriodicReporting snapshots the counters into Redis on an interval so
// they survive restarts. Stops when ctx is done.
func (c *CacheAnalyticsService) StartPeriodicReporting(ctx context.Context, interval time.Duration) {
	if c.redisClient == nil {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.reportStats(ctx)
			}
		}
	}()
}

func (c *CacheAnalyticsService) reportStats(ctx context.Context) {
	statsJSON, err := json.Marshal(c.GetAllStats())
	if err != nil {
		return
	}
	c.redisClient.Set(ctx, "cache:analytics:stats", statsJSON, 24*time.Hour)
}
