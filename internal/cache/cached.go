package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
)

// KeyFieldsFunc extracts the parameter set that identifies a request for
// caching purposes. Returning a subset of the request's fields narrows the
// key; returning every field makes each distinct request its own entry.
type KeyFieldsFunc[Req any] func(Req) map[string]interface{}

// ComputeFunc is the underlying computation wrapped by CachedComputation.
type ComputeFunc[Req, Res any] func(context.Context, Req) (Res, error)

// Recorder receives per-category hit/miss events, typically the cache
// analytics service.
type Recorder interface {
	RecordHit(category string)
	RecordMiss(category string)
}

// CachedComputation wraps a computation with read-through caching. On a hit
// the computation is never invoked; on a miss it runs and its result is
// stored best-effort for the configured TTL. Concurrent identical misses may
// each run the computation independently; there is no single-flight
// collapsing.
type CachedComputation[Req, Res any] struct {
	cache     *ResultCache
	category  string
	ttl       time.Duration
	keyFields KeyFieldsFunc[Req]
	compute   ComputeFunc[Req, Res]
	logger    *logrus.Logger
	recorder  Recorder
}

// WithRecorder attaches a hit/miss recorder and returns the wrapper.
func (c *CachedComputation[Req, Res]) WithRecorder(r Recorder) *CachedComputation[Req, Res] {
	c.recorder = r
	return c
}

// NewCachedComputation builds a caching wrapper around compute. A zero ttl
// falls back to the cache's configured TTL for the category.
func NewCachedComputation[Req, Res any](
	cache *ResultCache,
	category string,
	ttl time.Duration,
	keyFields KeyFieldsFunc[Req],
	compute ComputeFunc[Req, Res],
	logger *logrus.Logger,
) *CachedComputation[Req, Res] {
	if ttl <= 0 {
		ttl = cache.TTLFor(category)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &CachedComputation[Req, Res]{
		cache:     cache,
		category:  category,
		ttl:       ttl,
		keyFields: keyFields,
		compute:   compute,
		logger:    logger,
	}
}

// Execute returns a cached result when one exists, otherwise runs the
// computation and caches its result. Cache failures of any kind (key
// encoding, backend errors, corrupt entries) fall back to plain computation
// and never surface to the caller.
func (c *CachedComputation[Req, Res]) Execute(ctx context.Context, req Req) (Res, error) {
	key, err := BuildKey(c.category, c.keyFields(req))
	if err != nil {
		c.logger.WithError(err).WithField("category", c.category).
			Warn("Cache key encoding failed, bypassing cache")
		return c.compute(ctx, req)
	}

	if payload, ok := c.cache.Get(ctx, key); ok {
		var res Res
		if err := json.Unmarshal(payload, &res); err == nil {
			if c.recorder != nil {
				c.recorder.RecordHit(c.category)
			}
			return res, nil
		}
		c.logger.WithField("key", key).Warn("Discarding undecodable cache entry")
	}
	if c.recorder != nil {
		c.recorder.RecordMiss(c.category)
	}

	res, err := c.compute(ctx, req)
	if err != nil {
		return res, err
	}

	if payload, err := json.Marshal(res); err == nil {
		c.cache.Set(ctx, key, payload, c.ttl)
	} else {
		c.logger.WithError(err).WithField("category", c.category).
			Warn("Result not serializable, skipping cache write")
	}
	return res, nil
}
