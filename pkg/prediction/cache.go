package prediction

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stockcast/platform/pkg/common/logger"
)

// Cache keeps recent prediction results in Redis. A nil *Cache is a
// no-op, so callers never branch on whether caching is configured.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(modelID, dataFileID, startDate string) string {
	return fmt.Sprintf("pred:%s:%s:%s", modelID, dataFileID, startDate)
}

func (c *Cache) Get(ctx context.Context, modelID, dataFileID, startDate string) (*Result, bool) {
	if c == nil {
		return nil, false
	}
	payload, err := c.client.Get(ctx, cacheKey(modelID, dataFileID, startDate)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Log.WithError(err).Warn("prediction cache read failed")
		}
		return nil, false
	}
	var result Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, false
	}
	return &result, true
}

func (c *Cache) Put(ctx context.Context, modelID, dataFileID, startDate string, result *Result) {
	if c == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(modelID, dataFileID, startDate), payload, c.ttl).Err(); err != nil {
		logger.Log.WithError(err).Warn("prediction cache write failed")
	}
}
