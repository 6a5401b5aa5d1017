package enrich

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/FAbreu6/TP3-IS/pkg/models"
)

const cacheKey = "enrichment_cache"

// CacheStore persists enrichment snapshots so a restart starts warm.
type CacheStore interface {
	LoadAll(ctx context.Context) (map[string]models.Enrichment, error)
	Save(ctx context.Context, symbol string, enr models.Enrichment) error
}

var _ CacheStore = (*RedisCache)(nil)

// RedisCache keeps enrichment entries in a Redis hash keyed by symbol.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) LoadAll(ctx context.Context) (map[string]models.Enrichment, error) {
	entries, err := r.client.HGetAll(ctx, cacheKey).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.Enrichment, len(entries))
	for symbol, raw := range entries {
		var enr models.Enrichment
		if err := json.Unmarshal([]byte(raw), &enr); err != nil {
			continue
		}
		out[symbol] = enr
	}
	return out, nil
}

func (r *RedisCache) Save(ctx context.Context, symbol string, enr models.Enrichment) error {
	raw, err := json.Marshal(enr)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, cacheKey, symbol, raw).Err()
}
