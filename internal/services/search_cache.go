package services

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"conversa/internal/models"
)

const searchCacheTTL = 5 * time.Minute

// SearchCache stores recent search responses keyed by normalized query.
type SearchCache interface {
	Get(ctx context.Context, query string) (*models.SearchResponse, bool)
	Set(ctx context.Context, query string, resp *models.SearchResponse)
}

func searchCacheKey(query string) string {
	return "search:" + strings.ToLower(strings.TrimSpace(query))
}

// MemorySearchCache is the in-process fallback when Redis is not configured.
type MemorySearchCache struct {
	cache *gocache.Cache
}

func NewMemorySearchCache() *MemorySearchCache {
	return &MemorySearchCache{cache: gocache.New(searchCacheTTL, 10*time.Minute)}
}

func (c *MemorySearchCache) Get(_ context.Context, query string) (*models.SearchResponse, bool) {
	v, found := c.cache.Get(searchCacheKey(query))
	if !found {
		return nil, false
	}
	resp, ok := v.(*models.SearchResponse)
	return resp, ok
}

func (c *MemorySearchCache) Set(_ context.Context, query string, resp *models.SearchResponse) {
	c.cache.Set(searchCacheKey(query), resp, searchCacheTTL)
}

// RedisSearchCache shares search results across instances. Cache errors are
// logged and treated as misses.
type RedisSearchCache struct {
	client *redis.Client
}

func NewRedisSearchCache(client *redis.Client) *RedisSearchCache {
	return &RedisSearchCache{client: client}
}

func (c *RedisSearchCache) Get(ctx context.Context, query string) (*models.SearchResponse, bool) {
	raw, err := c.client.Get(ctx, searchCacheKey(query)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("⚠️ [SEARCH-CACHE] Redis get failed: %v", err)
		}
		return nil, false
	}
	var resp models.SearchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false
	}
	return &resp, true
}

func (c *RedisSearchCache) Set(ctx context.Context, query string, resp *models.SearchResponse) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, searchCacheKey(query), raw, searchCacheTTL).Err(); err != nil {
		log.Printf("⚠️ [SEARCH-CACHE] Redis set failed: %v", err)
	}
}
