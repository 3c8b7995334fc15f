package extractor

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"mediapipe/config"
	"mediapipe/types"
)

// Cache memoizes Analyze results for config.AnalyzeCacheTTL. It is always
// backed by an in-memory map; when REDIS_ADDR is configured it also mirrors
// entries to Redis so a horizontally scaled deployment shares analyze()
// results across instances. Redis holds only this derived, re-derivable
// metadata — never job or session state, which stays process-local and
// out of scope.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry

	redisClient *redis.Client
}

type cacheEntry struct {
	info      *types.MediaInfo
	expiresAt time.Time
}

// NewCache builds a Cache. If config.GetRedisAddr() is set, it also
// connects to Redis; a connection failure falls back to in-memory-only
// operation rather than failing startup.
func NewCache() *Cache {
	c := &Cache{entries: make(map[string]cacheEntry)}

	addr := config.GetRedisAddr()
	if addr == "" {
		return c
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("extractor: redis not available at %s, using in-memory analyze cache: %v", addr, err)
		return c
	}
	log.Printf("extractor: redis analyze cache connected at %s", addr)
	c.redisClient = client
	return c
}

func cacheKey(url string) string {
	sum := sha1.Sum([]byte(url))
	return "analyze:" + hex.EncodeToString(sum[:])
}

// Get returns a cached MediaInfo for url, if present and unexpired.
func (c *Cache) Get(url string) (*types.MediaInfo, bool) {
	c.mu.Lock()
	entry, ok := c.entries[url]
	c.mu.Unlock()
	if ok {
		if time.Now().Before(entry.expiresAt) {
			return entry.info, true
		}
		return nil, false
	}

	if c.redisClient == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	val, err := c.redisClient.Get(ctx, cacheKey(url)).Result()
	if err != nil {
		return nil, false
	}
	var info types.MediaInfo
	if err := json.Unmarshal([]byte(val), &info); err != nil {
		return nil, false
	}
	return &info, true
}

// Set stores info for url with the configured TTL, locally and in Redis
// when available.
func (c *Cache) Set(url string, info *types.MediaInfo) {
	c.mu.Lock()
	c.entries[url] = cacheEntry{info: info, expiresAt: time.Now().Add(config.AnalyzeCacheTTL)}
	c.mu.Unlock()

	if c.redisClient == nil {
		return
	}
	data, err := json.Marshal(info)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.redisClient.Set(ctx, cacheKey(url), data, config.AnalyzeCacheTTL).Err(); err != nil {
		log.Printf("extractor: redis cache write failed for %s: %v", fmt.Sprintf("%.16s...", url), err)
	}
}
