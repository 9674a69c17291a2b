// Package cache stores Stage A analysis results so repeated prompts in the same
// mode skip the upstream text model. It supports an in-memory backend for a
// single instance and a Redis backend shared across instances.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felipepmaragno/velvet-protocol/internal/domain"
)

// Cache defines the interface for analysis caching backends.
type Cache interface {
	Get(ctx context.Context, key string) (*domain.EnrichedPrompt, bool)
	Set(ctx context.Context, key string, ep *domain.EnrichedPrompt, ttl time.Duration) error
}

// Key hashes the mode and the trimmed prompt. Fallback results must never be
// stored under it.
func Key(mode domain.Mode, rawPrompt string) string {
	data, _ := json.Marshal(struct {
		Mode   domain.Mode `json:"mode"`
		Prompt string      `json:"prompt"`
	}{
		Mode:   mode,
		Prompt: strings.TrimSpace(rawPrompt),
	})

	hash := sha256.Sum256(data)
	return "velvet:analysis:" + hex.EncodeToString(hash[:])
}

type InMemoryCache struct {
	mu    sync.RWMutex
	items map[string]*cacheItem

	stop chan struct{}
	once sync.Once
}

type cacheItem struct {
	prompt    domain.EnrichedPrompt
	expiresAt time.Time
}

func NewInMemoryCache() *InMemoryCache {
	c := &InMemoryCache{
		items: make(map[string]*cacheItem),
		stop:  make(chan struct{}),
	}
	go c.cleanup()
	return c
}

func (c *InMemoryCache) Get(ctx context.Context, key string) (*domain.EnrichedPrompt, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[key]
	if !ok {
		return nil, false
	}

	if time.Now().After(item.expiresAt) {
		return nil, false
	}

	ep := item.prompt
	return &ep, true
}

func (c *InMemoryCache) Set(ctx context.Context, key string, ep *domain.EnrichedPrompt, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &cacheItem{
		prompt:    *ep,
		expiresAt: time.Now().Add(ttl),
	}

	return nil
}

func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *InMemoryCache) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}

func (c *InMemoryCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired(time.Now())
		}
	}
}

func (c *InMemoryCache) evictExpired(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, key)
		}
	}
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (*domain.EnrichedPrompt, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}

	var ep domain.EnrichedPrompt
	if err := json.Unmarshal(data, &ep); err != nil {
		return nil, false
	}

	return &ep, true
}

func (c *RedisCache) Set(ctx context.Context, key string, ep *domain.EnrichedPrompt, ttl time.Duration) error {
	data, err := json.Marshal(ep)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

// Ping satisfies the readiness checker used by the health endpoints.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
