package completion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores completion text keyed by content hash so identical prompts do
// not pay for a second model call inside the TTL window.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisCache implements Cache on Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects a completion cache to Redis.
func NewRedisCache(addr, password, prefix string) (*RedisCache, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("completion cache redis addr required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "creatorlab:completion"
	}
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password}),
		prefix: prefix,
	}, nil
}

// Get returns the cached completion for a key, if present.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+":"+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set stores a completion with a TTL.
func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+":"+key, value, ttl).Err()
}

// CacheKey derives a deterministic key from the prompt pair and the
// operation label, so the same logical request always hits the same entry.
func CacheKey(prompt, systemPrompt, operation string) string {
	h := sha256.New()
	h.Write([]byte(operation))
	h.Write([]byte{0})
	h.Write([]byte(systemPrompt))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}
