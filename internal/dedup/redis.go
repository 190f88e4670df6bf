package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const seenKeyPrefix = "cns:seen:"

// Кэш просмотренных URL в Redis. Позволяет не ходить в БД и на сайт
// за статьями, которые уже сохранены
type RedisSeenCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSeenCache(ctx context.Context, addr string, ttl time.Duration) (*RedisSeenCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisSeenCache{client: client, ttl: ttl}, nil
}

func (c *RedisSeenCache) Seen(ctx context.Context, url string) (bool, error) {
	n, err := c.client.Exists(ctx, seenKey(url)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check seen url: %w", err)
	}
	return n > 0, nil
}

func (c *RedisSeenCache) Remember(ctx context.Context, url string) error {
	if err := c.client.Set(ctx, seenKey(url), 1, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to remember url: %w", err)
	}
	return nil
}

func (c *RedisSeenCache) Close() error {
	return c.client.Close()
}

func seenKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return seenKeyPrefix + hex.EncodeToString(sum[:])
}
