package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	LatestFeedKeyPrefix = "feed:latest:%s:%d:%d"
	NewsKeyPrefix       = "news:%d"
)

// LatestFeedTTL bounds the staleness of the cached latest feed. It is the
// documented staleness window for that read path.
const (
	LatestFeedTTL = 30 * time.Second
	NewsTTL       = 2 * time.Minute
)

// LatestFeedKey keys the public latest feed by topic filter and page.
func LatestFeedKey(topic string, limit, offset int) string {
	if topic == "" {
		topic = "all"
	}
	return fmt.Sprintf(LatestFeedKeyPrefix, topic, limit, offset)
}

// NewsKey keys the news listing by page size.
func NewsKey(limit int) string {
	return fmt.Sprintf(NewsKeyPrefix, limit)
}

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	s, err := client.Get(ctx, key).Result()
	if err != nil {
		// Treat any miss or Redis failure as a cache miss; the source of
		// truth is always consulted on miss.
		return false, nil
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, b, ttl).Err()
}

// Aside tries Redis first, on miss it calls fetch (which should populate dest),
// then stores the result in Redis with ttl. fetch must write into dest.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	found, err := GetJSON(ctx, key, dest)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	if err := fetch(); err != nil {
		return err
	}

	// Store into cache (best-effort)
	_ = SetJSON(ctx, key, dest, ttl)
	return nil
}

// Invalidate removes a key (best-effort).
func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}
