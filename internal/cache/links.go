// Package cache remembers fixture-detail resolutions across runs so the
// resolver can skip pages it has already figured out.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const linkKeyPrefix = "hermes:links:"

// LinkCache is a Redis-backed team-link cache. Cache failures are logged
// and treated as misses; the resolver never depends on it.
type LinkCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewLinkCache connects to Redis and verifies the connection.
func NewLinkCache(redisURL string, ttl time.Duration, logger zerolog.Logger) (*LinkCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &LinkCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "linkcache").Logger(),
	}, nil
}

// Close closes the Redis connection.
func (c *LinkCache) Close() error {
	return c.client.Close()
}

// GetLinks returns the cached team URL pair for a detail page, if present.
func (c *LinkCache) GetLinks(ctx context.Context, detailURL string) (string, string, bool) {
	val, err := c.client.Get(ctx, linkKeyPrefix+detailURL).Result()
	if err == redis.Nil {
		return "", "", false
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("cache read failed, treating as miss")
		return "", "", false
	}

	parts := strings.SplitN(val, "\n", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// SetLinks stores a resolved pair with the configured TTL.
func (c *LinkCache) SetLinks(ctx context.Context, detailURL, home, away string) {
	if err := c.client.Set(ctx, linkKeyPrefix+detailURL, home+"\n"+away, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("cache write failed")
	}
}

// HealthCheck pings Redis.
func (c *LinkCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
