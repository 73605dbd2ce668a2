package ratelimit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"f451comms/internal/domain/dispatch"
)

var _ dispatch.Throttle = (*RedisChannelThrottle)(nil)

// RedisChannelThrottle caps how many dispatches each channel accepts per hour
// using Redis sorted sets. It uses a sliding window approach: each dispatch
// is a member scored by its timestamp.
type RedisChannelThrottle struct {
	client     *redis.Client
	maxPerHour int
	window     time.Duration
}

// NewRedisChannelThrottle creates a new Redis-based per-channel throttle.
func NewRedisChannelThrottle(redisAddr, password string, db int, maxPerHour int) *RedisChannelThrottle {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})

	return &RedisChannelThrottle{
		client:     client,
		maxPerHour: maxPerHour,
		window:     time.Hour,
	}
}

// Allow checks whether a dispatch to the given channel may proceed.
// Uses a Redis sorted set with timestamps as scores for a sliding window counter.
func (r *RedisChannelThrottle) Allow(ctx context.Context, channel string) (bool, error) {
	key := fmt.Sprintf("f451comms:throttle:%s", channel)
	now := time.Now()
	windowStart := now.Add(-r.window)

	pipe := r.client.Pipeline()

	// Remove expired entries (outside the sliding window)
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", windowStart.UnixNano()))

	// Count remaining entries in the window
	countCmd := pipe.ZCard(ctx, key)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("checking channel throttle: %w", err)
	}

	count := countCmd.Val()

	// If at or over the limit, deny
	if count >= int64(r.maxPerHour) {
		return false, nil
	}

	// Generate a unique member to avoid collisions on concurrent dispatches
	randBytes := make([]byte, 4)
	_, _ = rand.Read(randBytes)
	member := redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d:%s", now.UnixNano(), hex.EncodeToString(randBytes)),
	}
	pipe2 := r.client.Pipeline()
	pipe2.ZAdd(ctx, key, member)
	pipe2.Expire(ctx, key, r.window+time.Minute) // TTL slightly longer than window for cleanup

	_, err = pipe2.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("recording throttle entry: %w", err)
	}

	return true, nil
}

// Close closes the Redis connection.
func (r *RedisChannelThrottle) Close() error {
	return r.client.Close()
}
