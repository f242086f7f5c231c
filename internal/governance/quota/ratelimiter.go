package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	burstKeyPrefix = "quill:burst:"
	windowDuration = 60 * time.Second
	keyTTL         = 90 * time.Second
)

// BurstLimiter is a Redis sorted-set sliding window that caps how many
// events one user may send per minute, in front of the daily quota.
type BurstLimiter struct {
	rdb          redis.Cmdable
	maxPerMinute int
}

// NewBurstLimiter creates a limiter. maxPerMinute <= 0 disables it.
func NewBurstLimiter(rdb redis.Cmdable, maxPerMinute int) *BurstLimiter {
	return &BurstLimiter{rdb: rdb, maxPerMinute: maxPerMinute}
}

// Allow records one event for userID if the window has room.
func (bl *BurstLimiter) Allow(ctx context.Context, userID string) (bool, error) {
	if bl == nil || bl.maxPerMinute <= 0 {
		return true, nil
	}

	key := burstKeyPrefix + userID
	now := time.Now()
	windowStart := float64(now.Add(-windowDuration).UnixMilli())

	pipe := bl.rdb.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatFloat(windowStart, 'f', 0, 64))
	countCmd := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("burst limiter pipeline (clean+count): %w", err)
	}

	count := countCmd.Val()
	if count >= int64(bl.maxPerMinute) {
		return false, nil
	}

	pipe2 := bl.rdb.Pipeline()
	member := fmt.Sprintf("%d:%d", now.UnixNano(), count)
	pipe2.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: member})
	pipe2.Expire(ctx, key, keyTTL)
	if _, err := pipe2.Exec(ctx); err != nil {
		return false, fmt.Errorf("burst limiter pipeline (add): %w", err)
	}
	return true, nil
}

// Usage returns the number of events in the current window.
func (bl *BurstLimiter) Usage(ctx context.Context, userID string) (int, error) {
	now := time.Now()
	count, err := bl.rdb.ZCount(ctx, burstKeyPrefix+userID,
		strconv.FormatFloat(float64(now.Add(-windowDuration).UnixMilli()), 'f', 0, 64),
		strconv.FormatFloat(float64(now.UnixMilli()), 'f', 0, 64),
	).Result()
	if err != nil {
		return 0, fmt.Errorf("getting burst usage: %w", err)
	}
	return int(count), nil
}
