package quota

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) *redis.Client {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestBurstLimiter_UnderLimit(t *testing.T) {
	rdb := setupMiniredis(t)
	bl := NewBurstLimiter(rdb, 10)
	ctx := context.Background()

	allowed, err := bl.Allow(ctx, "alice@example.org")
	require.NoError(t, err)
	assert.True(t, allowed)

	usage, err := bl.Usage(ctx, "alice@example.org")
	require.NoError(t, err)
	assert.Equal(t, 1, usage)
}

func TestBurstLimiter_AtLimit(t *testing.T) {
	rdb := setupMiniredis(t)
	bl := NewBurstLimiter(rdb, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, err := bl.Allow(ctx, "u")
		require.NoError(t, err)
		assert.True(t, allowed, "event %d should be allowed", i+1)
	}

	allowed, err := bl.Allow(ctx, "u")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestBurstLimiter_DifferentUsers(t *testing.T) {
	rdb := setupMiniredis(t)
	bl := NewBurstLimiter(rdb, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := bl.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := bl.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = bl.Allow(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestBurstLimiter_SlidingWindow(t *testing.T) {
	rdb := setupMiniredis(t)
	bl := NewBurstLimiter(rdb, 3)
	ctx := context.Background()

	// entries older than the window
	key := burstKeyPrefix + "u"
	oldTime := float64(time.Now().Add(-70 * time.Second).UnixMilli())
	for i := 0; i < 3; i++ {
		rdb.ZAdd(ctx, key, redis.Z{Score: oldTime + float64(i), Member: fmt.Sprintf("old:%d", i)})
	}

	allowed, err := bl.Allow(ctx, "u")
	require.NoError(t, err)
	assert.True(t, allowed, "old entries should be cleaned")

	usage, err := bl.Usage(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 1, usage)
}

func TestBurstLimiter_Disabled(t *testing.T) {
	var nilLimiter *BurstLimiter
	allowed, err := nilLimiter.Allow(context.Background(), "u")
	require.NoError(t, err)
	assert.True(t, allowed)

	bl := NewBurstLimiter(setupMiniredis(t), 0)
	for i := 0; i < 100; i++ {
		allowed, err := bl.Allow(context.Background(), "u")
		require.NoError(t, err)
		require.True(t, allowed)
	}
}
