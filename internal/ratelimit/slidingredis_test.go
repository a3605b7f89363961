package ratelimit

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newSlidingLimiter(t *testing.T) (Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return Limiter{Client: client, Prefix: "preorder:rl:"}, mr
}

func TestSlidingWindowRejectsOverLimitUntilExpiry(t *testing.T) {
	limiter, mr := newSlidingLimiter(t)
	ctx := t.Context()
	window := 2 * time.Second

	for i, wantRemaining := range []int{1, 0} {
		allowed, remaining, _, err := limiter.Allow(ctx, "ip:203.0.113.7", window, 2)
		require.NoError(t, err)
		require.Truef(t, allowed, "checkout attempt %d", i+1)
		require.Equal(t, wantRemaining, remaining)
	}

	allowed, remaining, reset, err := limiter.Allow(ctx, "ip:203.0.113.7", window, 2)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Zero(t, remaining)
	require.True(t, reset.After(time.Now()))
	require.True(t, mr.Exists("preorder:rl:ip:203.0.113.7"))

	mr.FastForward(window)

	allowed, _, _, err = limiter.Allow(ctx, "ip:203.0.113.7", window, 2)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestSlidingWindowKeysAreIndependent(t *testing.T) {
	limiter, _ := newSlidingLimiter(t)
	ctx := t.Context()

	allowed, _, _, err := limiter.Allow(ctx, "ip:198.51.100.1", time.Minute, 1)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, _, err = limiter.Allow(ctx, "ip:198.51.100.1", time.Minute, 1)
	require.NoError(t, err)
	require.False(t, allowed)

	allowed, _, _, err = limiter.Allow(ctx, "ip:198.51.100.2", time.Minute, 1)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestSlidingWindowDisabledWithoutClient(t *testing.T) {
	allowed, remaining, _, err := Limiter{}.Allow(t.Context(), "ip:192.0.2.1", time.Minute, 5)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 5, remaining)
}
