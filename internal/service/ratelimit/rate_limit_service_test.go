package ratelimit

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (RateLimitService, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	log := logrus.New()
	log.SetOutput(io.Discard)

	return NewWithClient(client, log), mr
}

func TestAllowUnderAndOverLimit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := svc.Allow(ctx, "actor:alice", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d is within the limit", i+1)
	}

	allowed, err := svc.Allow(ctx, "actor:alice", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed, "fourth request exceeds a limit of three")
}

func TestConcurrentRequestsCannotExceedLimit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	const limit = 5
	const requests = 20

	var wg sync.WaitGroup
	results := make(chan bool, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, err := svc.Allow(ctx, "actor:alice", limit, time.Minute)
			assert.NoError(t, err)
			results <- allowed
		}()
	}
	wg.Wait()
	close(results)

	allowedCount := 0
	for allowed := range results {
		if allowed {
			allowedCount++
		}
	}
	assert.Equal(t, limit, allowedCount, "exactly the limit may pass, however the requests interleave")
}

func TestCountersExpireWithWindow(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	allowed, err := svc.Allow(ctx, "actor:bob", 1, time.Second)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = svc.Allow(ctx, "actor:bob", 1, time.Second)
	require.NoError(t, err)
	assert.False(t, allowed)

	mr.FastForward(2 * time.Second)

	allowed, err = svc.Allow(ctx, "actor:bob", 1, time.Second)
	require.NoError(t, err)
	assert.True(t, allowed, "counter must reset after the window")
}

func TestKeysAreIndependent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	allowed, err := svc.Allow(ctx, "actor:carol", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = svc.Allow(ctx, "actor:dave", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestDisabledLimiterAlwaysAllows(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	svc, err := NewRateLimitService(Config{Enabled: false}, log)
	require.NoError(t, err)

	allowed, err := svc.Allow(context.Background(), "anything", 0, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}
