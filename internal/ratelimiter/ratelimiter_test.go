package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		perSecond float64
		burst     int
		wantNil   bool
		wantBurst int
	}{
		{name: "explicit burst", perSecond: 100, burst: 200, wantBurst: 200},
		{name: "default burst", perSecond: 10, wantBurst: 10},
		{name: "fractional rate rounds burst up", perSecond: 2.5, wantBurst: 3},
		{name: "sub-one rate", perSecond: 0.5, wantBurst: 1},
		{name: "zero rate is unlimited", perSecond: 0, wantNil: true},
		{name: "negative rate is unlimited", perSecond: -1, burst: 5, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.perSecond, tt.burst)
			if tt.wantNil {
				assert.Nil(t, limiter)
				return
			}
			require.NotNil(t, limiter)
			assert.Equal(t, tt.perSecond, limiter.Limit())
			assert.Equal(t, tt.wantBurst, limiter.Burst())
		})
	}
}

func TestAllow(t *testing.T) {
	limiter := New(10, 10)

	for i := 0; i < 10; i++ {
		require.True(t, limiter.Allow(), "request %d should be within burst", i)
	}
	assert.False(t, limiter.Allow(), "bucket should be empty after the burst")

	// 10/s refills one token every 100ms.
	time.Sleep(110 * time.Millisecond)
	assert.True(t, limiter.Allow())
}

func TestWait(t *testing.T) {
	limiter := New(10, 1)
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx))

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.LessOrEqual(t, elapsed, 200*time.Millisecond)
}

func TestWait_ContextCancellation(t *testing.T) {
	limiter := New(1, 1)
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.Error(t, limiter.Wait(ctx))
}

func TestTokens(t *testing.T) {
	limiter := New(10, 10)

	assert.InDelta(t, 10, limiter.Tokens(), 1)
	for i := 0; i < 5; i++ {
		limiter.Allow()
	}
	assert.InDelta(t, 5, limiter.Tokens(), 1)
}

func TestNilLimiter(t *testing.T) {
	var limiter *RateLimiter

	for i := 0; i < 1000; i++ {
		require.True(t, limiter.Allow())
	}
	assert.NoError(t, limiter.Wait(context.Background()))
	assert.Zero(t, limiter.Limit())
	assert.Zero(t, limiter.Burst())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, limiter.Wait(ctx), context.Canceled)
}

func BenchmarkAllow(b *testing.B) {
	limiter := New(1_000_000, 1_000_000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		limiter.Allow()
	}
}

func BenchmarkAllowParallel(b *testing.B) {
	limiter := New(1_000_000, 1_000_000)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			limiter.Allow()
		}
	})
}
