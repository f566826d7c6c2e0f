package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("ZeroRateDisablesLimiting", func(t *testing.T) {
		r := New(0, 10)
		assert.Nil(t, r)
		for i := 0; i < 1000; i++ {
			require.True(t, r.Allow())
		}
		assert.Equal(t, float64(0), r.Limit())
		assert.Equal(t, time.Duration(0), r.Delay())
	})

	t.Run("BurstDefaultsToRate", func(t *testing.T) {
		r := New(5, 0)
		require.NotNil(t, r)
		assert.Equal(t, 5, r.limiter.Burst())
	})

	t.Run("FractionalRateGetsBurstOfOne", func(t *testing.T) {
		r := New(0.5, 0)
		require.NotNil(t, r)
		assert.Equal(t, 1, r.limiter.Burst())
	})
}

func TestAllow(t *testing.T) {
	r := New(1, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, r.Allow(), "call %d is within burst", i)
	}
	assert.False(t, r.Allow(), "bucket should be empty")
	assert.Greater(t, r.Delay(), time.Duration(0))
}

func TestWait(t *testing.T) {
	t.Run("ReturnsWhenTokenAvailable", func(t *testing.T) {
		r := New(1000, 1)
		require.NoError(t, r.Wait(context.Background()))
		require.NoError(t, r.Wait(context.Background()))
	})

	t.Run("HonoursCancellation", func(t *testing.T) {
		r := New(0.01, 1)
		require.True(t, r.Allow())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Error(t, r.Wait(ctx))
	})

	t.Run("NilLimiterReportsContextError", func(t *testing.T) {
		var r *RateLimiter
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, r.Wait(ctx), context.Canceled)
	})
}
