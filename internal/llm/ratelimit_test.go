package llm

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	t.Run("bucket drains then refills", func(t *testing.T) {
		rl := newRateLimiter(600) // one token every 100ms
		defer rl.Close()
		ctx := context.Background()

		for i := 0; i < 600; i++ {
			require.True(t, rl.tryAcquire())
		}
		assert.False(t, rl.tryAcquire())

		start := time.Now()
		require.NoError(t, rl.wait(ctx))
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("context cancellation", func(t *testing.T) {
		rl := newRateLimiter(1)
		defer rl.Close()

		require.NoError(t, rl.wait(context.Background()))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error)
		go func() { done <- rl.wait(ctx) }()

		time.Sleep(10 * time.Millisecond)
		cancel()

		err := <-done
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Contains(t, err.Error(), "rate limiter canceled")
	})

	t.Run("default rate limit", func(t *testing.T) {
		rl := newRateLimiter(0)
		defer rl.Close()
		assert.Equal(t, 60, rl.available())
	})

	t.Run("concurrent access", func(t *testing.T) {
		rl := newRateLimiter(100)
		defer rl.Close()

		var acquired int32
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					if rl.tryAcquire() {
						atomic.AddInt32(&acquired, 1)
					}
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(100), atomic.LoadInt32(&acquired))
	})

	t.Run("close is idempotent", func(t *testing.T) {
		rl := newRateLimiter(5)
		rl.Close()
		rl.Close()
	})
}
