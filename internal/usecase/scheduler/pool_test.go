package scheduler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ucErrors "github.com/johnquangdev/meetbot/internal/usecase/errors"
)

func TestPortPoolAcquireRelease(t *testing.T) {
	pool, err := NewPortPool(9222, 3)
	require.NoError(t, err)

	var got []int
	for i := 0; i < 3; i++ {
		port, ok := pool.Acquire()
		require.True(t, ok)
		got = append(got, port)
	}
	assert.Equal(t, []int{9222, 9223, 9224}, got)

	_, ok := pool.Acquire()
	assert.False(t, ok, "pool should be exhausted")

	require.NoError(t, pool.Release(9223))
	port, ok := pool.Acquire()
	require.True(t, ok)
	assert.Equal(t, 9223, port)

	stats := pool.Stats()
	assert.Equal(t, 3, stats.Limit)
	assert.Equal(t, 3, stats.Held)
	assert.Equal(t, 0, stats.Available)
	assert.Equal(t, []int{9222, 9223, 9224}, stats.HeldPorts)
}

func TestPortPoolRejectsBadRelease(t *testing.T) {
	pool, err := NewPortPool(9222, 2)
	require.NoError(t, err)

	t.Run("not held", func(t *testing.T) {
		assert.ErrorIs(t, pool.Release(9222), ucErrors.ErrPortNotHeld)
	})

	t.Run("double release", func(t *testing.T) {
		port, ok := pool.Acquire()
		require.True(t, ok)
		require.NoError(t, pool.Release(port))
		assert.ErrorIs(t, pool.Release(port), ucErrors.ErrPortNotHeld)
	})

	t.Run("out of range", func(t *testing.T) {
		assert.ErrorIs(t, pool.Release(80), ucErrors.ErrPortOutOfRange)
	})

	stats := pool.Stats()
	assert.Equal(t, 2, stats.Available, "bad releases must not grow the pool")
	assert.Equal(t, 0, stats.Held)
}

func TestPortPoolInvalidLimit(t *testing.T) {
	_, err := NewPortPool(9222, 0)
	assert.ErrorIs(t, err, ucErrors.ErrInvalidPool)
}

func TestPortPoolConcurrent(t *testing.T) {
	const limit = 8
	pool, err := NewPortPool(9222, limit)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				port, ok := pool.Acquire()
				if !ok {
					continue
				}
				stats := pool.Stats()
				assert.Equal(t, limit, stats.Available+stats.Held)
				assert.NoError(t, pool.Release(port))
			}
		}()
	}
	wg.Wait()

	stats := pool.Stats()
	assert.Equal(t, limit, stats.Available)
	assert.Equal(t, 0, stats.Held)
}
