package client

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pior/memcached/internal/testutils"
)

type mockDialer struct {
	dials atomic.Int32
	err   error
}

func (d *mockDialer) constructor(ctx context.Context) (*Connection, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.dials.Add(1)
	return NewConnection(testutils.NewConnectionMock()), nil
}

var poolFactories = map[string]PoolFactory{
	"channel": NewChannelPool,
	"puddle":  NewPuddlePool,
}

func TestPool_AcquireRelease(t *testing.T) {
	for name, factory := range poolFactories {
		t.Run(name, func(t *testing.T) {
			dialer := &mockDialer{}
			pool, err := factory(dialer.constructor, 2)
			require.NoError(t, err)
			defer pool.Close()

			ctx := context.Background()

			res, err := pool.Acquire(ctx)
			require.NoError(t, err)
			require.NotNil(t, res.Value())
			res.Release()

			res, err = pool.Acquire(ctx)
			require.NoError(t, err)
			res.Release()

			assert.Equal(t, int32(1), dialer.dials.Load(), "idle connection is reused")

			stats := pool.Stats()
			assert.Equal(t, int32(1), stats.TotalConns)
			assert.Equal(t, int32(1), stats.IdleConns)
			assert.Equal(t, int32(0), stats.ActiveConns)
			assert.Equal(t, uint64(2), stats.AcquireCount)
			assert.Equal(t, uint64(1), stats.CreatedConns)
		})
	}
}

func TestPool_Destroy(t *testing.T) {
	for name, factory := range poolFactories {
		t.Run(name, func(t *testing.T) {
			dialer := &mockDialer{}
			pool, err := factory(dialer.constructor, 1)
			require.NoError(t, err)
			defer pool.Close()

			res, err := pool.Acquire(context.Background())
			require.NoError(t, err)
			res.Destroy()

			res, err = pool.Acquire(context.Background())
			require.NoError(t, err)
			res.Release()

			assert.Equal(t, int32(2), dialer.dials.Load())
			assert.Equal(t, int32(1), pool.Stats().TotalConns)
			// puddle runs destructors asynchronously
			assert.Eventually(t, func() bool {
				return pool.Stats().DestroyedConns == 1
			}, time.Second, time.Millisecond)
		})
	}
}

func TestPool_WaitsWhenFull(t *testing.T) {
	for name, factory := range poolFactories {
		t.Run(name, func(t *testing.T) {
			dialer := &mockDialer{}
			pool, err := factory(dialer.constructor, 1)
			require.NoError(t, err)
			defer pool.Close()

			held, err := pool.Acquire(context.Background())
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			_, err = pool.Acquire(ctx)
			require.ErrorIs(t, err, context.DeadlineExceeded)

			go func() {
				time.Sleep(10 * time.Millisecond)
				held.Release()
			}()

			res, err := pool.Acquire(context.Background())
			require.NoError(t, err)
			res.Release()

			assert.Equal(t, int32(1), dialer.dials.Load())
		})
	}
}

func TestPool_ConstructorError(t *testing.T) {
	for name, factory := range poolFactories {
		t.Run(name, func(t *testing.T) {
			dialer := &mockDialer{err: errors.New("connection refused")}
			pool, err := factory(dialer.constructor, 1)
			require.NoError(t, err)
			defer pool.Close()

			_, err = pool.Acquire(context.Background())
			require.ErrorContains(t, err, "connection refused")
			assert.Equal(t, int32(0), pool.Stats().TotalConns)
		})
	}
}

func TestPool_AcquireAllIdle(t *testing.T) {
	for name, factory := range poolFactories {
		t.Run(name, func(t *testing.T) {
			dialer := &mockDialer{}
			pool, err := factory(dialer.constructor, 3)
			require.NoError(t, err)
			defer pool.Close()

			var held []Resource
			for range 3 {
				res, err := pool.Acquire(context.Background())
				require.NoError(t, err)
				held = append(held, res)
			}
			for _, res := range held {
				res.Release()
			}

			idle := pool.AcquireAllIdle()
			require.Len(t, idle, 3)
			assert.Empty(t, pool.AcquireAllIdle())

			idle[0].Destroy()
			idle[1].ReleaseUnused()
			idle[2].Release()

			// puddle destroys in the background
			require.Eventually(t, func() bool {
				return pool.Stats().TotalConns == 2
			}, time.Second, time.Millisecond)
		})
	}
}

func TestPool_Closed(t *testing.T) {
	for name, factory := range poolFactories {
		t.Run(name, func(t *testing.T) {
			dialer := &mockDialer{}
			pool, err := factory(dialer.constructor, 1)
			require.NoError(t, err)

			res, err := pool.Acquire(context.Background())
			require.NoError(t, err)
			res.Release()

			pool.Close()

			_, err = pool.Acquire(context.Background())
			require.ErrorIs(t, err, ErrPoolClosed)
		})
	}
}

func TestChannelPool_InvalidSize(t *testing.T) {
	_, err := NewChannelPool((&mockDialer{}).constructor, 0)
	require.Error(t, err)
}
