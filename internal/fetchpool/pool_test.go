package fetchpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolNeverExceedsCapacity(t *testing.T) {
	t.Parallel()

	const (
		size  = 8
		flood = 64
	)
	pool := New(size)
	var (
		current atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < flood; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pool.Do(context.Background(), func(context.Context) error {
				n := current.Add(1)
				for {
					old := maxSeen.Load()
					if n <= old || maxSeen.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				current.Add(-1)
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, int(maxSeen.Load()), size)
	require.LessOrEqual(t, pool.Peak(), size)
	require.Zero(t, pool.InFlight())
}

func TestPoolPropagatesErrorAndReleasesSlot(t *testing.T) {
	t.Parallel()

	pool := New(1)
	boom := errors.New("connection refused")
	for i := 0; i < 3; i++ {
		err := pool.Do(context.Background(), func(context.Context) error { return boom })
		require.Same(t, boom, err)
	}
	require.Zero(t, pool.InFlight())

	done := make(chan struct{})
	go func() {
		defer close(done)
		require.NoError(t, pool.Do(context.Background(), func(context.Context) error { return nil }))
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("slot leaked after failing operations")
	}
}

func TestPoolReleasesSlotOnPanic(t *testing.T) {
	t.Parallel()

	pool := New(1)
	func() {
		defer func() {
			require.NotNil(t, recover())
		}()
		_ = pool.Do(context.Background(), func(context.Context) error { panic("probe crashed") })
	}()
	require.Zero(t, pool.InFlight())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, pool.Do(ctx, func(context.Context) error { return nil }))
}

func TestPoolWaitHonoursContext(t *testing.T) {
	t.Parallel()

	pool := New(1)
	hold := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = pool.Do(context.Background(), func(context.Context) error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pool.Do(ctx, func(context.Context) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
	close(hold)
}

func TestRunReturnsValue(t *testing.T) {
	t.Parallel()

	pool := New(0)
	require.Equal(t, DefaultSize, pool.Capacity())
	got, err := Run(context.Background(), pool, func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	require.Equal(t, 42, got)
}
