package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLocalSerializesSharedKeys(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		maxSeen atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			keys := []string{"email:a@x.com"}
			if i%2 == 0 {
				keys = append(keys, "phone:123")
			}
			release, err := l.Acquire(ctx, keys)
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				cur := maxSeen.Load()
				if n <= cur || maxSeen.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			release()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Zero(t, l.Len(), "slots are dropped once released")
}

func TestLocalDisjointKeysDoNotBlock(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	releaseA, err := l.Acquire(ctx, []string{"email:a@x.com"})
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	releaseB, err := l.Acquire(ctx, []string{"email:b@x.com"})
	require.NoError(t, err)
	releaseB()
}

func TestLocalHonoursContext(t *testing.T) {
	l := NewLocal()

	release, err := l.Acquire(context.Background(), []string{"phone:123"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, []string{"email:a@x.com", "phone:123"})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// email:a@x.com was taken first and must have been handed back.
	again, err := l.Acquire(context.Background(), []string{"email:a@x.com"})
	require.NoError(t, err)
	again()

	release()
	release()
	assert.Zero(t, l.Len())
}

func TestNormalizeKeys(t *testing.T) {
	in := []string{"phone:1", "email:b", "phone:1", "email:a"}
	assert.Equal(t, []string{"email:a", "email:b", "phone:1"}, normalizeKeys(in))
	assert.Equal(t, []string{"phone:1", "email:b", "phone:1", "email:a"}, in, "input is not mutated")
}
