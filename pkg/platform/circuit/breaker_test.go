package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// step records one outcome and what the breaker should report afterwards.
type step struct {
	success bool
	// useAlternate is useFallback for failures and !usePrimary for successes.
	useAlternate bool
	opened       bool
	closed       bool
	openAfter    bool
}

func fail(useFallback, opened, openAfter bool) step {
	return step{useAlternate: useFallback, opened: opened, openAfter: openAfter}
}

func succeed(usePrimary, closed, openAfter bool) step {
	return step{success: true, useAlternate: !usePrimary, closed: closed, openAfter: openAfter}
}

func TestBreakerTransitions(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		steps []step
	}{
		{
			name: "opens on the failure threshold",
			opts: []Option{WithFailureThreshold(3)},
			steps: []step{
				fail(false, false, false),
				fail(false, false, false),
				fail(true, true, true),
				fail(true, false, true),
			},
		},
		{
			name: "closes on the success threshold",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{
				fail(true, true, true),
				succeed(false, false, true),
				succeed(true, true, false),
			},
		},
		{
			name: "a success clears failures while closed",
			opts: []Option{WithFailureThreshold(2)},
			steps: []step{
				fail(false, false, false),
				succeed(true, false, false),
				fail(false, false, false),
				fail(true, true, true),
			},
		},
		{
			name: "a failure clears successes while open",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{
				fail(true, true, true),
				succeed(false, false, true),
				fail(true, false, true),
				succeed(false, false, true),
				succeed(true, true, false),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("kafka", tt.opts...)
			for i, st := range tt.steps {
				if st.success {
					usePrimary, change := b.RecordSuccess()
					assert.Equal(t, !st.useAlternate, usePrimary, "step %d usePrimary", i)
					assert.Equal(t, st.closed, change.Closed, "step %d closed", i)
					assert.False(t, change.Opened, "step %d", i)
				} else {
					useFallback, change := b.RecordFailure()
					assert.Equal(t, st.useAlternate, useFallback, "step %d useFallback", i)
					assert.Equal(t, st.opened, change.Opened, "step %d opened", i)
					assert.False(t, change.Closed, "step %d", i)
				}
				require.Equal(t, st.openAfter, b.IsOpen(), "step %d state", i)
			}
		})
	}
}

func TestBreakerDefaults(t *testing.T) {
	b := New("ratelimit", WithFailureThreshold(0), WithSuccessThreshold(-1))
	assert.Equal(t, "ratelimit", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())

	for range 4 {
		b.RecordFailure()
	}
	assert.False(t, b.IsOpen(), "non-positive thresholds keep the defaults")
	b.RecordFailure()
	assert.Equal(t, "open", b.State().String())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.False(t, change.Closed)
}

func TestBreakerReportsOneOpening(t *testing.T) {
	b := New("kafka", WithFailureThreshold(10))

	var (
		mu     sync.Mutex
		opened int
		wg     sync.WaitGroup
	)
	for range 50 {
		wg.Go(func() {
			if _, change := b.RecordFailure(); change.Opened {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	assert.Equal(t, 1, opened)
	assert.True(t, b.IsOpen())
}
