package workerpool

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func drainUntilStop(t *testing.T, p *Pool) {
	t.Helper()
	for {
		run, ok := p.Next()
		if !ok {
			return
		}
		run()
	}
}

func TestSubmitRunsWorkAndInvokesCallback(t *testing.T) {
	p := New(2, false)
	var mu sync.Mutex
	var got any

	require.NoError(t, p.Submit(Task{
		Work: func() (any, error) { return 7, nil },
		Callback: func(result any, err error) {
			mu.Lock()
			got = result
			mu.Unlock()
			p.RequestStop()
		},
	}))

	drainUntilStop(t, p)
	p.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 7, got)
}

func TestWorkErrorReachesCallback(t *testing.T) {
	p := New(1, false)
	boom := errors.New("boom")
	var gotErr error

	require.NoError(t, p.Submit(Task{
		Work: func() (any, error) { return nil, boom },
		Callback: func(result any, err error) {
			gotErr = err
			p.RequestStop()
		},
	}))

	drainUntilStop(t, p)
	p.Shutdown()

	assert.ErrorIs(t, gotErr, boom)
}

func TestPanicInWorkIsCapturedAsError(t *testing.T) {
	p := New(1, false)
	var gotErr error

	require.NoError(t, p.Submit(Task{
		Work: func() (any, error) { panic("kaboom") },
		Callback: func(result any, err error) {
			gotErr = err
			p.RequestStop()
		},
	}))

	drainUntilStop(t, p)
	p.Shutdown()

	require.Error(t, gotErr)
	assert.Contains(t, gotErr.Error(), "kaboom")
}

func TestStopOnErrorStopsAcceptingNewWork(t *testing.T) {
	p := New(1, true)
	boom := errors.New("boom")
	done := make(chan struct{})

	require.NoError(t, p.Submit(Task{
		Work: func() (any, error) { return nil, boom },
		Callback: func(result any, err error) {
			close(done)
		},
	}))

	run, ok := p.Next()
	require.True(t, ok)
	run()
	<-done

	assert.False(t, p.IsAcceptingWork())
	err := p.Submit(Task{Work: func() (any, error) { return nil, nil }, Callback: func(any, error) {}})
	assert.ErrorIs(t, err, ErrPoolStoppedAccepting)

	p.RequestStop()
	drainUntilStop(t, p)
	p.Shutdown()
}

// TestSubmitBurstLargerThanAnyFixedBufferNeverBlocks submits far more tasks
// than the pool has workers, all before Next is ever called — the shape a
// fixed-capacity callback channel can still deadlock under once the burst
// outgrows it, regardless of how generously it was sized.
func TestSubmitBurstLargerThanAnyFixedBufferNeverBlocks(t *testing.T) {
	p := New(2, false)
	const n = 500
	var mu sync.Mutex
	count := 0

	for i := 0; i < n; i++ {
		require.NoError(t, p.Submit(Task{
			Work: func() (any, error) { return nil, nil },
			Callback: func(any, error) {
				mu.Lock()
				count++
				done := count == n
				mu.Unlock()
				if done {
					p.RequestStop()
				}
			},
		}))
	}

	drainUntilStop(t, p)
	p.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, n, count)
}

func TestMultipleTasksAllComplete(t *testing.T) {
	p := New(4, false)
	const n = 20
	var mu sync.Mutex
	count := 0

	for i := 0; i < n; i++ {
		require.NoError(t, p.Submit(Task{
			Work: func() (any, error) { return nil, nil },
			Callback: func(any, error) {
				mu.Lock()
				count++
				done := count == n
				mu.Unlock()
				if done {
					p.RequestStop()
				}
			},
		}))
	}

	drainUntilStop(t, p)
	p.Shutdown()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, n, count)
}
