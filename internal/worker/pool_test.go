package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPool_ExecutesSubmittedTasks(t *testing.T) {
	pool := NewPool(3, 32, zap.NewNop())
	pool.Start()

	var done int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		ok := pool.Submit(TaskFunc(func(ctx context.Context) {
			atomic.AddInt64(&done, 1)
			wg.Done()
		}))
		require.True(t, ok)
	}
	wg.Wait()
	pool.Shutdown()

	assert.Equal(t, int64(20), atomic.LoadInt64(&done))
}

func TestPool_SubmitRejectsWhenQueueFull(t *testing.T) {
	pool := NewPool(1, 1, zap.NewNop())
	pool.Start()
	defer pool.Shutdown()

	block := make(chan struct{})
	running := make(chan struct{})
	require.True(t, pool.Submit(TaskFunc(func(ctx context.Context) {
		close(running)
		<-block
	})))
	<-running

	// Worker is busy; one task fits the queue, the next is rejected.
	require.True(t, pool.Submit(TaskFunc(func(ctx context.Context) {})))
	assert.False(t, pool.Submit(TaskFunc(func(ctx context.Context) {})))

	close(block)
}

func TestPool_SubmitRejectsAfterShutdown(t *testing.T) {
	pool := NewPool(1, 2, zap.NewNop())
	pool.Start()
	pool.Shutdown()

	assert.False(t, pool.Submit(TaskFunc(func(ctx context.Context) {})))
}

func TestPool_ConcurrentSubmitDuringShutdown(t *testing.T) {
	pool := NewPool(2, 4, zap.NewNop())
	pool.Start()

	// Submissions racing Shutdown must be rejected cleanly, never panic.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				pool.Submit(TaskFunc(func(ctx context.Context) {}))
			}
		}()
	}
	pool.Shutdown()
	wg.Wait()

	assert.False(t, pool.Submit(TaskFunc(func(ctx context.Context) {})))
}

func TestPool_ShutdownCancelsTaskContext(t *testing.T) {
	pool := NewPool(1, 1, zap.NewNop())
	pool.Start()

	started := make(chan struct{})
	cancelled := make(chan struct{})
	require.True(t, pool.Submit(TaskFunc(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	})))
	<-started

	go pool.Shutdown()

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("task context was not cancelled on shutdown")
	}
}
