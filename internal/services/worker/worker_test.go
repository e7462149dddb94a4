package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsTasks(t *testing.T) {
	p := NewPool(3, 10, nil)
	p.Start()
	defer p.Stop()

	var n atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(Task{Name: "count", Run: func(context.Context) {
			n.Add(1)
			wg.Done()
		}}))
	}
	wg.Wait()
	assert.Equal(t, int32(10), n.Load())
	assert.Equal(t, 3, p.WorkerCount())
}

func TestPool_QueueFull(t *testing.T) {
	// Workers not started, so nothing drains the queue.
	p := NewPool(1, 2, nil)
	defer p.Stop()

	noop := Task{Name: "noop", Run: func(context.Context) {}}
	require.NoError(t, p.Submit(noop))
	require.NoError(t, p.Submit(noop))
	assert.Equal(t, 2, p.QueueSize())

	assert.ErrorIs(t, p.Submit(noop), ErrQueueFull)
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p := NewPool(1, 1, nil)
	p.Start()
	p.Stop()
	p.Stop()

	err := p.Submit(Task{Name: "late", Run: func(context.Context) {}})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestPool_RejectsNilRun(t *testing.T) {
	p := NewPool(1, 1, nil)
	defer p.Stop()
	assert.Error(t, p.Submit(Task{Name: "empty"}))
}

func TestPool_SurvivesPanic(t *testing.T) {
	p := NewPool(1, 4, nil)
	p.Start()
	defer p.Stop()

	done := make(chan struct{})
	require.NoError(t, p.Submit(Task{Name: "boom", Run: func(context.Context) { panic("boom") }}))
	require.NoError(t, p.Submit(Task{Name: "after", Run: func(context.Context) { close(done) }}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not recover from panic")
	}
}

func TestPool_StopCancelsContext(t *testing.T) {
	p := NewPool(1, 1, nil)
	p.Start()

	started := make(chan struct{})
	cancelled := make(chan struct{})
	require.NoError(t, p.Submit(Task{Name: "wait", Run: func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	}}))

	<-started
	p.Stop()

	select {
	case <-cancelled:
	default:
		t.Fatal("task context was not cancelled")
	}
}
