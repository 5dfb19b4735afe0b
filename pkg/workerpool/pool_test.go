package workerpool_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshbulk/storefront/pkg/workerpool"
)

func TestSubmitWaitRunsEveryTask(t *testing.T) {
	pool := workerpool.New("test", 4, 8)
	ctx := context.Background()

	const n = 100
	var count atomic.Int64
	for i := 0; i < n; i++ {
		require.NoError(t, pool.SubmitWait(ctx, func() { count.Add(1) }))
	}

	require.NoError(t, pool.Shutdown(ctx))
	assert.EqualValues(t, n, count.Load())
}

func TestSubmitReportsFullQueue(t *testing.T) {
	pool := workerpool.New("test", 1, 2)
	blocker := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, pool.Submit(func() {
		close(started)
		<-blocker
	}))
	<-started

	require.NoError(t, pool.Submit(func() {}))
	require.NoError(t, pool.Submit(func() {}))
	assert.ErrorIs(t, pool.Submit(func() {}), workerpool.ErrPoolFull)
	assert.Equal(t, 2, pool.Pending())

	close(blocker)
	require.NoError(t, pool.Shutdown(context.Background()))
}

func TestSubmitAfterShutdown(t *testing.T) {
	pool := workerpool.New("test", 2, 0)
	require.NoError(t, pool.Shutdown(context.Background()))
	require.NoError(t, pool.Shutdown(context.Background()))

	assert.ErrorIs(t, pool.Submit(func() {}), workerpool.ErrPoolClosed)
	assert.ErrorIs(t, pool.SubmitWait(context.Background(), func() {}), workerpool.ErrPoolClosed)
}

func TestSubmitWaitHonoursContext(t *testing.T) {
	pool := workerpool.New("test", 1, 1)
	blocker := make(chan struct{})
	defer close(blocker)

	started := make(chan struct{})
	require.NoError(t, pool.Submit(func() { close(started); <-blocker }))
	<-started
	require.NoError(t, pool.Submit(func() {}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.SubmitWait(ctx, func() {}), context.DeadlineExceeded)
}

func TestPanicDoesNotKillWorker(t *testing.T) {
	pool := workerpool.New("test", 1, 4)

	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, pool.Submit(func() {
		defer wg.Done()
		panic("bad task")
	}))
	wg.Wait()

	done := make(chan struct{})
	require.NoError(t, pool.Submit(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive the panic")
	}

	require.NoError(t, pool.Shutdown(context.Background()))
	assert.EqualValues(t, 1, pool.Panics())
}

func TestShutdownTimesOut(t *testing.T) {
	pool := workerpool.New("test", 1, 1)
	blocker := make(chan struct{})
	defer close(blocker)
	require.NoError(t, pool.Submit(func() { <-blocker }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.Shutdown(ctx), context.DeadlineExceeded)
}
