package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	done := make(chan struct{}, 3)

	q := NewQueue("test", func(_ context.Context, job Job) error {
		mu.Lock()
		seen[job.ID] = true
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(Job{ID: id, Type: "close"}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 3)
}

func TestQueueRejectsUnstarted(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "a"}))
}

func TestQueueRejectsDuplicatePendingIDs(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue("test", func(context.Context, Job) error {
		<-release
		return nil
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "session-1"}))
	assert.ErrorIs(t, q.Enqueue(Job{ID: "session-1"}), ErrDuplicate)
	close(release)

	require.Eventually(t, func() bool { return q.Pending() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.NoError(t, q.Enqueue(Job{ID: "session-1"}))
}

func TestQueueRetriesThenGivesUp(t *testing.T) {
	var attempts int32
	gaveUp := make(chan Job, 1)

	q := NewQueue("test", func(context.Context, Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("boom")
	}, QueueConfig{
		Workers:    1,
		MaxRetries: 2,
		RetryDelay: 5 * time.Millisecond,
		OnGiveUp:   func(job Job, _ error) { gaveUp <- job },
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "session-1"}))

	select {
	case job := <-gaveUp:
		assert.Equal(t, "session-1", job.ID)
		assert.Equal(t, 3, job.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job was never given up")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	assert.Equal(t, 0, q.Pending())
}

func TestQueueStopWaitsForPendingRetries(t *testing.T) {
	var attempts int32
	var gaveUp int32
	q := NewQueue("test", func(context.Context, Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("boom")
	}, QueueConfig{
		Workers:    1,
		MaxRetries: 3,
		RetryDelay: time.Hour,
		OnGiveUp:   func(Job, error) { atomic.AddInt32(&gaveUp, 1) },
	})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "session-1"}))
	require.Eventually(t, func() bool { return atomic.LoadInt32(&attempts) == 1 }, 2*time.Second, 5*time.Millisecond)

	q.Stop()

	assert.Equal(t, 0, q.Pending())
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
	assert.Equal(t, int32(0), atomic.LoadInt32(&gaveUp))
}

func TestQueueRetrySucceeds(t *testing.T) {
	var attempts int32
	q := NewQueue("test", func(context.Context, Job) error {
		if atomic.AddInt32(&attempts, 1) == 1 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "session-1"}))
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&attempts) == 2 && q.Pending() == 0
	}, 2*time.Second, 5*time.Millisecond)
}
