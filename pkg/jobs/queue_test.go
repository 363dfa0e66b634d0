package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueDeliversJobs(t *testing.T) {
	seen := make(chan string, 3)
	q := NewQueue("test", func(_ context.Context, job Job) error {
		seen <- job.ID
		return nil
	}, QueueConfig{Workers: 2})

	q.Start(context.Background())
	defer q.Stop()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(Job{ID: id, Type: "noop"}))
	}

	got := map[string]bool{}
	for i := 0; i < 3; i++ {
		select {
		case id := <-seen:
			got[id] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}
	require.Len(t, got, 3)
}

func TestQueueRetriesUntilSuccess(t *testing.T) {
	done := make(chan Job, 1)
	q := NewQueue("test", func(_ context.Context, job Job) error {
		if job.Attempt == 0 {
			return errors.New("transient")
		}
		done <- job
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: 10 * time.Millisecond})

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "flaky", Type: "noop"}))

	select {
	case job := <-done:
		require.Equal(t, 1, job.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
}

func TestQueueRejectsEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	require.Error(t, q.Enqueue(Job{ID: "early"}))
}
