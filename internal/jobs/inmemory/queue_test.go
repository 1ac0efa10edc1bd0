package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cnoret/fraudpipe/internal/jobs"
)

func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.ScoreRunJob {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := store.GetJob(context.Background(), jobID)
	t.Fatalf("job %s never reached status %q (last: %+v)", jobID, want, job)
	return nil
}

func TestQueue_RetriesFailedJobUntilSuccess(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)
	q.retryDelay = 10 * time.Millisecond
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts int32
	handler := func(ctx context.Context, job *jobs.ScoreRunJob) error {
		if atomic.AddInt32(&attempts, 1) == 1 {
			return errors.New("transient upstream failure")
		}
		return nil
	}
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job := &jobs.ScoreRunJob{JobID: "job-1", ScheduledAt: time.Now(), MaxRetries: 2}
	if err := q.PublishScoreRun(ctx, job); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	done := waitForStatus(t, store, "job-1", jobs.JobStatusCompleted)
	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
	if done.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", done.RetryCount)
	}
}

func TestQueue_ExhaustedRetriesMarkFailed(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, 1, store)
	q.retryDelay = 10 * time.Millisecond
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := func(ctx context.Context, job *jobs.ScoreRunJob) error {
		return errors.New("persistent failure")
	}
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job := &jobs.ScoreRunJob{JobID: "job-2", ScheduledAt: time.Now(), MaxRetries: 1}
	if err := q.PublishScoreRun(ctx, job); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	failed := waitForStatus(t, store, "job-2", jobs.JobStatusFailed)
	if failed.Error == "" {
		t.Error("failed job carries no error message")
	}
	if failed.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", failed.RetryCount)
	}
}

func TestQueue_PublishAfterCloseFails(t *testing.T) {
	q := NewQueue(1, 1, nil)
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}
	err := q.PublishScoreRun(context.Background(), &jobs.ScoreRunJob{})
	if err == nil {
		t.Error("publish on a closed queue succeeded")
	}
}
