// Package jobs defines the scheduling collaborator: one job per scheduled
// tick, re-published unmodified on failure. The pipeline's idempotent
// storage is what makes this retry contract safe.
package jobs

import (
	"context"
	"time"
)

// JobStatus is the lifecycle state of a scoring-run job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// ScoreRunJob is one scheduled invocation of the scoring pipeline.
type ScoreRunJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// ScheduledAt is the tick that triggered this job.
	ScheduledAt time.Time `json:"scheduled_at"`

	// Status is the current lifecycle state.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was published.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when a worker picked the job up.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job finished, successfully or not.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error holds the last failure, if any.
	Error string `json:"error,omitempty"`

	// RetryCount is how many times this job has been re-published.
	RetryCount int `json:"retry_count"`

	// MaxRetries caps re-publication of a failing job.
	MaxRetries int `json:"max_retries"`
}

// Publisher publishes scoring-run jobs to a queue.
type Publisher interface {
	PublishScoreRun(ctx context.Context, job *ScoreRunJob) error
	Close() error
}

// Consumer consumes scoring-run jobs from a queue.
type Consumer interface {
	// Start begins consuming; handler is invoked per job.
	Start(ctx context.Context, handler JobHandler) error
	// Stop waits for in-flight jobs to finish.
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A returned error marks the job failed and
// eligible for retry.
type JobHandler func(ctx context.Context, job *ScoreRunJob) error

// JobStore tracks job status for observability.
type JobStore interface {
	SaveJob(ctx context.Context, job *ScoreRunJob) error
	GetJob(ctx context.Context, jobID string) (*ScoreRunJob, error)
	ListJobs(ctx context.Context, status JobStatus) ([]*ScoreRunJob, error)
}
