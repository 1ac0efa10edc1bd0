package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/cnoret/fraudpipe/internal/jobs"
)

// Store is an in-memory JobStore. Contents are lost on restart, which is
// acceptable: job records exist for observability, not recovery.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.ScoreRunJob
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*jobs.ScoreRunJob)}
}

// SaveJob stores or updates a job.
func (s *Store) SaveJob(ctx context.Context, job *jobs.ScoreRunJob) error {
	if job.JobID == "" {
		return fmt.Errorf("inmemory: job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *job
	s.jobs[job.JobID] = &cp
	return nil
}

// GetJob returns a copy of the stored job.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.ScoreRunJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("inmemory: job not found: %s", jobID)
	}
	cp := *job
	return &cp, nil
}

// ListJobs returns copies of stored jobs, optionally filtered by status.
func (s *Store) ListJobs(ctx context.Context, status jobs.JobStatus) ([]*jobs.ScoreRunJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*jobs.ScoreRunJob
	for _, job := range s.jobs {
		if status != "" && job.Status != status {
			continue
		}
		cp := *job
		out = append(out, &cp)
	}
	return out, nil
}
