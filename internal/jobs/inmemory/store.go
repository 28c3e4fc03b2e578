package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/rmachado/expense-audit/internal/jobs"
)

// Store is an in-memory implementation of JobStore keyed by bundle
// identity. It is safe for concurrent use; data lives only for the
// audit run.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.JudgeBundleJob
}

// NewStore creates a new in-memory job store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*jobs.JudgeBundleJob),
	}
}

// SaveJob implements the JobStore interface. Saving under an existing
// bundle identity overwrites the previous state, which is what makes
// at-least-once retries converge on a single record.
func (s *Store) SaveJob(ctx context.Context, job *jobs.JudgeBundleJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy

	return nil
}

// GetJob implements the JobStore interface.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.JudgeBundleJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs implements the JobStore interface.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.JudgeBundleJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.JudgeBundleJob

	for _, job := range s.jobs {
		if filter.Strategy != "" && job.Strategy != filter.Strategy {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}

		jobCopy := *job
		result = append(result, &jobCopy)
	}

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// Ensure Store implements JobStore interface.
var _ jobs.JobStore = (*Store)(nil)
