package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/keyword-bid-charts/internal/jobs"
)

// Store keeps the render jobs of a process in memory. The run summary and
// the failure report are read back from it in the order keywords were
// queued, so listing follows first-save order rather than map order.
type Store struct {
	mu    sync.RWMutex
	jobs  map[string]*jobs.RenderJob
	order []string
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*jobs.RenderJob),
	}
}

// SaveJob records the current state of a render job. Workers save the same
// job several times as it moves from pending to a terminal status; only the
// first save fixes its position in listings.
func (s *Store) SaveJob(ctx context.Context, job *jobs.RenderJob) error {
	if job.JobID == "" {
		return fmt.Errorf("SaveJob: job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.JobID]; !exists {
		s.order = append(s.order, job.JobID)
	}
	saved := *job
	s.jobs[job.JobID] = &saved
	return nil
}

// GetJob returns a copy of one render job.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.RenderJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("GetJob: job not found: %s", jobID)
	}
	out := *job
	return &out, nil
}

// ListJobs returns copies of the jobs matching filter, by run, ad group
// and status, in queueing order.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.RenderJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*jobs.RenderJob{}
	for _, id := range s.order {
		job := s.jobs[id]
		switch {
		case filter.RunID != "" && job.RunID != filter.RunID,
			filter.AdGroup != "" && job.AdGroup != filter.AdGroup,
			filter.Status != "" && job.Status != filter.Status:
			continue
		}
		out := *job
		result = append(result, &out)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.RenderJob{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// UpdateJobStatus moves a render job to status. Completed and failed jobs
// get a completion time if they have none.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("UpdateJobStatus: job not found: %s", jobID)
	}

	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	if job.CompletedAt == nil && (status == jobs.JobStatusCompleted || status == jobs.JobStatusFailed) {
		now := time.Now()
		job.CompletedAt = &now
	}
	return nil
}

var _ jobs.JobStore = (*Store)(nil)
