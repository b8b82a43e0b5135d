package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrQueueClosed is returned when publishing to a stopped queue.
var ErrQueueClosed = errors.New("queue is closed")

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
)

// RenderJob represents the rendering of one keyword chart.
type RenderJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// RunID groups the jobs of one invocation.
	RunID string `json:"run_id"`

	AdGroup string `json:"ad_group"`
	Keyword string `json:"keyword"`

	// OutputPath is where the chart is written.
	OutputPath string `json:"output_path"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`
}

// Publisher enqueues jobs.
type Publisher interface {
	// Publish enqueues a render job.
	Publish(ctx context.Context, job *RenderJob) error
}

// Consumer runs jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops accepting jobs and waits for queued and in-flight jobs to finish.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error marks the job failed; jobs
// are never retried.
type JobHandler func(ctx context.Context, job *RenderJob) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *RenderJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*RenderJob, error)

	// ListJobs retrieves jobs in creation order with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*RenderJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	RunID   string
	AdGroup string
	Status  JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}

// Summary counts jobs by outcome.
type Summary struct {
	Total     int
	Completed int
	Failed    int
	Pending   int
}

// Summarize counts the given jobs by status. Running jobs count as pending.
func Summarize(list []*RenderJob) Summary {
	s := Summary{Total: len(list)}
	for _, j := range list {
		switch j.Status {
		case JobStatusCompleted:
			s.Completed++
		case JobStatusFailed:
			s.Failed++
		default:
			s.Pending++
		}
	}
	return s
}
