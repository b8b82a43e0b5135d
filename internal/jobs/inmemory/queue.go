package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/keyword-bid-charts/internal/jobs"
	"github.com/dvloznov/keyword-bid-charts/internal/logger"
)

// Queue is an in-memory job publisher and consumer backed by a channel.
// It is safe for concurrent use.
type Queue struct {
	jobChan chan *jobs.RenderJob
	workers int
	wg      sync.WaitGroup
	mu      sync.RWMutex
	store   jobs.JobStore
	closed  bool
	started bool
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can be queued before Publish blocks;
// workers is the number of concurrent handlers started by Start.
func NewQueue(bufferSize, workers int, store jobs.JobStore) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		jobChan: make(chan *jobs.RenderJob, bufferSize),
		workers: workers,
		store:   store,
	}
}

// Publish enqueues a render job.
func (q *Queue) Publish(ctx context.Context, job *jobs.RenderJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return jobs.ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("Publish: failed to save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches the worker goroutines. It may only be called once.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return jobs.ErrQueueClosed
	}
	if q.started {
		return fmt.Errorf("Start: queue already started")
	}
	q.started = true

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

// worker processes jobs until the queue is stopped and drained. Once ctx is
// done, remaining jobs are marked failed without running the handler.
func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for job := range q.jobChan {
		if err := ctx.Err(); err != nil {
			q.finish(ctx, job, err)
			continue
		}
		q.processJob(ctx, job, handler)
	}
}

// processJob executes a single job.
func (q *Queue) processJob(ctx context.Context, job *jobs.RenderJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx)

	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	q.save(ctx, job)

	err := handler(ctx, job)
	if err != nil {
		log.Error().Err(err).
			Str("job_id", job.JobID).
			Str("ad_group", job.AdGroup).
			Str("keyword", job.Keyword).
			Msg("Render job failed")
	}
	q.finish(ctx, job, err)
}

func (q *Queue) finish(ctx context.Context, job *jobs.RenderJob, err error) {
	completedAt := time.Now()
	job.CompletedAt = &completedAt
	if err != nil {
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	}
	q.save(ctx, job)
}

func (q *Queue) save(ctx context.Context, job *jobs.RenderJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(context.WithoutCancel(ctx), job); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
	}
}

// Stop stops accepting jobs, lets the workers drain the queue and waits for
// them, or for ctx.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ensure Queue implements both Publisher and Consumer interfaces.
var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
