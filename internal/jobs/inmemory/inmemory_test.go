package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/keyword-bid-charts/internal/jobs"
)

func TestQueue_RunsEveryJobOnce(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, 3, store)
	ctx := context.Background()

	var calls atomic.Int32
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.RenderJob) error {
		calls.Add(1)
		if job.Keyword == "bad" {
			return errors.New("boom")
		}
		return nil
	}))

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Publish(ctx, &jobs.RenderJob{RunID: "r1", AdGroup: "A", Keyword: fmt.Sprintf("kw%d", i)}))
	}
	require.NoError(t, q.Publish(ctx, &jobs.RenderJob{RunID: "r1", AdGroup: "A", Keyword: "bad"}))
	require.NoError(t, q.Stop(ctx))

	assert.EqualValues(t, 11, calls.Load(), "failed jobs are not retried")

	list, err := store.ListJobs(ctx, jobs.JobFilter{RunID: "r1"})
	require.NoError(t, err)
	require.Len(t, list, 11)
	for i := 0; i < 10; i++ {
		assert.Equal(t, fmt.Sprintf("kw%d", i), list[i].Keyword, "creation order")
		assert.Equal(t, jobs.JobStatusCompleted, list[i].Status)
		assert.NotNil(t, list[i].StartedAt)
		assert.NotNil(t, list[i].CompletedAt)
	}
	assert.Equal(t, jobs.JobStatusFailed, list[10].Status)
	assert.Equal(t, "boom", list[10].Error)

	assert.Equal(t, jobs.Summary{Total: 11, Completed: 10, Failed: 1}, jobs.Summarize(list))
}

func TestQueue_PublishAfterStop(t *testing.T) {
	q := NewQueue(1, 1, nil)
	require.NoError(t, q.Stop(context.Background()))
	assert.ErrorIs(t, q.Publish(context.Background(), &jobs.RenderJob{}), jobs.ErrQueueClosed)
	assert.ErrorIs(t, q.Start(context.Background(), nil), jobs.ErrQueueClosed)
	assert.NoError(t, q.Stop(context.Background()), "stop is idempotent")
}

func TestQueue_CancelledContextFailsRemainingJobs(t *testing.T) {
	store := NewStore()
	q := NewQueue(5, 1, store)

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Publish(ctx, &jobs.RenderJob{Keyword: fmt.Sprint(i)}))
	}
	cancel()

	var calls atomic.Int32
	require.NoError(t, q.Start(ctx, func(context.Context, *jobs.RenderJob) error {
		calls.Add(1)
		return nil
	}))
	require.NoError(t, q.Stop(context.Background()))

	assert.Zero(t, calls.Load())
	list, err := store.ListJobs(context.Background(), jobs.JobFilter{Status: jobs.JobStatusFailed})
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	assert.Error(t, s.SaveJob(ctx, &jobs.RenderJob{}))

	require.NoError(t, s.SaveJob(ctx, &jobs.RenderJob{JobID: "1", AdGroup: "A", Status: jobs.JobStatusPending}))
	require.NoError(t, s.SaveJob(ctx, &jobs.RenderJob{JobID: "2", AdGroup: "B", Status: jobs.JobStatusPending}))
	require.NoError(t, s.SaveJob(ctx, &jobs.RenderJob{JobID: "1", AdGroup: "A", Status: jobs.JobStatusCompleted}))

	got, err := s.GetJob(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusCompleted, got.Status)

	got.Status = jobs.JobStatusFailed
	again, _ := s.GetJob(ctx, "1")
	assert.Equal(t, jobs.JobStatusCompleted, again.Status, "returned jobs are copies")

	_, err = s.GetJob(ctx, "nope")
	assert.Error(t, err)

	require.NoError(t, s.UpdateJobStatus(ctx, "2", jobs.JobStatusFailed, "bad data"))
	failed, err := s.GetJob(ctx, "2")
	require.NoError(t, err)
	assert.NotNil(t, failed.CompletedAt, "terminal status sets the completion time")
	assert.Error(t, s.UpdateJobStatus(ctx, "nope", jobs.JobStatusFailed, ""))

	list, err := s.ListJobs(ctx, jobs.JobFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "1", list[0].JobID)
	assert.Equal(t, "bad data", list[1].Error)

	list, _ = s.ListJobs(ctx, jobs.JobFilter{AdGroup: "B"})
	assert.Len(t, list, 1)
	list, _ = s.ListJobs(ctx, jobs.JobFilter{Offset: 1, Limit: 5})
	assert.Len(t, list, 1)
	list, _ = s.ListJobs(ctx, jobs.JobFilter{Offset: 3})
	assert.Empty(t, list)
}
