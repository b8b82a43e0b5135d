package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/dvloznov/keyword-bid-charts/internal/jobs"
	"github.com/dvloznov/keyword-bid-charts/internal/jobs/inmemory"
	"github.com/dvloznov/keyword-bid-charts/internal/logger"
	"github.com/dvloznov/keyword-bid-charts/internal/reconcile"
	"github.com/dvloznov/keyword-bid-charts/internal/render"
)

// Step 1: LoadSourcesStep reads the bid history and report files.
type LoadSourcesStep struct {
	Reconciler *reconcile.Reconciler
}

func (s *LoadSourcesStep) Execute(ctx context.Context, state *PipelineState) error {
	src, err := s.Reconciler.Load(ctx, state.Inputs)
	if err != nil {
		return fmt.Errorf("LoadSourcesStep: %w", err)
	}
	state.Sources = src
	return nil
}

// Step 2: ReconcileStep joins the sources and plans the charts.
type ReconcileStep struct {
	Reconciler *reconcile.Reconciler
}

func (s *ReconcileStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Sources == nil {
		return errors.New("ReconcileStep: sources not loaded")
	}
	state.Result = s.Reconciler.Reconcile(ctx, state.Sources)
	return nil
}

// RenderFunc draws one chart. It is render.Render unless replaced in tests.
type RenderFunc func(ctx context.Context, c render.Chart, opts render.Options) ([]byte, error)

// Step 3: RenderStep renders every planned keyword on a worker pool.
type RenderStep struct {
	Root     string
	Options  render.Options
	Workers  int
	FailFast bool

	// Store records job state; a fresh in-memory store is used when nil.
	Store jobs.JobStore

	// Render defaults to render.Render.
	Render RenderFunc
}

type renderRun struct {
	mu     sync.Mutex
	errs   map[string]error
	series map[string]*reconcile.Series
}

func (r *renderRun) done(jobID string, s *reconcile.Series, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.errs[jobID] = err
		return
	}
	r.series[jobID] = s
}

func (s *RenderStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)
	res := state.Result
	if res == nil {
		return errors.New("RenderStep: nothing reconciled")
	}
	if len(res.AdGroups) == 0 {
		log.Warn().Msg("No ad group has bid changes on an active date; nothing to render")
		return nil
	}

	draw := s.Render
	if draw == nil {
		draw = render.Render
	}
	store := s.Store
	if store == nil {
		store = inmemory.NewStore()
	}

	state.RunDir = filepath.Join(s.Root, render.RangeDir(res.From, res.To))
	bounds := make(map[string]reconcile.Bounds, len(res.AdGroups))
	for _, plan := range res.AdGroups {
		bounds[plan.Name] = plan.Bounds
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	run := &renderRun{errs: make(map[string]error), series: make(map[string]*reconcile.Series)}
	handler := func(ctx context.Context, job *jobs.RenderJob) error {
		kwLog := logger.Keyword(logger.FromContext(ctx), job.AdGroup, job.Keyword)

		series := res.Series(job.AdGroup, job.Keyword)
		for column, err := range series.Degraded {
			kwLog.Warn().Err(err).Str("column", column).Msg("Column could not be coerced; omitting it from the chart")
		}

		data, err := draw(ctx, render.NewChart(series, bounds[job.AdGroup]), s.Options)
		if err == nil {
			err = render.WriteFile(job.OutputPath, data)
		}
		run.done(job.JobID, series, err)
		if err != nil {
			if s.FailFast {
				cancel()
			}
			return err
		}
		kwLog.Debug().Str("path", job.OutputPath).Msg("Rendered chart")
		return nil
	}

	queue := inmemory.NewQueue(s.Workers*2, s.Workers, store)
	if err := queue.Start(runCtx, handler); err != nil {
		return fmt.Errorf("RenderStep: %w", err)
	}

	publishErr := s.publish(runCtx, state, store, queue, run)
	if publishErr != nil {
		cancel()
	}
	if err := queue.Stop(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("RenderStep: stopping queue: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("RenderStep: %w", err)
	}
	if publishErr != nil && !errors.Is(publishErr, context.Canceled) {
		return fmt.Errorf("RenderStep: %w", publishErr)
	}

	list, err := store.ListJobs(ctx, jobs.JobFilter{RunID: state.RunID})
	if err != nil {
		return fmt.Errorf("RenderStep: listing jobs: %w", err)
	}
	for _, job := range list {
		switch job.Status {
		case jobs.JobStatusCompleted:
			state.Outputs = append(state.Outputs, job.OutputPath)
			state.Series = append(state.Series, run.series[job.JobID])
		case jobs.JobStatusFailed:
			err := run.errs[job.JobID]
			if err == nil {
				err = errors.New(job.Error)
			}
			state.Failures = append(state.Failures, Failure{AdGroup: job.AdGroup, Keyword: job.Keyword, Err: err})
		}
	}
	state.Summary = jobs.Summarize(list)

	log.Info().
		Int("jobs", state.Summary.Total).
		Int("completed", state.Summary.Completed).
		Int("failed", state.Summary.Failed).
		Str("dir", state.RunDir).
		Msg("Rendering finished")

	if s.FailFast && len(state.Failures) > 0 {
		return fmt.Errorf("RenderStep: %w", state.Failures[0])
	}
	return nil
}

// publish enqueues one job per keyword. Ad groups whose bounds failed get
// their keywords recorded as failed without rendering.
func (s *RenderStep) publish(ctx context.Context, state *PipelineState, store jobs.JobStore, queue *inmemory.Queue, run *renderRun) error {
	log := logger.FromContext(ctx)
	res := state.Result

	for _, plan := range res.AdGroups {
		if plan.BoundsErr != nil {
			log.Error().Err(plan.BoundsErr).
				Str("ad_group", plan.Name).
				Int("keywords", len(plan.Keywords)).
				Msg("Ad group has invalid bid data; skipping all of its keywords")
			for _, kw := range plan.Keywords {
				job := &jobs.RenderJob{
					JobID:      uuid.NewString(),
					RunID:      state.RunID,
					AdGroup:    plan.Name,
					Keyword:    kw,
					OutputPath: render.OutputPath(s.Root, res.From, res.To, plan.Name, kw, s.Options.Format),
					Status:     jobs.JobStatusFailed,
					Error:      plan.BoundsErr.Error(),
				}
				run.done(job.JobID, nil, plan.BoundsErr)
				if err := store.SaveJob(ctx, job); err != nil {
					return err
				}
			}
			if s.FailFast {
				return fmt.Errorf("ad group %q: %w", plan.Name, plan.BoundsErr)
			}
			continue
		}

		log.Info().Str("ad_group", plan.Name).Int("keywords", len(plan.Keywords)).Msg("Queueing ad group")
		for _, kw := range plan.Keywords {
			err := queue.Publish(ctx, &jobs.RenderJob{
				RunID:      state.RunID,
				AdGroup:    plan.Name,
				Keyword:    kw,
				OutputPath: render.OutputPath(s.Root, res.From, res.To, plan.Name, kw, s.Options.Format),
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Step 4: PublishStep uploads the run directory to object storage.
type PublishStep struct {
	Publisher ChartPublisher
	Root      string
}

func (s *PublishStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.Outputs) == 0 {
		log := logger.FromContext(ctx)
		log.Info().Msg("No charts to publish")
		return nil
	}
	uris, err := s.Publisher.PublishDir(ctx, s.Root, state.RunDir)
	state.Published = uris
	if err != nil {
		return fmt.Errorf("PublishStep: %w", err)
	}
	return nil
}

// Step 5: ExportStep writes keyword series to the warehouse. Without a
// preceding render step it exports every planned keyword.
type ExportStep struct {
	Exporter SeriesExporter
}

func (s *ExportStep) Execute(ctx context.Context, state *PipelineState) error {
	series := state.Series
	if series == nil && state.Result != nil {
		for _, plan := range state.Result.AdGroups {
			for _, kw := range plan.Keywords {
				series = append(series, state.Result.Series(plan.Name, kw))
			}
		}
	}
	if err := s.Exporter.Export(ctx, state.RunID, series); err != nil {
		return fmt.Errorf("ExportStep: %w", err)
	}
	return nil
}
