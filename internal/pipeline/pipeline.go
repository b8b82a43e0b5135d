package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/keyword-bid-charts/internal/jobs"
	"github.com/dvloznov/keyword-bid-charts/internal/reconcile"
)

// PipelineStep represents a single step in the chart pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// Failure is a keyword that could not be charted.
type Failure struct {
	AdGroup string
	Keyword string
	Err     error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s/%s: %v", f.AdGroup, f.Keyword, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	RunID  string
	Inputs reconcile.Inputs

	Sources *reconcile.Sources
	Result  *reconcile.Result

	// RunDir is the date-range directory charts are written under.
	RunDir  string
	Outputs []string

	// Series are the keyword series that rendered successfully, in job order.
	Series []*reconcile.Series

	Failures  []Failure
	Summary   jobs.Summary
	Published []string
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// Deps are the collaborators of the chart pipeline. Publisher and Exporter
// are optional.
type Deps struct {
	Reconciler *reconcile.Reconciler
	Render     *RenderStep
	Publisher  ChartPublisher
	Exporter   SeriesExporter
}

// NewChartPipeline creates the standard pipeline: load, reconcile, render,
// then publish and export when configured.
func NewChartPipeline(d Deps) *Pipeline {
	steps := []PipelineStep{
		&LoadSourcesStep{Reconciler: d.Reconciler},
		&ReconcileStep{Reconciler: d.Reconciler},
		d.Render,
	}
	if d.Publisher != nil {
		steps = append(steps, &PublishStep{Publisher: d.Publisher, Root: d.Render.Root})
	}
	if d.Exporter != nil {
		steps = append(steps, &ExportStep{Exporter: d.Exporter})
	}
	return NewPipeline(steps...)
}

// NewReconcilePipeline loads and reconciles without rendering.
func NewReconcilePipeline(rc *reconcile.Reconciler) *Pipeline {
	return NewPipeline(&LoadSourcesStep{Reconciler: rc}, &ReconcileStep{Reconciler: rc})
}

// NewExportPipeline loads, reconciles and exports every keyword series.
func NewExportPipeline(rc *reconcile.Reconciler, exporter SeriesExporter) *Pipeline {
	return NewPipeline(&LoadSourcesStep{Reconciler: rc}, &ReconcileStep{Reconciler: rc}, &ExportStep{Exporter: exporter})
}
