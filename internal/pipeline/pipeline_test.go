package pipeline_test

import (
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/keyword-bid-charts/internal/jobs/inmemory"
	"github.com/dvloznov/keyword-bid-charts/internal/pipeline"
	"github.com/dvloznov/keyword-bid-charts/internal/reconcile"
	"github.com/dvloznov/keyword-bid-charts/internal/render"
	"github.com/dvloznov/keyword-bid-charts/internal/table"
)

// MockPublisher is a mock implementation of ChartPublisher for testing.
type MockPublisher struct {
	PublishDirFunc func(ctx context.Context, root, dir string) ([]string, error)
	closed         bool
}

func (m *MockPublisher) PublishDir(ctx context.Context, root, dir string) ([]string, error) {
	if m.PublishDirFunc != nil {
		return m.PublishDirFunc(ctx, root, dir)
	}
	return nil, nil
}

func (m *MockPublisher) Close() error {
	m.closed = true
	return nil
}

// MockExporter is a mock implementation of SeriesExporter for testing.
type MockExporter struct {
	ExportFunc func(ctx context.Context, runID string, series []*reconcile.Series) error
}

func (m *MockExporter) Export(ctx context.Context, runID string, series []*reconcile.Series) error {
	if m.ExportFunc != nil {
		return m.ExportFunc(ctx, runID, series)
	}
	return nil
}

func (m *MockExporter) Close() error { return nil }

const (
	trHeader = "Date,Ad Group Name,Targeting,Cost Per Click (CPC),Impressions,Click-Thru Rate (CTR),7 Day Conversion Rate,Total Return on Advertising Spend (RoAS)\n"
	isHeader = "Date,Customer Search Term,Ad Group Name,Match Type,Search Term Impression Rank,Search Term Impression Share\n"
)

func writeFixtures(t *testing.T) (string, reconcile.Inputs) {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"bid_history.csv": "Date,Ad Group,Keyword,From Bid,To Bid\n" +
			"2024-01-01,A,k1,1.00,1.20\n" +
			"2024-01-02,B,k1,abc,1.00\n" +
			"2023-05-01,C,k1,1.00,2.00\n",
		"tr/report.csv": trHeader +
			"2024-01-01,A,k1,$1.10,100,1%,5%,2\n" +
			"2024-01-02,A,k1,$1.15,110,1%,5%,2\n" +
			"2024-01-02,A,k2,$0.90,50,2%,4%,1\n" +
			"2024-01-02,B,k1,$0.70,10,1%,1%,1\n" +
			"2024-01-01,C,k1,$0.50,10,1%,1%,1\n",
		"is/report.csv": isHeader +
			"2024-01-01,k1,A,EXACT,1,50%\n",
	}
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir, reconcile.Inputs{
		HistoryPath:            filepath.Join(dir, "bid_history.csv"),
		TargetingPattern:       filepath.Join(dir, "tr", "*.csv"),
		ImpressionSharePattern: filepath.Join(dir, "is", "*.csv"),
	}
}

func fakeRender(fail map[string]bool) pipeline.RenderFunc {
	return func(ctx context.Context, c render.Chart, opts render.Options) ([]byte, error) {
		if fail[c.Keyword] {
			return nil, errors.New("render failed")
		}
		return []byte(c.AdGroup + "/" + c.Keyword), nil
	}
}

func TestChartPipeline(t *testing.T) {
	dir, inputs := writeFixtures(t)
	root := filepath.Join(dir, "Images")
	rc := reconcile.New(table.LocalSource{}, reconcile.Options{})

	var publishedDir string
	publisher := &MockPublisher{
		PublishDirFunc: func(ctx context.Context, r, d string) ([]string, error) {
			publishedDir = d
			return []string{"gs://bkt/x.png"}, nil
		},
	}
	var exported []*reconcile.Series
	exporter := &MockExporter{
		ExportFunc: func(ctx context.Context, runID string, series []*reconcile.Series) error {
			assert.Equal(t, "run-1", runID)
			exported = series
			return nil
		},
	}

	store := inmemory.NewStore()
	p := pipeline.NewChartPipeline(pipeline.Deps{
		Reconciler: rc,
		Render: &pipeline.RenderStep{
			Root:    root,
			Options: render.DefaultOptions(),
			Workers: 2,
			Store:   store,
			Render:  fakeRender(nil),
		},
		Publisher: publisher,
		Exporter:  exporter,
	})

	state := &pipeline.PipelineState{RunID: "run-1", Inputs: inputs}
	require.NoError(t, p.Execute(context.Background(), state))

	runDir := filepath.Join(root, "2024.01.01_2024.01.02")
	assert.Equal(t, runDir, state.RunDir)
	assert.Equal(t, runDir, publishedDir)
	assert.Equal(t, []string{"gs://bkt/x.png"}, state.Published)

	for _, kw := range []string{"k1", "k2"} {
		data, err := os.ReadFile(filepath.Join(runDir, "A", kw+".png"))
		require.NoError(t, err)
		assert.Equal(t, "A/"+kw, string(data))
	}
	assert.NoDirExists(t, filepath.Join(runDir, "C"), "ad groups without active-date history are skipped")
	assert.NoDirExists(t, filepath.Join(runDir, "B"), "failed ad groups write nothing")

	require.Len(t, state.Failures, 1)
	assert.Equal(t, "B", state.Failures[0].AdGroup)
	var dq *reconcile.DataQualityError
	assert.True(t, errors.As(state.Failures[0], &dq))

	assert.Equal(t, 3, state.Summary.Total)
	assert.Equal(t, 2, state.Summary.Completed)
	assert.Equal(t, 1, state.Summary.Failed)
	assert.Len(t, state.Outputs, 2)
	assert.Len(t, exported, 2)
}

func TestRenderStep_DrawsRealCharts(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"bid_history.csv": "Date,Ad Group,Keyword,From Bid,To Bid\n" +
			"2024-01-02,A,changed,1.00,1.20\n",
		"tr/report.csv": trHeader +
			"2024-01-01,A,changed,$1.10,100,1%,5%,2\n" +
			"2024-01-02,A,changed,$1.15,110,1%,5%,2\n" +
			"2024-01-01,A,unchanged,$0.90,50,2%,4%,1\n" +
			"2024-01-02,A,unchanged,$0.95,55,2%,4%,1\n" +
			"2024-01-01,A,bad ctr,$0.70,10,oops,1%,1\n" +
			"2024-01-02,A,bad ctr,$0.75,12,1%,1%,1\n",
		"is/report.csv": isHeader +
			"2024-01-01,changed,A,EXACT,1,50%\n",
	}
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	inputs := reconcile.Inputs{
		HistoryPath:            filepath.Join(dir, "bid_history.csv"),
		TargetingPattern:       filepath.Join(dir, "tr", "*.csv"),
		ImpressionSharePattern: filepath.Join(dir, "is", "*.csv"),
	}
	root := filepath.Join(dir, "Images")

	p := pipeline.NewChartPipeline(pipeline.Deps{
		Reconciler: reconcile.New(table.LocalSource{}, reconcile.Options{}),
		Render: &pipeline.RenderStep{
			Root:    root,
			Options: render.DefaultOptions(),
			Workers: 2,
		},
	})

	state := &pipeline.PipelineState{RunID: "real", Inputs: inputs}
	require.NoError(t, p.Execute(context.Background(), state))
	assert.Empty(t, state.Failures)
	assert.Equal(t, 3, state.Summary.Completed)

	for _, kw := range []string{"changed", "unchanged", "bad ctr"} {
		f, err := os.Open(filepath.Join(root, "2024.01.01_2024.01.02", "A", kw+".png"))
		require.NoError(t, err, kw)
		img, err := png.Decode(f)
		f.Close()
		require.NoError(t, err, kw)
		assert.Equal(t, 1000, img.Bounds().Dx(), kw)
	}
}

func TestRenderStep_KeywordFailureDoesNotAbort(t *testing.T) {
	dir, inputs := writeFixtures(t)
	rc := reconcile.New(table.LocalSource{}, reconcile.Options{})

	p := pipeline.NewChartPipeline(pipeline.Deps{
		Reconciler: rc,
		Render: &pipeline.RenderStep{
			Root:    filepath.Join(dir, "out"),
			Options: render.DefaultOptions(),
			Workers: 1,
			Render:  fakeRender(map[string]bool{"k2": true}),
		},
	})

	state := &pipeline.PipelineState{RunID: "r", Inputs: inputs}
	require.NoError(t, p.Execute(context.Background(), state))

	require.Len(t, state.Failures, 2)
	var keywords []string
	for _, f := range state.Failures {
		keywords = append(keywords, f.AdGroup+"/"+f.Keyword)
	}
	assert.ElementsMatch(t, []string{"A/k2", "B/k1"}, keywords)
	assert.Len(t, state.Outputs, 1)
}

func TestRenderStep_FailFast(t *testing.T) {
	dir, inputs := writeFixtures(t)
	rc := reconcile.New(table.LocalSource{}, reconcile.Options{ChangedKeywordsOnly: true})

	p := pipeline.NewChartPipeline(pipeline.Deps{
		Reconciler: rc,
		Render: &pipeline.RenderStep{
			Root:     filepath.Join(dir, "out"),
			Options:  render.DefaultOptions(),
			Workers:  1,
			FailFast: true,
			Render:   fakeRender(nil),
		},
	})

	err := p.Execute(context.Background(), &pipeline.PipelineState{RunID: "r", Inputs: inputs})
	require.Error(t, err)
	var dq *reconcile.DataQualityError
	assert.True(t, errors.As(err, &dq), "got %v", err)
}

func TestReconcilePipeline_StructuralError(t *testing.T) {
	dir, inputs := writeFixtures(t)
	inputs.TargetingPattern = filepath.Join(dir, "missing", "*.csv")

	err := pipeline.NewReconcilePipeline(reconcile.New(table.LocalSource{}, reconcile.Options{})).
		Execute(context.Background(), &pipeline.PipelineState{Inputs: inputs})

	var serr *table.StructuralError
	require.True(t, errors.As(err, &serr), "got %v", err)
	assert.True(t, strings.Contains(err.Error(), "pipeline step 1 failed"))
}

func TestExportPipeline_ExportsEveryPlannedKeyword(t *testing.T) {
	_, inputs := writeFixtures(t)

	var got []string
	exporter := &MockExporter{
		ExportFunc: func(ctx context.Context, runID string, series []*reconcile.Series) error {
			for _, s := range series {
				got = append(got, s.AdGroup+"/"+s.Keyword)
			}
			return nil
		},
	}

	p := pipeline.NewExportPipeline(reconcile.New(table.LocalSource{}, reconcile.Options{}), exporter)
	require.NoError(t, p.Execute(context.Background(), &pipeline.PipelineState{RunID: "r", Inputs: inputs}))
	assert.Equal(t, []string{"A/k1", "A/k2", "B/k1"}, got)
}

func TestPublishStep_SkipsWhenNothingRendered(t *testing.T) {
	publisher := &MockPublisher{
		PublishDirFunc: func(ctx context.Context, root, dir string) ([]string, error) {
			t.Fatal("PublishDir should not be called")
			return nil, nil
		},
	}
	step := &pipeline.PublishStep{Publisher: publisher, Root: "out"}
	require.NoError(t, step.Execute(context.Background(), &pipeline.PipelineState{}))
}
