package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dvloznov/keyword-bid-charts/internal/config"
	"github.com/dvloznov/keyword-bid-charts/internal/gcsuploader"
	infra "github.com/dvloznov/keyword-bid-charts/internal/infra/bigquery"
	"github.com/dvloznov/keyword-bid-charts/internal/pipeline"
	"github.com/dvloznov/keyword-bid-charts/internal/reconcile"
	"github.com/dvloznov/keyword-bid-charts/internal/render"
	"github.com/dvloznov/keyword-bid-charts/internal/table"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Reconcile the reports and render one chart per keyword",
	Args:  cobra.NoArgs,
	RunE:  runRender,
}

var reconcileOut string

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Write the reconciled records as CSV without rendering",
	Args:  cobra.NoArgs,
	RunE:  runReconcile,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every planned keyword series to BigQuery",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var uploadObject string

var uploadCmd = &cobra.Command{
	Use:   "upload FILE",
	Short: "Upload a local report or chart to the configured bucket",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	// Skip config loading.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "bidcharts %s\n", version)
	},
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileOut, "out", "", "Write the CSV here instead of stdout")
	uploadCmd.Flags().StringVar(&uploadObject, "object", "", "Object name (defaults to the gcs prefix plus the file name)")
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx, runID, cancel := runContext(cmd)
	defer cancel()

	format, err := render.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	src, closeSrc, err := newSource(ctx, cfg.Inputs)
	if err != nil {
		return err
	}
	defer closeSrc()

	deps := pipeline.Deps{
		Reconciler: newReconciler(src),
		Render: &pipeline.RenderStep{
			Root: cfg.Output.Root,
			Options: render.Options{
				Width:  cfg.Output.Width,
				Height: cfg.Output.Height,
				Format: format,
			},
			Workers:  cfg.Render.Workers,
			FailFast: cfg.Render.FailFast,
		},
	}

	if cfg.IsGCSEnabled() {
		pub, err := gcsuploader.NewPublisher(ctx, cfg.GCS.Bucket, cfg.GCS.Prefix)
		if err != nil {
			return err
		}
		defer pub.Close()
		deps.Publisher = pub
	}

	if cfg.BigQuery.Enabled {
		exp, err := newExporter(ctx)
		if err != nil {
			return err
		}
		defer exp.Close()
		deps.Exporter = exp
	}

	state := newState(runID)
	log.Info().Str("run_id", runID).Str("output", cfg.Output.Root).Int("workers", cfg.Render.Workers).Msg("Starting chart run")

	err = pipeline.NewChartPipeline(deps).Execute(ctx, state)
	printSummary(cmd.OutOrStdout(), state)
	if err != nil {
		return err
	}
	if n := len(state.Failures); n > 0 {
		return fmt.Errorf("%d of %d charts failed", n, state.Summary.Total)
	}
	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx, runID, cancel := runContext(cmd)
	defer cancel()

	src, closeSrc, err := newSource(ctx, cfg.Inputs)
	if err != nil {
		return err
	}
	defer closeSrc()

	state := newState(runID)
	if err := pipeline.NewReconcilePipeline(newReconciler(src)).Execute(ctx, state); err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if reconcileOut != "" {
		if err := os.MkdirAll(filepath.Dir(reconcileOut), 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		f, err := os.Create(reconcileOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", reconcileOut, err)
		}
		defer f.Close()
		w = f
	}

	res := state.Result
	if err := reconcile.WriteRecords(w, res.Records); err != nil {
		return err
	}

	log.Info().
		Int("records", len(res.Records)).
		Int("active_dates", len(res.ActiveDates)).
		Int("ad_groups", len(res.AdGroups)).
		Msg("Reconciled reports")
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	if cfg.BigQuery.ProjectID == "" {
		return errors.New("export: a BigQuery project is required (--project, bigquery.project_id or GOOGLE_CLOUD_PROJECT)")
	}

	ctx, runID, cancel := runContext(cmd)
	defer cancel()

	src, closeSrc, err := newSource(ctx, cfg.Inputs)
	if err != nil {
		return err
	}
	defer closeSrc()

	exp, err := newExporter(ctx)
	if err != nil {
		return err
	}
	defer exp.Close()

	state := newState(runID)
	if err := pipeline.NewExportPipeline(newReconciler(src), exp).Execute(ctx, state); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported run %s to %s.%s\n", runID, cfg.BigQuery.Dataset, cfg.BigQuery.Table)
	return nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	if !cfg.IsGCSEnabled() {
		return errors.New("upload: a bucket is required (--gcs-bucket or gcs.bucket)")
	}
	object := uploadObject
	if object == "" {
		object = gcsuploader.ObjectName(cfg.GCS.Prefix, filepath.Base(filePath))
	}

	ctx, _, cancel := runContext(cmd)
	defer cancel()

	log.Info().
		Str("bucket", cfg.GCS.Bucket).
		Str("object", object).
		Str("file", filePath).
		Msg("Uploading file to GCS")

	if err := gcsuploader.UploadFile(ctx, cfg.GCS.Bucket, object, filePath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s to gs://%s/%s\n", filePath, cfg.GCS.Bucket, object)
	return nil
}

func newState(runID string) *pipeline.PipelineState {
	return &pipeline.PipelineState{
		RunID: runID,
		Inputs: reconcile.Inputs{
			HistoryPath:            cfg.Inputs.History,
			TargetingPattern:       cfg.Inputs.Targeting,
			ImpressionSharePattern: cfg.Inputs.ImpressionShare,
		},
	}
}

func newReconciler(src table.Source) *reconcile.Reconciler {
	return reconcile.New(src, reconcile.Options{ChangedKeywordsOnly: cfg.Render.ChangedKeywordsOnly})
}

func newExporter(ctx context.Context) (*infra.BigQueryExporter, error) {
	return infra.NewBigQueryExporter(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.Dataset, cfg.BigQuery.Table)
}

// newSource routes plain paths to the local filesystem and, when any input
// is a gs:// URI, gs:// names to a storage-backed source.
func newSource(ctx context.Context, in config.InputsConfig) (table.Source, func(), error) {
	mux := table.NewMux(table.LocalSource{})
	if !usesGCS(in) {
		return mux, func() {}, nil
	}

	gcs, err := gcsuploader.NewSource(ctx)
	if err != nil {
		return nil, nil, err
	}
	mux.Handle("gs", gcs)
	return mux, func() { gcs.Close() }, nil
}

func usesGCS(in config.InputsConfig) bool {
	for _, name := range []string{in.History, in.Targeting, in.ImpressionShare} {
		if strings.HasPrefix(name, "gs://") {
			return true
		}
	}
	return false
}

func printSummary(w io.Writer, state *pipeline.PipelineState) {
	s := state.Summary
	fmt.Fprintf(w, "Charts: %d total, %d rendered, %d failed\n", s.Total, s.Completed, s.Failed)
	if state.RunDir != "" && s.Completed > 0 {
		fmt.Fprintf(w, "Output: %s\n", state.RunDir)
	}
	for _, f := range state.Failures {
		fmt.Fprintf(w, "  FAILED %s\n", f.Error())
	}
	for _, uri := range state.Published {
		fmt.Fprintf(w, "  published %s\n", uri)
	}
}
