package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/keyword-bid-charts/internal/logger"
	"github.com/dvloznov/keyword-bid-charts/internal/reconcile"
)

// SeriesExporter writes keyword series to a warehouse.
// This interface enables mocking of BigQuery in pipeline tests.
type SeriesExporter interface {
	Export(ctx context.Context, runID string, series []*reconcile.Series) error
	Close() error
}

// BigQueryExporter is the concrete SeriesExporter backed by BigQuery. It
// holds a shared BigQuery client for the whole run.
type BigQueryExporter struct {
	client    *bigquery.Client
	datasetID string
	tableID   string
	now       func() time.Time
}

// NewBigQueryExporter creates a BigQueryExporter with a shared client.
func NewBigQueryExporter(ctx context.Context, projectID, datasetID, tableID string) (*BigQueryExporter, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryExporter: creating client: %w", err)
	}
	return &BigQueryExporter{
		client:    client,
		datasetID: datasetID,
		tableID:   tableID,
		now:       time.Now,
	}, nil
}

// Close closes the BigQuery client connection.
func (e *BigQueryExporter) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// EnsureTable delegates to EnsureTableWithClient with the shared client.
func (e *BigQueryExporter) EnsureTable(ctx context.Context) error {
	return EnsureTableWithClient(ctx, e.client, e.datasetID, e.tableID)
}

// Export ensures the table exists and inserts every point of every series.
func (e *BigQueryExporter) Export(ctx context.Context, runID string, series []*reconcile.Series) error {
	if err := e.EnsureTable(ctx); err != nil {
		return err
	}

	exportedAt := e.now().UTC()
	var rows []*KeywordPointRow
	for _, s := range series {
		rows = append(rows, NewKeywordPointRows(runID, s, exportedAt)...)
	}

	if err := InsertKeywordPointsWithClient(ctx, e.client, e.datasetID, e.tableID, rows); err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("run_id", runID).
		Int("rows", len(rows)).
		Str("table", e.datasetID+"."+e.tableID).
		Msg("Exported keyword series to BigQuery")
	return nil
}

var _ SeriesExporter = (*BigQueryExporter)(nil)
