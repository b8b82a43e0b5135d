package pipeline

import (
	"github.com/dvloznov/keyword-bid-charts/internal/gcsuploader"
	infra "github.com/dvloznov/keyword-bid-charts/internal/infra/bigquery"
)

// ChartPublisher uploads a run's chart directory to object storage.
type ChartPublisher = gcsuploader.ChartPublisher

// SeriesExporter writes keyword series to a warehouse.
type SeriesExporter = infra.SeriesExporter
