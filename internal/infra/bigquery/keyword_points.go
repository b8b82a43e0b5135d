package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/googleapi"

	"github.com/dvloznov/keyword-bid-charts/internal/logger"
	"github.com/dvloznov/keyword-bid-charts/internal/reconcile"
	"github.com/dvloznov/keyword-bid-charts/internal/reports"
)

// insertBatchSize caps the rows sent in one streaming insert.
const insertBatchSize = 500

// KeywordPointRow is one charted point of one keyword in BigQuery.
type KeywordPointRow struct {
	RunID   string `bigquery:"run_id"`
	AdGroup string `bigquery:"ad_group"`
	Keyword string `bigquery:"keyword"`

	Date        civil.Date `bigquery:"date"`
	IsBidChange bool       `bigquery:"is_bid_change"`

	Impressions    bigquery.NullFloat64 `bigquery:"impressions"`
	CPC            bigquery.NullFloat64 `bigquery:"cpc"`
	CTR            bigquery.NullFloat64 `bigquery:"ctr"`
	ConversionRate bigquery.NullFloat64 `bigquery:"conversion_rate"`
	RoAS           bigquery.NullFloat64 `bigquery:"roas"`
	ISRank         bigquery.NullFloat64 `bigquery:"is_rank"`
	ISShare        bigquery.NullFloat64 `bigquery:"is_share"`

	FromBid bigquery.NullFloat64 `bigquery:"from_bid"`
	ToBid   bigquery.NullFloat64 `bigquery:"to_bid"`
	Bid     bigquery.NullFloat64 `bigquery:"bid"`

	CTRMoving  bigquery.NullFloat64 `bigquery:"ctr_moving"`
	CRMoving   bigquery.NullFloat64 `bigquery:"cr_moving"`
	RoASMoving bigquery.NullFloat64 `bigquery:"roas_moving"`

	ExportedTS time.Time `bigquery:"exported_ts"`
}

func nullFloat(v reports.NullFloat) bigquery.NullFloat64 {
	return bigquery.NullFloat64{Float64: v.Float64, Valid: v.Valid}
}

// NewKeywordPointRows maps a keyword series to rows.
func NewKeywordPointRows(runID string, s *reconcile.Series, exportedAt time.Time) []*KeywordPointRow {
	rows := make([]*KeywordPointRow, 0, len(s.Points))
	for _, p := range s.Points {
		rows = append(rows, &KeywordPointRow{
			RunID:          runID,
			AdGroup:        s.AdGroup,
			Keyword:        s.Keyword,
			Date:           p.Date,
			IsBidChange:    p.IsChange,
			Impressions:    nullFloat(p.Impressions),
			CPC:            nullFloat(p.CPC),
			CTR:            nullFloat(p.CTR),
			ConversionRate: nullFloat(p.ConversionRate),
			RoAS:           nullFloat(p.RoAS),
			ISRank:         nullFloat(p.ISRank),
			ISShare:        nullFloat(p.ISShare),
			FromBid:        nullFloat(p.FromBid),
			ToBid:          nullFloat(p.ToBid),
			Bid:            nullFloat(p.Bid),
			CTRMoving:      nullFloat(p.CTRMoving),
			CRMoving:       nullFloat(p.CRMoving),
			RoASMoving:     nullFloat(p.RoASMoving),
			ExportedTS:     exportedAt,
		})
	}
	return rows
}

// KeywordPointSchema is the table schema inferred from KeywordPointRow.
func KeywordPointSchema() (bigquery.Schema, error) {
	schema, err := bigquery.InferSchema(KeywordPointRow{})
	if err != nil {
		return nil, fmt.Errorf("KeywordPointSchema: %w", err)
	}
	return schema, nil
}

// EnsureTableWithClient creates the dataset and the date-partitioned table
// if they do not exist yet.
func EnsureTableWithClient(ctx context.Context, client *bigquery.Client, datasetID, tableID string) error {
	log := logger.FromContext(ctx)

	ds := client.Dataset(datasetID)
	if err := ds.Create(ctx, nil); err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("EnsureTable: creating dataset %s: %w", datasetID, err)
	}

	schema, err := KeywordPointSchema()
	if err != nil {
		return fmt.Errorf("EnsureTable: %w", err)
	}

	meta := &bigquery.TableMetadata{
		Schema:           schema,
		TimePartitioning: &bigquery.TimePartitioning{Field: "date"},
	}
	if err := ds.Table(tableID).Create(ctx, meta); err != nil {
		if isAlreadyExists(err) {
			return nil
		}
		return fmt.Errorf("EnsureTable: creating table %s.%s: %w", datasetID, tableID, err)
	}

	log.Info().Str("dataset", datasetID).Str("table", tableID).Msg("Created BigQuery table")
	return nil
}

func isAlreadyExists(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}

// InsertKeywordPointsWithClient streams rows in batches using the provided
// BigQuery client.
func InsertKeywordPointsWithClient(ctx context.Context, client *bigquery.Client, datasetID, tableID string, rows []*KeywordPointRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := client.Dataset(datasetID).Table(tableID).Inserter()
	for _, batch := range batches(rows, insertBatchSize) {
		if err := inserter.Put(ctx, batch); err != nil {
			return fmt.Errorf("InsertKeywordPoints: inserting %d rows: %w", len(batch), err)
		}
	}
	return nil
}

// batches splits rows into consecutive chunks of at most size rows.
func batches(rows []*KeywordPointRow, size int) [][]*KeywordPointRow {
	var out [][]*KeywordPointRow
	for len(rows) > size {
		out = append(out, rows[:size])
		rows = rows[size:]
	}
	if len(rows) > 0 {
		out = append(out, rows)
	}
	return out
}
