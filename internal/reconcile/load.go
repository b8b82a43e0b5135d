package reconcile

import (
	"context"
	"fmt"

	"github.com/dvloznov/keyword-bid-charts/internal/reports"
	"github.com/dvloznov/keyword-bid-charts/internal/table"
)

var (
	historySpec = table.Spec{
		DateColumn: reports.ColDate,
		Required:   []string{reports.ColAdGroup, reports.ColKeyword, reports.ColFromBid, reports.ColToBid},
	}

	targetingSpec = table.Spec{
		DateColumn: reports.ColDate,
		Required: []string{
			reports.ColTargeting, reports.ColAdGroupName, reports.ColCPC, reports.ColImpressions,
			reports.ColCTR, reports.ColConversionRate, reports.ColRoAS,
		},
		Key: []string{reports.ColDate, reports.ColTargeting, reports.ColAdGroupName},
	}

	impressionShareSpec = table.Spec{
		DateColumn: reports.ColDate,
		Required: []string{
			reports.ColSearchTerm, reports.ColAdGroupName, reports.ColMatchType,
			reports.ColISRank, reports.ColISShare,
		},
		Key: []string{reports.ColDate, reports.ColSearchTerm, reports.ColAdGroupName},
	}
)

// LoadHistory reads the bid change history. Cells holding the spreadsheet
// error sentinel are read as missing.
func LoadHistory(ctx context.Context, src table.Source, path string) ([]reports.BidChange, error) {
	t, err := table.Load(ctx, src, path, historySpec)
	if err != nil {
		return nil, fmt.Errorf("LoadHistory: %w", err)
	}

	changes := make([]reports.BidChange, 0, t.Len())
	for _, r := range t.Rows {
		changes = append(changes, reports.BidChange{
			Date:    r.Date,
			AdGroup: clean(t.Value(r, reports.ColAdGroup)),
			Keyword: clean(t.Value(r, reports.ColKeyword)),
			FromBid: clean(t.Value(r, reports.ColFromBid)),
			ToBid:   clean(t.Value(r, reports.ColToBid)),
		})
	}
	return changes, nil
}

func clean(cell string) string {
	if cell == reports.InvalidValueSentinel {
		return ""
	}
	return cell
}

// LoadTargeting reads and merges every targeting report matching pattern.
func LoadTargeting(ctx context.Context, src table.Source, pattern string) (*table.Table, error) {
	t, err := table.LoadAndMerge(ctx, src, pattern, targetingSpec)
	if err != nil {
		return nil, fmt.Errorf("LoadTargeting: %w", err)
	}
	return t, nil
}

// LoadImpressionShare reads and merges every impression share report
// matching pattern. Deduplication happens before the match type filter.
func LoadImpressionShare(ctx context.Context, src table.Source, pattern string) (*table.Table, error) {
	t, err := table.LoadAndMerge(ctx, src, pattern, impressionShareSpec)
	if err != nil {
		return nil, fmt.Errorf("LoadImpressionShare: %w", err)
	}
	return t, nil
}

// TargetingRows converts a merged targeting table to typed rows, keeping
// the columns it does not model in Extra.
func TargetingRows(t *table.Table) []reports.TargetingRow {
	modelled := map[string]bool{reports.ColDate: true}
	for _, c := range targetingSpec.Required {
		modelled[c] = true
	}

	rows := make([]reports.TargetingRow, 0, t.Len())
	for _, r := range t.Rows {
		row := reports.TargetingRow{
			Date:           r.Date,
			AdGroup:        t.Value(r, reports.ColAdGroupName),
			Targeting:      t.Value(r, reports.ColTargeting),
			CPC:            t.Value(r, reports.ColCPC),
			Impressions:    t.Value(r, reports.ColImpressions),
			CTR:            t.Value(r, reports.ColCTR),
			ConversionRate: t.Value(r, reports.ColConversionRate),
			RoAS:           t.Value(r, reports.ColRoAS),
		}
		for _, c := range t.Columns {
			if modelled[c] {
				continue
			}
			if row.Extra == nil {
				row.Extra = make(map[string]string)
			}
			row.Extra[c] = t.Value(r, c)
		}
		rows = append(rows, row)
	}
	return rows
}

// FilterExact keeps EXACT match type rows and projects them to the columns
// used downstream.
func FilterExact(t *table.Table) []reports.ImpressionShareRow {
	var rows []reports.ImpressionShareRow
	for _, r := range t.Rows {
		if t.Value(r, reports.ColMatchType) != reports.MatchTypeExact {
			continue
		}
		rows = append(rows, reports.ImpressionShareRow{
			Date:       r.Date,
			SearchTerm: t.Value(r, reports.ColSearchTerm),
			AdGroup:    t.Value(r, reports.ColAdGroupName),
			Rank:       t.Value(r, reports.ColISRank),
			Share:      t.Value(r, reports.ColISShare),
		})
	}
	return rows
}
