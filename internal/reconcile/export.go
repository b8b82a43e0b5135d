package reconcile

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/dvloznov/keyword-bid-charts/internal/reports"
	"github.com/dvloznov/keyword-bid-charts/internal/table"
)

var recordHeader = []string{
	reports.ColDate, reports.ColAdGroupName, reports.ColTargeting,
	"Has Targeting", "Has Impression Share",
	reports.ColCPC, reports.ColImpressions, reports.ColCTR, reports.ColConversionRate, reports.ColRoAS,
	reports.ColISRank, reports.ColISShare,
}

// WriteRecords writes reconciled records as CSV. Extra targeting columns
// follow the fixed ones in sorted order.
func WriteRecords(w io.Writer, records []reports.ReconciledRecord) error {
	extraSet := make(map[string]bool)
	for _, r := range records {
		for k := range r.Extra {
			extraSet[k] = true
		}
	}
	extra := make([]string, 0, len(extraSet))
	for k := range extraSet {
		extra = append(extra, k)
	}
	sort.Strings(extra)

	header := append(append([]string(nil), recordHeader...), extra...)
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := []string{
			r.Date.String(), r.AdGroup, r.Keyword,
			strconv.FormatBool(r.HasTargeting), strconv.FormatBool(r.HasImpressionShare),
			r.CPC, r.Impressions, r.CTR, r.ConversionRate, r.RoAS,
			r.ISRank, r.ISShare,
		}
		for _, k := range extra {
			row = append(row, r.Extra[k])
		}
		rows = append(rows, row)
	}

	if err := table.WriteCSV(w, header, rows); err != nil {
		return fmt.Errorf("WriteRecords: %w", err)
	}
	return nil
}
