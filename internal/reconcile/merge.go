package reconcile

import (
	"sort"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/keyword-bid-charts/internal/reports"
)

type joinKey struct {
	date    civil.Date
	adGroup string
	keyword string
}

// Merge full outer joins targeting rows with impression share rows on
// (Date, Ad Group Name, Targeting = Customer Search Term). Every input row
// appears in at least one output record. Output is ordered by
// (Date, Ad Group, Keyword).
func Merge(tr []reports.TargetingRow, is []reports.ImpressionShareRow) []reports.ReconciledRecord {
	byKey := make(map[joinKey][]int, len(is))
	for i, row := range is {
		k := joinKey{row.Date, row.AdGroup, row.SearchTerm}
		byKey[k] = append(byKey[k], i)
	}

	matched := make([]bool, len(is))
	out := make([]reports.ReconciledRecord, 0, len(tr)+len(is))

	for _, t := range tr {
		base := reports.ReconciledRecord{
			Date:           t.Date,
			AdGroup:        t.AdGroup,
			Keyword:        t.Targeting,
			HasTargeting:   true,
			CPC:            t.CPC,
			Impressions:    t.Impressions,
			CTR:            t.CTR,
			ConversionRate: t.ConversionRate,
			RoAS:           t.RoAS,
			Extra:          t.Extra,
		}

		idx := byKey[joinKey{t.Date, t.AdGroup, t.Targeting}]
		if len(idx) == 0 {
			out = append(out, base)
			continue
		}
		for _, i := range idx {
			rec := base
			rec.HasImpressionShare = true
			rec.ISRank = is[i].Rank
			rec.ISShare = is[i].Share
			matched[i] = true
			out = append(out, rec)
		}
	}

	for i, row := range is {
		if matched[i] {
			continue
		}
		out = append(out, reports.ReconciledRecord{
			Date:               row.Date,
			AdGroup:            row.AdGroup,
			Keyword:            row.SearchTerm,
			HasImpressionShare: true,
			ISRank:             row.Rank,
			ISShare:            row.Share,
		})
	}

	sort.SliceStable(out, func(a, b int) bool {
		x, y := out[a], out[b]
		if x.Date != y.Date {
			return x.Date.Before(y.Date)
		}
		if x.AdGroup != y.AdGroup {
			return x.AdGroup < y.AdGroup
		}
		return x.Keyword < y.Keyword
	})
	return out
}
