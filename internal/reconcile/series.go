package reconcile

import (
	"sort"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/keyword-bid-charts/internal/reports"
)

// MovingWindow is the trailing window of the CTR, CR and RoAS averages.
const MovingWindow = 7

// Series is one keyword's chart data.
type Series struct {
	AdGroup string
	Keyword string
	Points  []reports.KeywordPoint

	// Changes are the bid change marker dates.
	Changes []civil.Date

	// Degraded maps a column name to the coercion error that removed it.
	Degraded map[string]error
}

// joined is one row of the keyword ⟗ history join on Date.
type joined struct {
	date   civil.Date
	rec    *reports.ReconciledRecord
	change *reports.BidChange
}

// KeywordSeries joins the keyword's reconciled records with its bid changes
// on active dates, then fills bids, coerces metrics and computes moving
// averages. Coercion failures only drop the affected column.
func KeywordSeries(merged []reports.ReconciledRecord, history []reports.BidChange, adGroup, keyword string, active DateSet) *Series {
	rows := joinOnDate(merged, history, adGroup, keyword, active)

	s := &Series{
		AdGroup:  adGroup,
		Keyword:  keyword,
		Points:   make([]reports.KeywordPoint, len(rows)),
		Changes:  ChangeDates(history, adGroup, keyword, active),
		Degraded: make(map[string]error),
	}
	for i, r := range rows {
		s.Points[i].Date = r.date
		s.Points[i].IsChange = r.change != nil
	}

	col := func(name string, cell func(joined) string, parse reports.Parser, set func(*reports.KeywordPoint, reports.NullFloat)) {
		values := make([]string, len(rows))
		for i, r := range rows {
			values[i] = cell(r)
		}
		parsed, err := reports.CoerceColumn(name, values, parse)
		if err != nil {
			s.Degraded[name] = err
			return
		}
		for i := range parsed {
			set(&s.Points[i], parsed[i])
		}
	}

	rec := func(f func(*reports.ReconciledRecord) string) func(joined) string {
		return func(j joined) string {
			if j.rec == nil {
				return ""
			}
			return f(j.rec)
		}
	}
	chg := func(f func(*reports.BidChange) string) func(joined) string {
		return func(j joined) string {
			if j.change == nil {
				return ""
			}
			return f(j.change)
		}
	}

	col(reports.ColFromBid, chg(func(c *reports.BidChange) string { return c.FromBid }), reports.ParseAmount,
		func(p *reports.KeywordPoint, v reports.NullFloat) { p.FromBid = v })
	col(reports.ColToBid, chg(func(c *reports.BidChange) string { return c.ToBid }), reports.ParseAmount,
		func(p *reports.KeywordPoint, v reports.NullFloat) { p.ToBid = v })
	col(reports.ColCTR, rec(func(r *reports.ReconciledRecord) string { return r.CTR }), reports.ParsePercent,
		func(p *reports.KeywordPoint, v reports.NullFloat) { p.CTR = v })
	col(reports.ColConversionRate, rec(func(r *reports.ReconciledRecord) string { return r.ConversionRate }), reports.ParsePercent,
		func(p *reports.KeywordPoint, v reports.NullFloat) { p.ConversionRate = v })
	col(reports.ColCPC, rec(func(r *reports.ReconciledRecord) string { return r.CPC }), reports.ParseAmount,
		func(p *reports.KeywordPoint, v reports.NullFloat) { p.CPC = v })
	col(reports.ColImpressions, rec(func(r *reports.ReconciledRecord) string { return r.Impressions }), reports.ParseCount,
		func(p *reports.KeywordPoint, v reports.NullFloat) { p.Impressions = v })
	col(reports.ColRoAS, rec(func(r *reports.ReconciledRecord) string { return r.RoAS }), reports.ParseNumber,
		func(p *reports.KeywordPoint, v reports.NullFloat) { p.RoAS = v })
	col(reports.ColISRank, rec(func(r *reports.ReconciledRecord) string { return r.ISRank }), reports.ParseNumber,
		func(p *reports.KeywordPoint, v reports.NullFloat) { p.ISRank = v })
	col(reports.ColISShare, rec(func(r *reports.ReconciledRecord) string { return r.ISShare }), reports.ParsePercent,
		func(p *reports.KeywordPoint, v reports.NullFloat) { p.ISShare = v })

	fillBids(s.Points)

	ctr := make([]reports.NullFloat, len(s.Points))
	cr := make([]reports.NullFloat, len(s.Points))
	roas := make([]reports.NullFloat, len(s.Points))
	for i, p := range s.Points {
		ctr[i], cr[i], roas[i] = p.CTR, p.ConversionRate, p.RoAS
	}
	ctr = MovingAverage(ctr, MovingWindow)
	cr = MovingAverage(cr, MovingWindow)
	roas = MovingAverage(roas, MovingWindow)
	for i := range s.Points {
		s.Points[i].CTRMoving, s.Points[i].CRMoving, s.Points[i].RoASMoving = ctr[i], cr[i], roas[i]
	}

	return s
}

// joinOnDate full outer joins the keyword's records with its active-date
// bid changes on Date. Rows are ordered by date; a date present on both
// sides yields the cross product of its rows.
func joinOnDate(merged []reports.ReconciledRecord, history []reports.BidChange, adGroup, keyword string, active DateSet) []joined {
	left := make(map[civil.Date][]*reports.ReconciledRecord)
	right := make(map[civil.Date][]*reports.BidChange)
	var dates []civil.Date
	addDate := func(d civil.Date) {
		if _, ok := left[d]; ok {
			return
		}
		if _, ok := right[d]; ok {
			return
		}
		dates = append(dates, d)
	}

	for i := range merged {
		r := &merged[i]
		if r.AdGroup != adGroup || r.Keyword != keyword {
			continue
		}
		addDate(r.Date)
		left[r.Date] = append(left[r.Date], r)
	}
	for i := range history {
		c := &history[i]
		if c.AdGroup != adGroup || c.Keyword != keyword || !active.Contains(c.Date) {
			continue
		}
		addDate(c.Date)
		right[c.Date] = append(right[c.Date], c)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	var rows []joined
	for _, d := range dates {
		ls, rs := left[d], right[d]
		switch {
		case len(ls) > 0 && len(rs) > 0:
			for _, l := range ls {
				for _, r := range rs {
					rows = append(rows, joined{date: d, rec: l, change: r})
				}
			}
		case len(ls) > 0:
			for _, l := range ls {
				rows = append(rows, joined{date: d, rec: l})
			}
		default:
			for _, r := range rs {
				rows = append(rows, joined{date: d, change: r})
			}
		}
	}
	return rows
}

// fillBids backward-fills FromBid and sets Bid to the forward-filled ToBid,
// falling back to the filled FromBid before the first change.
func fillBids(points []reports.KeywordPoint) {
	next := reports.NullFloat{}
	for i := len(points) - 1; i >= 0; i-- {
		if points[i].FromBid.Valid {
			next = points[i].FromBid
		} else {
			points[i].FromBid = next
		}
	}

	last := reports.NullFloat{}
	for i := range points {
		if points[i].ToBid.Valid {
			last = points[i].ToBid
		}
		if last.Valid {
			points[i].Bid = last
		} else {
			points[i].Bid = points[i].FromBid
		}
	}
}

// MovingAverage returns the trailing mean over window points. A point is
// missing until window observations exist and whenever its window holds a
// missing value.
func MovingAverage(values []reports.NullFloat, window int) []reports.NullFloat {
	out := make([]reports.NullFloat, len(values))
	if window <= 0 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		sum := 0.0
		ok := true
		for _, v := range values[i-window+1 : i+1] {
			if !v.Valid {
				ok = false
				break
			}
			sum += v.Float64
		}
		if ok {
			out[i] = reports.Float(sum / float64(window))
		}
	}
	return out
}

// EffectiveBid returns the bid in effect on date: the latest known To Bid
// on or before it, otherwise the next known From Bid on or after it.
// Changes need not be sorted.
func EffectiveBid(changes []reports.BidChange, date civil.Date) (reports.NullFloat, error) {
	sorted := append([]reports.BidChange(nil), changes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	var latest reports.NullFloat
	for _, c := range sorted {
		if c.Date.After(date) {
			break
		}
		to, err := reports.ParseAmount(c.ToBid)
		if err != nil {
			return reports.NullFloat{}, &DataQualityError{AdGroup: c.AdGroup, Column: reports.ColToBid, Value: c.ToBid}
		}
		if to.Valid {
			latest = to
		}
	}
	if latest.Valid {
		return latest, nil
	}

	for _, c := range sorted {
		if c.Date.Before(date) {
			continue
		}
		from, err := reports.ParseAmount(c.FromBid)
		if err != nil {
			return reports.NullFloat{}, &DataQualityError{AdGroup: c.AdGroup, Column: reports.ColFromBid, Value: c.FromBid}
		}
		if from.Valid {
			return from, nil
		}
	}
	return reports.NullFloat{}, nil
}
