package reconcile

import (
	"fmt"
	"math"

	"github.com/dvloznov/keyword-bid-charts/internal/reports"
)

// DataQualityError reports a value that had to be numeric and was not.
// It is never swallowed: the ad group it belongs to fails.
type DataQualityError struct {
	AdGroup string
	Column  string
	Value   string
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("ad group %q: column %q: value %q is not numeric", e.AdGroup, e.Column, e.Value)
}

// Bounds is the bid axis range shared by every keyword chart of an ad group.
type Bounds struct {
	Min   float64
	Max   float64
	Valid bool
}

func (b *Bounds) include(v float64) {
	if !b.Valid {
		b.Min, b.Max, b.Valid = v, v, true
		return
	}
	b.Min = math.Min(b.Min, v)
	b.Max = math.Max(b.Max, v)
}

// BidBounds returns the min and max across the ad group's whole bid history
// (From and To, not restricted to active dates) and its CPC values.
func BidBounds(history []reports.BidChange, merged []reports.ReconciledRecord, adGroup string) (Bounds, error) {
	var b Bounds

	for _, c := range history {
		if c.AdGroup != adGroup {
			continue
		}
		for _, cell := range []struct{ column, value string }{
			{reports.ColFromBid, c.FromBid},
			{reports.ColToBid, c.ToBid},
		} {
			v, err := reports.ParseAmount(cell.value)
			if err != nil {
				return Bounds{}, &DataQualityError{AdGroup: adGroup, Column: cell.column, Value: cell.value}
			}
			if v.Valid {
				b.include(v.Float64)
			}
		}
	}

	for _, r := range merged {
		if r.AdGroup != adGroup {
			continue
		}
		v, err := reports.ParseAmount(r.CPC)
		if err != nil {
			return Bounds{}, &DataQualityError{AdGroup: adGroup, Column: reports.ColCPC, Value: r.CPC}
		}
		if v.Valid {
			b.include(v.Float64)
		}
	}

	return b, nil
}
