package reports

import (
	"cloud.google.com/go/civil"
)

// Column names as they appear in the exported CSV headers.
const (
	ColDate = "Date"

	// Bid history
	ColAdGroup = "Ad Group"
	ColKeyword = "Keyword"
	ColFromBid = "From Bid"
	ColToBid   = "To Bid"

	// Targeting report
	ColAdGroupName    = "Ad Group Name"
	ColTargeting      = "Targeting"
	ColCPC            = "Cost Per Click (CPC)"
	ColImpressions    = "Impressions"
	ColCTR            = "Click-Thru Rate (CTR)"
	ColConversionRate = "7 Day Conversion Rate"
	ColRoAS           = "Total Return on Advertising Spend (RoAS)"

	// Impression share report
	ColSearchTerm = "Customer Search Term"
	ColMatchType  = "Match Type"
	ColISRank     = "Search Term Impression Rank"
	ColISShare    = "Search Term Impression Share"
)

// MatchTypeExact is the only impression-share match type kept for charting.
const MatchTypeExact = "EXACT"

// InvalidValueSentinel is the spreadsheet error literal the bid history may carry.
const InvalidValueSentinel = "#VALUE!"

// BidChange is one manually recorded bid change.
// FromBid and ToBid hold the raw cell text; the sentinel is already blanked.
type BidChange struct {
	Date    civil.Date
	AdGroup string
	Keyword string
	FromBid string
	ToBid   string
}

// TargetingRow is one keyword-day line of a targeting report.
// Metric fields keep the report's formatting ("$0.85", "1.2%") until a
// per-keyword series coerces them.
type TargetingRow struct {
	Date           civil.Date
	AdGroup        string
	Targeting      string
	CPC            string
	Impressions    string
	CTR            string
	ConversionRate string
	RoAS           string

	// Extra holds every other column of the source row, keyed by header.
	Extra map[string]string
}

// ImpressionShareRow is one search-term-day line of an impression share report,
// projected to the columns used downstream.
type ImpressionShareRow struct {
	Date       civil.Date
	SearchTerm string
	AdGroup    string
	Rank       string
	Share      string
}

// ReconciledRecord is one row of the targeting ⟗ impression share join.
// Keyword is the targeting text, or the search term when only the impression
// share side had a row.
type ReconciledRecord struct {
	Date    civil.Date
	AdGroup string
	Keyword string

	HasTargeting       bool
	HasImpressionShare bool

	CPC            string
	Impressions    string
	CTR            string
	ConversionRate string
	RoAS           string
	ISRank         string
	ISShare        string

	Extra map[string]string
}

// KeywordPoint is one row of a keyword's chart series after the bid history
// join, fills, coercion and moving averages.
type KeywordPoint struct {
	Date civil.Date

	// IsChange marks rows contributed by a bid history entry.
	IsChange bool

	Impressions    NullFloat
	CPC            NullFloat
	CTR            NullFloat
	ConversionRate NullFloat
	RoAS           NullFloat
	ISRank         NullFloat
	ISShare        NullFloat

	FromBid NullFloat
	ToBid   NullFloat
	Bid     NullFloat

	CTRMoving  NullFloat
	CRMoving   NullFloat
	RoASMoving NullFloat
}
