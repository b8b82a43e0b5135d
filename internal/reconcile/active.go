package reconcile

import (
	"sort"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/keyword-bid-charts/internal/reports"
)

// DateSet is a set of calendar dates.
type DateSet map[civil.Date]struct{}

// NewDateSet builds a set from dates.
func NewDateSet(dates []civil.Date) DateSet {
	s := make(DateSet, len(dates))
	for _, d := range dates {
		s[d] = struct{}{}
	}
	return s
}

// Contains reports whether d is in the set.
func (s DateSet) Contains(d civil.Date) bool {
	_, ok := s[d]
	return ok
}

// ActiveDates returns the distinct dates of the reconciled records, ascending.
func ActiveDates(merged []reports.ReconciledRecord) []civil.Date {
	seen := make(DateSet)
	var dates []civil.Date
	for _, r := range merged {
		if seen.Contains(r.Date) {
			continue
		}
		seen[r.Date] = struct{}{}
		dates = append(dates, r.Date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// DateRange returns the first and last of ascending dates.
func DateRange(dates []civil.Date) (from, to civil.Date, ok bool) {
	if len(dates) == 0 {
		return civil.Date{}, civil.Date{}, false
	}
	return dates[0], dates[len(dates)-1], true
}

// ActiveAdGroups returns the ad groups with at least one bid change on an
// active date, in order of first appearance in the history.
func ActiveAdGroups(history []reports.BidChange, active DateSet) []string {
	seen := make(map[string]bool)
	var groups []string
	for _, c := range history {
		if !active.Contains(c.Date) || seen[c.AdGroup] {
			continue
		}
		seen[c.AdGroup] = true
		groups = append(groups, c.AdGroup)
	}
	return groups
}

// Keywords lists the keywords to chart for an ad group: first those with a
// bid change on an active date (history order), then, unless changedOnly,
// every other keyword the reconciled records hold for the ad group (sorted).
func Keywords(merged []reports.ReconciledRecord, history []reports.BidChange, adGroup string, active DateSet, changedOnly bool) []string {
	seen := make(map[string]bool)
	var keywords []string
	for _, c := range history {
		if c.AdGroup != adGroup || !active.Contains(c.Date) || seen[c.Keyword] {
			continue
		}
		seen[c.Keyword] = true
		keywords = append(keywords, c.Keyword)
	}
	if changedOnly {
		return keywords
	}

	var rest []string
	for _, r := range merged {
		if r.AdGroup != adGroup || r.Keyword == "" || seen[r.Keyword] {
			continue
		}
		seen[r.Keyword] = true
		rest = append(rest, r.Keyword)
	}
	sort.Strings(rest)
	return append(keywords, rest...)
}

// ChangeDates returns the dates of the keyword's bid changes that fall on
// active dates, in history order.
func ChangeDates(history []reports.BidChange, adGroup, keyword string, active DateSet) []civil.Date {
	var dates []civil.Date
	for _, c := range history {
		if c.AdGroup == adGroup && c.Keyword == keyword && active.Contains(c.Date) {
			dates = append(dates, c.Date)
		}
	}
	return dates
}
