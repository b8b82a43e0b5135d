package reconcile

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/keyword-bid-charts/internal/logger"
	"github.com/dvloznov/keyword-bid-charts/internal/reports"
	"github.com/dvloznov/keyword-bid-charts/internal/table"
)

// Inputs names the three report sources. Patterns may be local globs or
// gs:// URIs when the Source routes them.
type Inputs struct {
	HistoryPath            string
	TargetingPattern       string
	ImpressionSharePattern string
}

// Options tunes which keywords are charted.
type Options struct {
	// ChangedKeywordsOnly limits charts to keywords with a bid change on an
	// active date.
	ChangedKeywordsOnly bool
}

// Reconciler loads and joins the report sources.
type Reconciler struct {
	src  table.Source
	opts Options
}

// New creates a Reconciler reading through src.
func New(src table.Source, opts Options) *Reconciler {
	return &Reconciler{src: src, opts: opts}
}

// AdGroupPlan is the charting work for one active ad group.
type AdGroupPlan struct {
	Name     string
	Keywords []string
	Bounds   Bounds

	// BoundsErr is a *DataQualityError when the bounds could not be computed.
	BoundsErr error
}

// Result is the reconciled data set of one run.
type Result struct {
	History     []reports.BidChange
	Records     []reports.ReconciledRecord
	ActiveDates []civil.Date
	From, To    civil.Date
	AdGroups    []AdGroupPlan

	active DateSet
}

// Active returns the set of active dates.
func (r *Result) Active() DateSet {
	return r.active
}

// Series builds the chart series of one keyword.
func (r *Result) Series(adGroup, keyword string) *Series {
	return KeywordSeries(r.Records, r.History, adGroup, keyword, r.active)
}

// Sources holds the loaded, merged and deduplicated inputs.
type Sources struct {
	History         []reports.BidChange
	Targeting       *table.Table
	ImpressionShare *table.Table
}

// Load reads all three sources. Structural input errors are returned.
func (rc *Reconciler) Load(ctx context.Context, in Inputs) (*Sources, error) {
	log := logger.FromContext(ctx)

	history, err := LoadHistory(ctx, rc.src, in.HistoryPath)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", in.HistoryPath).Int("rows", len(history)).Msg("Loaded bid history")

	trTable, err := LoadTargeting(ctx, rc.src, in.TargetingPattern)
	if err != nil {
		return nil, err
	}
	log.Info().Str("pattern", in.TargetingPattern).Int("rows", trTable.Len()).Msg("Loaded targeting reports")

	isTable, err := LoadImpressionShare(ctx, rc.src, in.ImpressionSharePattern)
	if err != nil {
		return nil, err
	}
	log.Info().Str("pattern", in.ImpressionSharePattern).Int("rows", isTable.Len()).Msg("Loaded impression share reports")

	return &Sources{History: history, Targeting: trTable, ImpressionShare: isTable}, nil
}

// Reconcile joins loaded sources and plans the charts. Data quality
// problems are attached to the ad group they affect.
func (rc *Reconciler) Reconcile(ctx context.Context, src *Sources) *Result {
	exact := FilterExact(src.ImpressionShare)
	res := Plan(src.History, Merge(TargetingRows(src.Targeting), exact), rc.opts)

	log := logger.FromContext(ctx)
	log.Info().
		Int("exact_rows", len(exact)).
		Int("records", len(res.Records)).
		Int("active_dates", len(res.ActiveDates)).
		Int("ad_groups", len(res.AdGroups)).
		Msg("Reconciled sources")
	return res
}

// Run loads all sources and plans the charts.
func (rc *Reconciler) Run(ctx context.Context, in Inputs) (*Result, error) {
	src, err := rc.Load(ctx, in)
	if err != nil {
		return nil, err
	}
	return rc.Reconcile(ctx, src), nil
}

// Plan derives the active dates and per-ad-group work from already merged
// records.
func Plan(history []reports.BidChange, merged []reports.ReconciledRecord, opts Options) *Result {
	res := &Result{
		History:     history,
		Records:     merged,
		ActiveDates: ActiveDates(merged),
	}
	res.active = NewDateSet(res.ActiveDates)
	res.From, res.To, _ = DateRange(res.ActiveDates)

	for _, ag := range ActiveAdGroups(history, res.active) {
		plan := AdGroupPlan{
			Name:     ag,
			Keywords: Keywords(merged, history, ag, res.active, opts.ChangedKeywordsOnly),
		}
		plan.Bounds, plan.BoundsErr = BidBounds(history, merged, ag)
		if plan.BoundsErr != nil {
			plan.BoundsErr = fmt.Errorf("BidBounds: %w", plan.BoundsErr)
		}
		res.AdGroups = append(res.AdGroups, plan)
	}
	return res
}
