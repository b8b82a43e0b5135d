package render

import (
	"fmt"
	"math"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/dvloznov/keyword-bid-charts/internal/reports"
)

var (
	colorBlue   = drawing.Color{R: 31, G: 119, B: 180, A: 255}
	colorArea   = drawing.Color{R: 31, G: 119, B: 180, A: 166}
	colorRed    = drawing.Color{R: 214, G: 39, B: 40, A: 255}
	colorPurple = drawing.Color{R: 128, G: 0, B: 128, A: 255}
	colorGreen  = drawing.Color{R: 44, G: 160, B: 44, A: 255}
)

type getter func(reports.KeywordPoint) reports.NullFloat

// xRange is the shared time axis of the three panels.
type xRange struct {
	from, to time.Time
}

func (x xRange) continuous() *chart.ContinuousRange {
	return &chart.ContinuousRange{Min: float64(x.from.UnixNano()), Max: float64(x.to.UnixNano())}
}

func timeRange(c Chart) xRange {
	var r xRange
	ok := false
	include := func(t time.Time) {
		if !ok {
			r.from, r.to, ok = t, t, true
			return
		}
		if t.Before(r.from) {
			r.from = t
		}
		if t.After(r.to) {
			r.to = t
		}
	}
	for _, p := range c.Points {
		include(p.Date.In(time.UTC))
	}
	for _, d := range c.Changes {
		include(d.In(time.UTC))
	}
	if !ok {
		r.from, r.to = time.Unix(0, 0).UTC(), time.Unix(0, 0).UTC()
	}
	if !r.from.Before(r.to) {
		r.from = r.from.Add(-12 * time.Hour)
		r.to = r.to.Add(12 * time.Hour)
	}
	return r
}

// valueRange spans the present values of every getter, optionally from zero.
// An empty or flat range is widened so the axis can be drawn.
func valueRange(points []reports.KeywordPoint, fromZero bool, gets ...getter) *chart.ContinuousRange {
	lo, hi := math.Inf(1), math.Inf(-1)
	if fromZero {
		lo, hi = 0, 0
	}
	for _, get := range gets {
		for _, p := range points {
			v := get(p)
			if !present(v) {
				continue
			}
			lo = math.Min(lo, v.Float64)
			hi = math.Max(hi, v.Float64)
		}
	}
	if math.IsInf(lo, 1) {
		lo, hi = 0, 1
	}
	return padded(lo, hi)
}

func padded(lo, hi float64) *chart.ContinuousRange {
	if lo == hi {
		d := math.Abs(lo) * 0.1
		if d == 0 {
			d = 1
		}
		lo, hi = lo-d, hi+d
	}
	return &chart.ContinuousRange{Min: lo, Max: hi}
}

func present(v reports.NullFloat) bool {
	return v.Valid && !math.IsNaN(v.Float64) && !math.IsInf(v.Float64, 0)
}

// lines splits a metric at missing values into separate series.
func lines(points []reports.KeywordPoint, get getter, axis chart.YAxisType, style chart.Style) []chart.Series {
	var out []chart.Series
	var xs []time.Time
	var ys []float64

	flush := func() {
		if len(xs) == 0 {
			return
		}
		s := style
		if len(xs) == 1 {
			s.DotWidth = 2
			s.DotColor = style.StrokeColor
		}
		out = append(out, chart.TimeSeries{Style: s, YAxis: axis, XValues: xs, YValues: ys})
		xs, ys = nil, nil
	}

	for _, p := range points {
		v := get(p)
		if !present(v) {
			flush()
			continue
		}
		xs = append(xs, p.Date.In(time.UTC))
		ys = append(ys, v.Float64)
	}
	flush()
	return out
}

// markers draws a dashed vertical line at every bid change.
func markers(c Chart, yr *chart.ContinuousRange) []chart.Series {
	out := make([]chart.Series, 0, len(c.Changes))
	for _, d := range c.Changes {
		t := d.In(time.UTC)
		out = append(out, chart.TimeSeries{
			Style: chart.Style{
				StrokeColor:     colorRed,
				StrokeWidth:     1,
				StrokeDashArray: []float64{5, 5},
			},
			XValues: []time.Time{t, t},
			YValues: []float64{yr.Min, yr.Max},
		})
	}
	return out
}

// anchorStyle is drawn but transparent. go-chart refuses to render a chart
// whose series are all hidden, so anchors must not set Hidden.
var anchorStyle = chart.Style{StrokeColor: drawing.ColorTransparent, StrokeWidth: 1}

// anchors keep both axes drawable when a panel has no data at all.
func anchors(xr xRange, primary, secondary *chart.ContinuousRange) []chart.Series {
	return []chart.Series{
		chart.TimeSeries{
			Style:   anchorStyle,
			XValues: []time.Time{xr.from, xr.to},
			YValues: []float64{primary.Min, primary.Min},
		},
		chart.TimeSeries{
			Style:   anchorStyle,
			YAxis:   chart.YAxisSecondary,
			XValues: []time.Time{xr.from, xr.to},
			YValues: []float64{secondary.Min, secondary.Min},
		},
	}
}

func yAxis(name string, color drawing.Color, r *chart.ContinuousRange, format string) chart.YAxis {
	return chart.YAxis{
		Name:           name,
		NameStyle:      chart.Style{FontColor: color},
		Style:          chart.Style{FontColor: color, StrokeColor: color},
		Range:          r,
		ValueFormatter: numberFormatter(format),
	}
}

func xAxis(xr xRange, labels bool) chart.XAxis {
	return chart.XAxis{
		Style:          chart.Style{Hidden: !labels},
		Range:          xr.continuous(),
		ValueFormatter: dateFormatter,
	}
}

func numberFormatter(format string) chart.ValueFormatter {
	return func(v interface{}) string {
		if f, ok := v.(float64); ok {
			return fmt.Sprintf(format, f)
		}
		return fmt.Sprintf("%v", v)
	}
}

func dateFormatter(v interface{}) string {
	switch t := v.(type) {
	case time.Time:
		return t.Format("2006-01-02")
	case float64:
		return time.Unix(0, int64(t)).UTC().Format("2006-01-02")
	}
	return ""
}

func background() chart.Style {
	return chart.Style{Padding: chart.Box{Top: 10, Left: 20, Right: 20, Bottom: 10}}
}

// bidPanel: impressions area on the left axis, CPC and Bid on the right
// axis pinned to the ad group's bid bounds.
func bidPanel(c Chart, xr xRange) chart.Chart {
	impressions := func(p reports.KeywordPoint) reports.NullFloat { return p.Impressions }
	cpc := func(p reports.KeywordPoint) reports.NullFloat { return p.CPC }
	bid := func(p reports.KeywordPoint) reports.NullFloat { return p.Bid }

	left := valueRange(c.Points, true, impressions)
	right := valueRange(c.Points, false, cpc, bid)
	if c.Bounds.Valid {
		right = padded(c.Bounds.Min, c.Bounds.Max)
	}

	series := anchors(xr, left, right)
	series = append(series, lines(c.Points, impressions, chart.YAxisPrimary,
		chart.Style{StrokeColor: colorBlue, StrokeWidth: 1, FillColor: colorArea})...)
	series = append(series, lines(c.Points, cpc, chart.YAxisSecondary,
		chart.Style{StrokeColor: colorPurple, StrokeWidth: 2})...)
	series = append(series, lines(c.Points, bid, chart.YAxisSecondary,
		chart.Style{StrokeColor: colorRed, StrokeWidth: 2})...)
	series = append(series, markers(c, left)...)

	bg := background()
	bg.Padding.Top = 40
	return chart.Chart{
		Title:          c.Keyword,
		Background:     bg,
		XAxis:          xAxis(xr, false),
		YAxis:          yAxis("Impressions", colorBlue, left, "%.0f"),
		YAxisSecondary: yAxis("Bid / CPC", colorRed, right, "$%.2f"),
		Series:         series,
	}
}

// ratePanel: CTR and conversion rate moving averages.
func ratePanel(c Chart, xr xRange) chart.Chart {
	ctr := func(p reports.KeywordPoint) reports.NullFloat { return p.CTRMoving }
	cr := func(p reports.KeywordPoint) reports.NullFloat { return p.CRMoving }

	left := valueRange(c.Points, false, ctr)
	right := valueRange(c.Points, false, cr)

	series := anchors(xr, left, right)
	series = append(series, lines(c.Points, ctr, chart.YAxisPrimary,
		chart.Style{StrokeColor: colorBlue, StrokeWidth: 2})...)
	series = append(series, lines(c.Points, cr, chart.YAxisSecondary,
		chart.Style{StrokeColor: colorRed, StrokeWidth: 2})...)
	series = append(series, markers(c, left)...)

	return chart.Chart{
		Background:     background(),
		XAxis:          xAxis(xr, false),
		YAxis:          yAxis("CTR", colorBlue, left, "%.1f%%"),
		YAxisSecondary: yAxis("CR", colorRed, right, "%.1f%%"),
		Series:         series,
	}
}

// rankPanel: impression share rank and RoAS moving average.
func rankPanel(c Chart, xr xRange) chart.Chart {
	rank := func(p reports.KeywordPoint) reports.NullFloat { return p.ISRank }
	roas := func(p reports.KeywordPoint) reports.NullFloat { return p.RoASMoving }

	left := valueRange(c.Points, false, rank)
	right := valueRange(c.Points, false, roas)

	series := anchors(xr, left, right)
	series = append(series, lines(c.Points, rank, chart.YAxisPrimary,
		chart.Style{StrokeColor: colorBlue, StrokeWidth: 2})...)
	series = append(series, lines(c.Points, roas, chart.YAxisSecondary,
		chart.Style{StrokeColor: colorGreen, StrokeWidth: 2})...)
	series = append(series, markers(c, left)...)

	return chart.Chart{
		Background:     background(),
		XAxis:          xAxis(xr, true),
		YAxis:          yAxis("IS Rank", colorBlue, left, "%.1f"),
		YAxisSecondary: yAxis("RoAS", colorGreen, right, "%.2f"),
		Series:         series,
	}
}
