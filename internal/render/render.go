package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/wcharczuk/go-chart/v2"

	"github.com/dvloznov/keyword-bid-charts/internal/reconcile"
	"github.com/dvloznov/keyword-bid-charts/internal/reports"
)

// Format is an output image encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// ParseFormat accepts "png", "jpeg" and "jpg", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("ParseFormat: unsupported image format %q", s)
	}
}

// Ext is the file extension, without the dot.
func (f Format) Ext() string {
	if f == FormatJPEG {
		return "jpeg"
	}
	return "png"
}

// Options controls the image size and encoding.
type Options struct {
	Width  int
	Height int
	Format Format
}

// DefaultOptions returns a 1000x600 PNG.
func DefaultOptions() Options {
	return Options{Width: 1000, Height: 600, Format: FormatPNG}
}

// Chart is everything needed to draw one keyword.
type Chart struct {
	AdGroup string
	Keyword string
	Points  []reports.KeywordPoint
	Changes []civil.Date

	// Bounds fixes the bid axis so charts of one ad group are comparable.
	Bounds reconcile.Bounds
}

// NewChart builds a Chart from a keyword series and its ad group's bounds.
func NewChart(s *reconcile.Series, bounds reconcile.Bounds) Chart {
	return Chart{
		AdGroup: s.AdGroup,
		Keyword: s.Keyword,
		Points:  s.Points,
		Changes: s.Changes,
		Bounds:  bounds,
	}
}

// panel height ratios, top to bottom
var ratios = []int{3, 1, 2}

// Render draws the three stacked panels and encodes them as one image.
func Render(ctx context.Context, c Chart, opts Options) ([]byte, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		d := DefaultOptions()
		opts.Width, opts.Height = d.Width, d.Height
	}

	heights := panelHeights(opts.Height)
	xr := timeRange(c)
	charts := []chart.Chart{
		bidPanel(c, xr),
		ratePanel(c, xr),
		rankPanel(c, xr),
	}

	panels := make([]image.Image, 0, len(charts))
	for i, ch := range charts {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("Render: %s/%s: %w", c.AdGroup, c.Keyword, err)
		}
		ch.Width = opts.Width
		ch.Height = heights[i]

		var buf bytes.Buffer
		if err := ch.Render(chart.PNG, &buf); err != nil {
			return nil, fmt.Errorf("Render: %s/%s: panel %d: %w", c.AdGroup, c.Keyword, i+1, err)
		}
		img, err := png.Decode(&buf)
		if err != nil {
			return nil, fmt.Errorf("Render: %s/%s: decode panel %d: %w", c.AdGroup, c.Keyword, i+1, err)
		}
		panels = append(panels, img)
	}

	var out bytes.Buffer
	if err := encode(&out, stack(panels, opts.Width), opts.Format); err != nil {
		return nil, fmt.Errorf("Render: %s/%s: %w", c.AdGroup, c.Keyword, err)
	}
	return out.Bytes(), nil
}

func panelHeights(total int) []int {
	sum := 0
	for _, r := range ratios {
		sum += r
	}
	heights := make([]int, len(ratios))
	used := 0
	for i, r := range ratios {
		heights[i] = total * r / sum
		used += heights[i]
	}
	heights[len(heights)-1] += total - used
	return heights
}

// stack draws panels top to bottom onto one canvas.
func stack(panels []image.Image, width int) image.Image {
	height := 0
	for _, p := range panels {
		height += p.Bounds().Dy()
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	y := 0
	for _, p := range panels {
		b := p.Bounds()
		draw.Draw(dst, image.Rect(0, y, b.Dx(), y+b.Dy()), p, b.Min, draw.Src)
		y += b.Dy()
	}
	return dst
}

func encode(w io.Writer, img image.Image, f Format) error {
	switch f {
	case FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	case FormatPNG, "":
		return png.Encode(w, img)
	default:
		return fmt.Errorf("unsupported image format %q", f)
	}
}
