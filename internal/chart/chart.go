// Package chart renders dashboard series as PNG line charts.
package chart

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	_ "gonum.org/v1/plot/vg/vgimg" // registers the png format

	"ctalara/internal/engine"
)

// Kind names a chart served by the dashboard.
type Kind string

const (
	KindTrends     Kind = "trends"
	KindProfile    Kind = "profile"
	KindDose       Kind = "dose"
	KindHeadToHead Kind = "h2h"
)

// ParseKind validates a chart name taken from a URL.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case KindTrends, KindProfile, KindDose, KindHeadToHead:
		return k, true
	}
	return "", false
}

// Options controls the chart frame.
type Options struct {
	Title  string
	YLabel string
	Width  vg.Length
	Height vg.Length
}

// DefaultOptions returns a 12x5 inch frame.
func DefaultOptions(title, ylabel string) Options {
	return Options{Title: title, YLabel: ylabel, Width: 12 * vg.Inch, Height: 5 * vg.Inch}
}

var doseColor = color.RGBA{R: 139, A: 255}

// Lines draws one line per series and writes the PNG to w. An empty series
// list still produces a framed chart with a "no data" title.
func Lines(w io.Writer, series []engine.Series, opts Options) error {
	p := newPlot(opts)

	drawn := 0
	for i, s := range series {
		if len(s.Points) == 0 {
			continue
		}
		line, points, err := plotter.NewLinePoints(toXYs(s.Points))
		if err != nil {
			return fmt.Errorf("series %s: %w", s.Country, err)
		}
		line.Color = plotutil.Color(i)
		points.Color = plotutil.Color(i)
		points.Shape = draw.CircleGlyph{}
		p.Add(line, points)
		p.Legend.Add(s.Country, line, points)
		drawn++
	}
	if drawn == 0 {
		p.Title.Text = opts.Title + " (brak danych)"
	}
	return save(w, p, opts)
}

// Dose draws the population dose series in a single color.
func Dose(w io.Writer, points []engine.Point, opts Options) error {
	p := newPlot(opts)
	if len(points) == 0 {
		p.Title.Text = opts.Title + " (brak danych)"
		return save(w, p, opts)
	}

	line, glyphs, err := plotter.NewLinePoints(toXYs(points))
	if err != nil {
		return fmt.Errorf("dose: %w", err)
	}
	line.Color = doseColor
	glyphs.Color = doseColor
	glyphs.Shape = draw.CircleGlyph{}
	p.Add(line, glyphs)
	return save(w, p, opts)
}

func newPlot(opts Options) *plot.Plot {
	p := plot.New()
	p.Title.Text = opts.Title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = "Rok"
	p.Y.Label.Text = opts.YLabel
	p.X.Tick.Marker = yearTicks{}
	p.Legend.Top = true
	p.Add(plotter.NewGrid())
	return p
}

func save(w io.Writer, p *plot.Plot, opts Options) error {
	wt, err := p.WriterTo(opts.Width, opts.Height, "png")
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}

func toXYs(points []engine.Point) plotter.XYs {
	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i].X = float64(pt.Year)
		xys[i].Y = pt.Value
	}
	return xys
}

// yearTicks labels whole years only, thinning labels on long spans.
type yearTicks struct{}

func (yearTicks) Ticks(min, max float64) []plot.Tick {
	if math.IsInf(min, 0) || math.IsInf(max, 0) || max < min {
		return nil
	}
	lo, hi := int(math.Ceil(min)), int(math.Floor(max))
	step := 1
	for (hi-lo)/step > 12 {
		step++
	}
	var ticks []plot.Tick
	for y := lo; y <= hi; y++ {
		t := plot.Tick{Value: float64(y)}
		if (y-lo)%step == 0 {
			t.Label = fmt.Sprintf("%d", y)
		}
		ticks = append(ticks, t)
	}
	return ticks
}
