// Package report renders cumulative crossing counts of a run as charts.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"sort"

	"github.com/banshee-data/vehicle.count/internal/counting/crossing"
	"github.com/banshee-data/vehicle.count/internal/fsutil"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrEmptySeries is returned when there is nothing to chart.
var ErrEmptySeries = errors.New("report: no frames to chart")

// Point is the running total at the end of a frame.
type Point struct {
	Frame int
	Total int
}

// CountSeries turns events into a running total sampled at every frame
// from 0 to frames-1. Events must be in emission order.
func CountSeries(events []crossing.Event, frames int) []Point {
	series := make([]Point, frames)
	total, next := 0, 0
	for f := 0; f < frames; f++ {
		for next < len(events) && events[next].Frame <= f {
			total = events[next].TotalCount
			next++
		}
		series[f] = Point{Frame: f, Total: total}
	}
	return series
}

// LineTotal is the number of events attributed to one reference line.
type LineTotal struct {
	Line  string
	Count int
}

// LineTotals counts events per line, ordered by line name.
func LineTotals(events []crossing.Event) []LineTotal {
	counts := make(map[string]int)
	for _, ev := range events {
		counts[ev.Line]++
	}
	out := make([]LineTotal, 0, len(counts))
	for line, n := range counts {
		out = append(out, LineTotal{Line: line, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out
}

// PNG size
const (
	pngWidth  = 10 * vg.Inch
	pngHeight = 4 * vg.Inch
)

// WritePNG draws the running total as a step line with a marker at every
// crossing, and writes it to path on fsys.
func WritePNG(fsys fsutil.FileSystem, path, title string, series []Point, events []crossing.Event) error {
	if len(series) == 0 {
		return ErrEmptySeries
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Vehicles"
	p.Y.Min = 0

	pts := make(plotter.XYs, len(series))
	for i, s := range series {
		pts[i] = plotter.XY{X: float64(s.Frame), Y: float64(s.Total)}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("build count line: %w", err)
	}
	line.StepStyle = plotter.PostStep
	line.Width = vg.Points(1.5)
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	p.Add(line)
	p.Legend.Add("total", line)

	if len(events) > 0 {
		marks := make(plotter.XYs, len(events))
		for i, ev := range events {
			marks[i] = plotter.XY{X: float64(ev.Frame), Y: float64(ev.TotalCount)}
		}
		scatter, err := plotter.NewScatter(marks)
		if err != nil {
			return fmt.Errorf("build crossing markers: %w", err)
		}
		scatter.GlyphStyle.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
		scatter.GlyphStyle.Radius = vg.Points(2.5)
		p.Add(scatter)
		p.Legend.Add("crossing", scatter)
	}
	p.Legend.Top = true
	p.Legend.Left = true

	wt, err := p.WriterTo(pngWidth, pngHeight, "png")
	if err != nil {
		return fmt.Errorf("render png: %w", err)
	}

	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// WriteHTML renders an interactive page with the running total and the
// per-line breakdown.
func WriteHTML(w io.Writer, title string, series []Point, events []crossing.Event) error {
	if len(series) == 0 {
		return ErrEmptySeries
	}

	frames := make([]int, len(series))
	totals := make([]opts.LineData, len(series))
	for i, s := range series {
		frames[i] = s.Frame
		totals[i] = opts.LineData{Value: s.Total}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("frames=%d crossings=%d", len(series), len(events))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Vehicles", NameLocation: "middle", NameGap: 30}),
	)
	line.SetXAxis(frames).AddSeries("total", totals)

	byLine := LineTotals(events)
	names := make([]string, len(byLine))
	counts := make([]opts.BarData, len(byLine))
	for i, lt := range byLine {
		names[i] = lt.Line
		counts[i] = opts.BarData{Value: lt.Count}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Crossings per line"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).
		AddSeries("crossings", counts,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(line, bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write html: %w", err)
	}
	return nil
}
