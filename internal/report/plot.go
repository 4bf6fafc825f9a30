package report

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// AreaSeries is the flooded area of the best configuration next to the
// hydrological value of each date.
type AreaSeries struct {
	Title      string
	Dates      []string
	Elevations []float64
	Areas      []int
}

// AreaPlot saves s to path. Both series are scaled to their maximum so they
// share one axis; the format follows the extension of path.
func AreaPlot(path string, s AreaSeries) error {
	n := len(s.Dates)
	if n == 0 || len(s.Elevations) != n || len(s.Areas) != n {
		return fmt.Errorf("area plot needs one elevation and one area per date, got %d dates, %d elevations, %d areas",
			n, len(s.Elevations), len(s.Areas))
	}
	areas := make([]float64, n)
	for i, a := range s.Areas {
		areas[i] = float64(a)
	}

	p := plot.New()
	p.Title.Text = s.Title
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "Fraction of maximum"

	ticks := make([]plot.Tick, n)
	for i, d := range s.Dates {
		ticks[i] = plot.Tick{Value: float64(i), Label: d}
	}
	if n > 12 {
		// label every step-th date
		step := (n + 11) / 12
		for i := range ticks {
			if i%step != 0 {
				ticks[i].Label = ""
			}
		}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	p.X.Tick.Label.Rotation = 0.8
	p.X.Tick.Label.XAlign = -1

	for _, series := range []struct {
		name   string
		values []float64
		color  color.Color
	}{
		{"flooded area", areas, color.RGBA{R: 31, G: 119, B: 180, A: 255}},
		{"hydrological value", s.Elevations, color.RGBA{R: 214, G: 39, B: 40, A: 255}},
	} {
		line, points, err := plotter.NewLinePoints(scaled(series.values))
		if err != nil {
			return fmt.Errorf("%s: %w", series.name, err)
		}
		line.Color = series.color
		line.Width = vg.Points(1.5)
		points.Color = series.color
		p.Add(line, points)
		p.Legend.Add(series.name, line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	width := max(8*vg.Inch, vg.Length(n)*0.3*vg.Inch)
	if err := p.Save(width, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save area plot: %w", err)
	}
	return nil
}

// scaled divides by the largest magnitude; an all-zero series stays zero.
func scaled(values []float64) plotter.XYs {
	top := 0.0
	for _, v := range values {
		top = max(top, v, -v)
	}
	xys := make(plotter.XYs, len(values))
	for i, v := range values {
		xys[i].X = float64(i)
		if top > 0 {
			xys[i].Y = v / top
		}
	}
	return xys
}
