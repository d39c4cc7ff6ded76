package main

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/bob-anderson-ok/OpticalBench/profile"
)

// MakeConvergencePlot writes the relative intensity error of every retrieval
// iteration, on a log axis, with the tolerance as a dashed line.
func MakeConvergencePlot(history []float64, tolerance float64, title, filename string) error {
	if len(history) == 0 {
		return fmt.Errorf("no iterations to plot")
	}
	p := profile.NewStyledPlot(title, "Iteration", "Relative intensity error")
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}

	// Log axes cannot show zero.
	const floor = 1e-12
	pts := make(plotter.XYs, len(history))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, e := range history {
		pts[i].X = float64(i + 1)
		pts[i].Y = math.Max(e, floor)
		lo = math.Min(lo, pts[i].Y)
		hi = math.Max(hi, pts[i].Y)
	}
	if tolerance > 0 {
		lo = math.Min(lo, tolerance)
		hi = math.Max(hi, tolerance)
	}
	p.Y.Min = lo / 2
	p.Y.Max = hi * 2
	p.X.Min = 0
	p.X.Max = float64(len(history) + 1)

	linePoints, scatterPoints, err := plotter.NewLinePoints(pts)
	if err != nil {
		return err
	}
	linePoints.Color = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	linePoints.Width = vg.Points(1)

	scatterPoints.Shape = draw.CircleGlyph{}
	scatterPoints.Radius = vg.Points(2)
	scatterPoints.Color = color.RGBA{R: 120, G: 120, B: 120, A: 255}

	p.Add(linePoints, scatterPoints)

	if tolerance > 0 {
		hline, err := plotter.NewLine(plotter.XYs{
			{X: 0, Y: tolerance},
			{X: float64(len(history) + 1), Y: tolerance},
		})
		if err != nil {
			return err
		}
		hline.Dashes = []vg.Length{
			vg.Points(6), // dash length
			vg.Points(4), // gap length
		}
		hline.Color = color.RGBA{R: 255, A: 255}
		p.Add(hline)
	}

	return p.Save(8*vg.Inch, 4*vg.Inch, filename)
}

// MakeSpectrumPlot draws the normalised spectral weights used for a
// multi-wavelength run.
func MakeSpectrumPlot(data [][2]float64, source, filename string) error {
	if len(data) == 0 {
		return fmt.Errorf("empty spectrum")
	}
	p := profile.NewStyledPlot("Spectral weights from file: "+source, "Wavelength (nm)", "Relative weight")

	p.X.Tick.Marker = profile.StepTicks{Step: 25.0, Format: "%.0f"}
	p.Y.Tick.Marker = profile.StepTicks{Step: 0.1, Format: "%.2f"}

	p.Y.Min = 0.0
	p.Y.Max = 1.1

	// Find the max weight - we will use that to calculate relative response
	var maxWeight = 0.0
	for _, pair := range data {
		if pair[1] > maxWeight {
			maxWeight = pair[1]
		}
	}
	if maxWeight <= 0 {
		return fmt.Errorf("spectrum has no positive weight")
	}

	n := len(data)
	pts := make(plotter.XYs, n)
	for i := 0; i < n; i++ {
		pts[i].X = data[i][0]
		pts[i].Y = data[i][1] / maxWeight
	}

	linePoints, scatterPoints, err := plotter.NewLinePoints(pts)
	if err != nil {
		return err
	}
	linePoints.Color = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	linePoints.Width = vg.Points(1)

	scatterPoints.Shape = draw.CircleGlyph{}
	scatterPoints.Radius = vg.Points(2)
	scatterPoints.Color = color.RGBA{R: 120, G: 120, B: 120, A: 255}

	p.Add(linePoints, scatterPoints)

	return p.Save(8*vg.Inch, 4*vg.Inch, filename)
}
