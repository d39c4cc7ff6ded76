package profile

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"gonum.org/v1/plot"
	_ "gonum.org/v1/plot/font/liberation"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	vgdraw "gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// StepTicks is a tick marker with a fixed step.
type StepTicks struct {
	Step   float64
	Format string
}

func (t StepTicks) Ticks(min, max float64) []plot.Tick {
	var ticks []plot.Tick
	if !(t.Step > 0) {
		return ticks
	}
	start := math.Ceil(min/t.Step) * t.Step
	for v := start; v <= max+t.Step*1e-9; v += t.Step {
		ticks = append(ticks, plot.Tick{Value: v, Label: fmt.Sprintf(t.Format, v)})
	}
	return ticks
}

// NewStyledPlot returns a plot with the Liberation Sans fonts used by every
// chart the bench writes.
func NewStyledPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()

	p.Title.TextStyle.Font.Typeface = "Liberation"
	p.Title.TextStyle.Font.Variant = "Sans"
	p.Title.TextStyle.Font.Size = vg.Points(12)

	p.X.Label.TextStyle.Font.Typeface = "Liberation"
	p.X.Label.TextStyle.Font.Variant = "Sans"
	p.X.Label.TextStyle.Font.Size = vg.Points(12)

	p.Y.Label.TextStyle.Font.Typeface = "Liberation"
	p.Y.Label.TextStyle.Font.Variant = "Sans"
	p.Y.Label.TextStyle.Font.Size = vg.Points(12)

	p.X.Tick.Label.Font.Typeface = "Liberation"
	p.X.Tick.Label.Font.Variant = "Sans"
	p.X.Tick.Label.Font.Size = vg.Points(10)

	p.Y.Tick.Label.Font.Typeface = "Liberation"
	p.Y.Tick.Label.Font.Variant = "Sans"
	p.Y.Tick.Label.Font.Size = vg.Points(10)

	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	return p
}

// Render draws p into an in-memory image of wPx × hPx pixels.
func Render(p *plot.Plot, wPx, hPx float64) image.Image {
	const dpi = 96
	width := vg.Length(wPx) * vg.Inch / dpi
	height := vg.Length(hPx) * vg.Inch / dpi

	c := vgimg.New(width, height)
	p.Draw(vgdraw.New(c))
	return c.Image()
}

// Plot draws a profile with optional aperture edge markers. Distances are
// shown in millimetres.
func Plot(curve []Point, edges []float64, title string, wPx, hPx float64) (image.Image, error) {
	if len(curve) == 0 {
		return nil, fmt.Errorf("profile: nothing to plot")
	}
	p := NewStyledPlot(title, "position along profile (mm)", "intensity")

	s := Summarize(curve)
	top := s.Max * 1.1
	if top <= 0 {
		top = 1
	}
	span := curve[len(curve)-1].Distance * 1e3
	p.Y.Min = 0
	p.Y.Max = top
	p.X.Tick.Marker = StepTicks{Step: span / 10, Format: "%.2f"}
	p.Y.Tick.Marker = StepTicks{Step: top / 5, Format: "%.3g"}

	pts := make(plotter.XYs, len(curve))
	for i, pt := range curve {
		pts[i].X = pt.Distance * 1e3
		pts[i].Y = pt.Intensity
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Color = color.RGBA{B: 255, A: 255}
	p.Add(line)

	// Aperture edges as red dashed verticals.
	for _, edge := range edges {
		vline, err := plotter.NewLine(plotter.XYs{
			{X: edge * 1e3, Y: 0},
			{X: edge * 1e3, Y: top},
		})
		if err != nil {
			return nil, err
		}
		vline.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
		vline.Color = color.RGBA{R: 255, A: 255}
		p.Add(vline)
	}

	return Render(p, wPx, hPx), nil
}

// SavePlot writes Plot's output to a PNG file.
func SavePlot(filename string, curve []Point, edges []float64, title string, wPx, hPx float64) error {
	img, err := Plot(curve, edges, title, wPx, hPx)
	if err != nil {
		return err
	}
	return SavePNG(filename, img)
}

// SavePNG encodes img to filename.
func SavePNG(filename string, img image.Image) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return png.Encode(f, img)
}
