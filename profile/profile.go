// Package profile extracts intensity profiles along straight lines across a
// screen image, finds the aperture edges a line crosses, draws the line on a
// rendered view and plots the result.
package profile

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrNoIntersection is returned when a line misses the screen.
var ErrNoIntersection = errors.New("profile: line does not cross the screen")

// Grid describes the screen image a profile is taken from. Column ix sits at
// x = (ix-Nx/2)·ExtentX/Nx, like the optics package's fields.
type Grid struct {
	Nx, Ny           int
	ExtentX, ExtentY float64 // metres
}

func (g Grid) pitch() (dx, dy float64) {
	return g.ExtentX / float64(g.Nx), g.ExtentY / float64(g.Ny)
}

// Line is a straight cut across a screen as it appears in the written
// images: AngleDegrees is measured counter-clockwise from the left-to-right
// direction, and Offset (metres) shifts the line perpendicular to itself,
// positive towards the left of the direction of travel.
type Line struct {
	AngleDegrees float64
	Offset       float64
}

// Sample is one point along a Path.
type Sample struct {
	Col, Row float64 // fractional image coordinates
	Distance float64 // metres from the start of the path
}

// Point is one value of an extracted profile.
type Point struct {
	Distance  float64 // metres from the start of the path
	Intensity float64
}

// Path is a Line clipped to a Grid and sampled at the finer of the two
// sample pitches.
type Path struct {
	Line
	Grid

	StartCol, StartRow float64
	EndCol, EndRow     float64
	Length             float64 // metres
	Direction          string
	Samples            []Sample
}

// annotatedPoint is a crossing of the line with one edge of the sampled area.
type annotatedPoint struct {
	X, Y, T float64
	Edge     string // "top", "bottom", "left" or "right"
}

// NewPath clips l to the sampled area of g and computes its sample points.
func NewPath(g Grid, l Line) (*Path, error) {
	if g.Nx < 2 || g.Ny < 2 || !(g.ExtentX > 0) || !(g.ExtentY > 0) {
		return nil, fmt.Errorf("profile: grid %dx%d over %g x %g m is too small", g.Nx, g.Ny, g.ExtentX, g.ExtentY)
	}
	dx, dy := g.pitch()

	// View coordinates: x to the right, y up, origin on the optical axis.
	xMin := -float64(g.Nx/2) * dx
	xMax := float64(g.Nx-1-g.Nx/2) * dx
	yMin := -float64(g.Ny-1-g.Ny/2) * dy
	yMax := float64(g.Ny/2) * dy

	theta := l.AngleDegrees * math.Pi / 180
	ux, uy := math.Cos(theta), math.Sin(theta)
	x0, y0 := -l.Offset*uy, l.Offset*ux

	pts := lineRectangleIntersections(xMin, xMax, yMin, yMax, x0, y0, ux, uy)
	if len(pts) < 2 {
		return nil, ErrNoIntersection
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].T < pts[j].T })
	start, end := pts[0], pts[len(pts)-1]

	p := &Path{Line: l, Grid: g, Length: end.T - start.T, Direction: direction(ux, uy)}
	p.StartCol, p.StartRow = g.toImage(start.X, start.Y)
	p.EndCol, p.EndRow = g.toImage(end.X, end.Y)

	step := math.Min(dx, dy)
	n := int(math.Floor(p.Length/step+1e-9)) + 1
	p.Samples = make([]Sample, n)
	for k := range p.Samples {
		d := float64(k) * step
		col, row := g.toImage(start.X+d*ux, start.Y+d*uy)
		p.Samples[k] = Sample{Col: col, Row: row, Distance: d}
	}
	return p, nil
}

func (g Grid) toImage(x, y float64) (col, row float64) {
	dx, dy := g.pitch()
	return x/dx + float64(g.Nx/2), -y/dy + float64(g.Ny/2)
}

func direction(ux, uy float64) string {
	if math.Abs(ux) >= math.Abs(uy) {
		if ux > 0 {
			return "left to right"
		}
		return "right to left"
	}
	if uy > 0 {
		return "bottom to top"
	}
	return "top to bottom"
}

// lineRectangleIntersections finds where the line (x0, y0) + t·(ux, uy)
// crosses the edges of the rectangle [xMin, xMax] × [yMin, yMax].
func lineRectangleIntersections(xMin, xMax, yMin, yMax, x0, y0, ux, uy float64) []annotatedPoint {
	const tiny = 1e-12
	var out []annotatedPoint
	if math.Abs(ux) > tiny {
		for _, e := range []struct {
			x    float64
			name string
		}{{xMax, "right"}, {xMin, "left"}} {
			t := (e.x - x0) / ux
			y := y0 + t*uy
			if y >= yMin-tiny && y <= yMax+tiny {
				out = append(out, annotatedPoint{X: e.x, Y: y, T: t, Edge: e.name})
			}
		}
	}
	if math.Abs(uy) > tiny {
		for _, e := range []struct {
			y    float64
			name string
		}{{yMax, "top"}, {yMin, "bottom"}} {
			t := (e.y - y0) / uy
			x := x0 + t*ux
			if x >= xMin-tiny && x <= xMax+tiny {
				out = append(out, annotatedPoint{X: x, Y: e.y, T: t, Edge: e.name})
			}
		}
	}
	return removeDuplicatePoints(out, 1e-12)
}

func removeDuplicatePoints(pts []annotatedPoint, tol float64) []annotatedPoint {
	var result []annotatedPoint
	for _, p := range pts {
		duplicate := false
		for _, r := range result {
			if math.Abs(p.X-r.X) < tol && math.Abs(p.Y-r.Y) < tol {
				duplicate = true
				break
			}
		}
		if !duplicate {
			result = append(result, p)
		}
	}
	return result
}

// Extract samples a row-major Nx × Ny intensity image along the path.
func (p *Path) Extract(intensity []float64) ([]Point, error) {
	if len(intensity) != p.Nx*p.Ny {
		return nil, fmt.Errorf("profile: image has %d samples, path grid is %dx%d", len(intensity), p.Nx, p.Ny)
	}
	out := make([]Point, len(p.Samples))
	for i, s := range p.Samples {
		out[i] = Point{Distance: s.Distance, Intensity: interpolate(intensity, p.Nx, p.Ny, s.Col, s.Row)}
	}
	return out, nil
}

// FindEdges returns the distances along the path at which a transmission
// map (for example an aperture's amplitude on the screen grid) crosses 0.5.
func (p *Path) FindEdges(transmission []float64) ([]float64, error) {
	if len(transmission) != p.Nx*p.Ny {
		return nil, fmt.Errorf("profile: mask has %d samples, path grid is %dx%d", len(transmission), p.Nx, p.Ny)
	}
	var edges []float64
	var clear bool
	for i, s := range p.Samples {
		v := interpolate(transmission, p.Nx, p.Ny, s.Col, s.Row) > 0.5
		if i > 0 && v != clear {
			edges = append(edges, s.Distance)
		}
		clear = v
	}
	return edges, nil
}

// interpolate performs bilinear interpolation on a flat row-major image.
// Coordinates outside the image are clamped to its edge.
func interpolate(m []float64, nx, ny int, x, y float64) float64 {
	x = math.Max(0, math.Min(x, float64(nx-1)))
	y = math.Max(0, math.Min(y, float64(ny-1)))

	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, nx-1), min(y0+1, ny-1)
	xFrac := x - float64(x0)
	yFrac := y - float64(y0)

	v00 := m[y0*nx+x0]
	v01 := m[y0*nx+x1]
	v10 := m[y1*nx+x0]
	v11 := m[y1*nx+x1]

	v0 := v00*(1-xFrac) + v01*xFrac
	v1 := v10*(1-xFrac) + v11*xFrac
	return v0*(1-yFrac) + v1*yFrac
}

// Summary holds simple statistics of a profile.
type Summary struct {
	Mean, StdDev float64
	Min, Max     float64
	// Visibility is the fringe contrast (Max−Min)/(Max+Min).
	Visibility float64
}

// Summarize computes the statistics of a non-empty profile.
func Summarize(curve []Point) Summary {
	if len(curve) == 0 {
		return Summary{}
	}
	v := make([]float64, len(curve))
	for i, pt := range curve {
		v[i] = pt.Intensity
	}
	var s Summary
	s.Mean, s.StdDev = stat.MeanStdDev(v, nil)
	s.Min, s.Max = floats.Min(v), floats.Max(v)
	if s.Max+s.Min > 0 {
		s.Visibility = (s.Max - s.Min) / (s.Max + s.Min)
	}
	return s
}
