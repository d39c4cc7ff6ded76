package optics

import (
	"fmt"
	"math"
)

// Shape is an analytic aperture: it returns the amplitude and phase of the
// transmittance at the physical point (x, y), measured from the optical axis.
type Shape func(x, y float64) (amplitude, phase float64)

// Rasterize samples shape on an nx × ny mask spanning width × height metres.
// Pixel (ix, iy) is evaluated at x = (ix-nx/2)·width/nx, matching the field
// convention, so rasterizing on the field's own grid needs no resampling.
func Rasterize(shape Shape, nx, ny int, width, height float64) (*Mask, error) {
	if nx <= 0 || ny <= 0 || !positiveFinite(width) || !positiveFinite(height) {
		return nil, fmt.Errorf("%w: cannot rasterize onto %dx%d pixels over %g x %g m", ErrConfiguration, nx, ny, width, height)
	}
	m := &Mask{
		Nx: nx, Ny: ny,
		Amplitude: make([]float64, nx*ny),
		Phase:     make([]float64, nx*ny),
		Width:     width,
		Height:    height,
	}
	dx := width / float64(nx)
	dy := height / float64(ny)
	for iy := 0; iy < ny; iy++ {
		y := float64(iy-ny/2) * dy
		for ix := 0; ix < nx; ix++ {
			x := float64(ix-nx/2) * dx
			a, p := shape(x, y)
			m.Amplitude[iy*nx+ix] = a
			m.Phase[iy*nx+ix] = wrapPhase(p)
		}
	}
	return m, nil
}

func opaqueOr(inside bool) (float64, float64) {
	if inside {
		return 1, 0
	}
	return 0, 0
}

// Circle is a clear disc of the given radius.
func Circle(radius float64) Shape {
	return func(x, y float64) (float64, float64) {
		return opaqueOr(x*x+y*y <= radius*radius)
	}
}

// Ellipse is a clear ellipse centred at (x0, y0) with the given diameters
// along its own axes, rotated counter-clockwise by thetaDegrees.
func Ellipse(x0, y0, xDiam, yDiam, thetaDegrees float64) Shape {
	xSemi := xDiam / 2
	ySemi := yDiam / 2
	theta := thetaDegrees * math.Pi / 180
	c, s := math.Cos(theta), math.Sin(theta)
	return func(x, y float64) (float64, float64) {
		t1 := ((x-x0)*c + (y-y0)*s) / xSemi
		t2 := (-(x-x0)*s + (y-y0)*c) / ySemi
		return opaqueOr(t1*t1+t2*t2 <= 1)
	}
}

// Rectangle is a clear width × height rectangle centred on the axis. A zero
// height makes an infinitely tall slit.
func Rectangle(width, height float64) Shape {
	return func(x, y float64) (float64, float64) {
		inY := height == 0 || math.Abs(y) <= height/2
		return opaqueOr(math.Abs(x) <= width/2 && inY)
	}
}

// DoubleSlit is two vertical slits of slitWidth whose centres are separation
// apart, symmetric about the axis. A zero height makes the slits infinitely
// tall.
func DoubleSlit(slitWidth, separation, height float64) Shape {
	return func(x, y float64) (float64, float64) {
		if height != 0 && math.Abs(y) > height/2 {
			return 0, 0
		}
		d := math.Abs(math.Abs(x) - separation/2)
		return opaqueOr(d <= slitWidth/2)
	}
}

// BinaryGrating is an amplitude grating of vertical lines: each period is
// clear for the first duty fraction and opaque for the rest.
func BinaryGrating(period, duty float64) Shape {
	return func(x, y float64) (float64, float64) {
		return opaqueOr(gratingPhase(x, period) < duty)
	}
}

// PhaseGrating is a clear binary phase grating: the first half of each
// period is delayed by depth radians.
func PhaseGrating(period, depth float64) Shape {
	return func(x, y float64) (float64, float64) {
		if gratingPhase(x, period) < 0.5 {
			return 1, depth
		}
		return 1, 0
	}
}

// gratingPhase returns the fractional position of x within its period.
func gratingPhase(x, period float64) float64 {
	f := math.Mod(x/period, 1)
	if f < 0 {
		f++
	}
	return f
}
