package optics

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Interpolation selects how a mask or target grid is resampled onto the
// field grid.
type Interpolation int

const (
	// Bilinear interpolates the complex transmittance a·exp(iφ), so phase
	// wraps do not produce spurious 2π ramps.
	Bilinear Interpolation = iota
	// Nearest copies the closest mask pixel.
	Nearest
)

// Mask is an aperture transmittance sampled on its own pixel grid. The mask
// is centred on the optical axis and spans Width × Height metres; outside
// that rectangle the aperture is opaque. A zero Width or Height stretches the
// mask over the field extent along that axis.
type Mask struct {
	Nx, Ny        int
	Amplitude     []float64 // in [0, 1]; nil means fully transparent
	Phase         []float64 // radians; nil means no phase delay
	Width, Height float64
	Inverted      bool // use 1 − amplitude
	Interpolation Interpolation
}

func (m *Mask) validate() error {
	if m == nil {
		return fmt.Errorf("%w: aperture has no mask", ErrConfiguration)
	}
	if m.Nx <= 0 || m.Ny <= 0 {
		return fmt.Errorf("%w: mask grid %dx%d", ErrConfiguration, m.Nx, m.Ny)
	}
	n := m.Nx * m.Ny
	if m.Amplitude != nil && len(m.Amplitude) != n {
		return fmt.Errorf("%w: mask amplitude has %d values, want %d", ErrConfiguration, len(m.Amplitude), n)
	}
	if m.Phase != nil && len(m.Phase) != n {
		return fmt.Errorf("%w: mask phase has %d values, want %d", ErrConfiguration, len(m.Phase), n)
	}
	for i, a := range m.Amplitude {
		if math.IsNaN(a) || a < 0 || a > 1 {
			return fmt.Errorf("%w: mask amplitude %v at pixel %d is outside [0, 1]", ErrConfiguration, a, i)
		}
	}
	for i, p := range m.Phase {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: mask phase %v at pixel %d", ErrConfiguration, p, i)
		}
	}
	if !sizeOrZero(m.Width) || !sizeOrZero(m.Height) {
		return fmt.Errorf("%w: mask size %g x %g m", ErrConfiguration, m.Width, m.Height)
	}
	return nil
}

// pixel returns the complex transmittance of mask pixel i.
func (m *Mask) pixel(i int) complex128 {
	a := 1.0
	if m.Amplitude != nil {
		a = m.Amplitude[i]
	}
	if m.Inverted {
		a = 1 - a
	}
	if m.Phase == nil {
		return complex(a, 0)
	}
	return cmplx.Rect(a, m.Phase[i])
}

// Transmittance resamples the mask onto the grid described by p.
func (m *Mask) Transmittance(p Params) ([]complex128, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	pix := make([]complex128, m.Nx*m.Ny)
	for i := range pix {
		pix[i] = m.pixel(i)
	}

	width, height := m.Width, m.Height
	if width == 0 {
		width = p.ExtentX
	}
	if height == 0 {
		height = p.ExtentY
	}
	out := make([]complex128, p.Nx*p.Ny)
	us := placement(p.Nx, p.ExtentX, m.Nx, width)
	vs := placement(p.Ny, p.ExtentY, m.Ny, height)
	for iy, v := range vs {
		if math.IsNaN(v) {
			continue
		}
		for ix, u := range us {
			if math.IsNaN(u) {
				continue
			}
			var t complex128
			if m.Interpolation == Nearest {
				t = pix[nearestIndex(v, m.Ny)*m.Nx+nearestIndex(u, m.Nx)]
			} else {
				t = bilinearComplex(pix, m.Nx, m.Ny, u, v)
			}
			out[iy*p.Nx+ix] = t
		}
	}
	return out, nil
}

// placement maps each of n field samples (extent metres wide) to a fractional
// pixel index of an m-pixel mask spanning size metres, both centred on the
// axis. Samples outside [-size/2, size/2) get NaN. Indices within 1e-9 of a
// whole pixel are snapped to it so matching grids copy pixels exactly.
func placement(n int, extent float64, m int, size float64) []float64 {
	d := extent / float64(n)
	pitch := size / float64(m)
	ratio := d / pitch
	eps := 1e-9 * min(d, pitch)
	out := make([]float64, n)
	for i := range out {
		x := float64(i-n/2) * d
		if x < -size/2-eps || x >= size/2-eps {
			out[i] = math.NaN()
			continue
		}
		u := float64(i-n/2)*ratio + float64(m/2)
		if r := math.Round(u); math.Abs(u-r) < 1e-9 {
			u = r
		}
		out[i] = u
	}
	return out
}

// Target is the intensity a retrieval should reproduce, sampled on its own
// grid and centred on the axis like a Mask. Outside Width × Height the target
// is dark.
type Target struct {
	Nx, Ny        int
	Intensity     []float64
	Width, Height float64
}

func (t *Target) validate() error {
	if t == nil {
		return fmt.Errorf("%w: target intensity element has no target", ErrConfiguration)
	}
	if t.Nx <= 0 || t.Ny <= 0 || len(t.Intensity) != t.Nx*t.Ny {
		return fmt.Errorf("%w: target grid %dx%d with %d values", ErrConfiguration, t.Nx, t.Ny, len(t.Intensity))
	}
	sum := 0.0
	for i, v := range t.Intensity {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: target intensity %v at pixel %d", ErrConfiguration, v, i)
		}
		sum += v
	}
	if sum == 0 {
		return fmt.Errorf("%w: target intensity is dark everywhere", ErrConfiguration)
	}
	if !sizeOrZero(t.Width) || !sizeOrZero(t.Height) {
		return fmt.Errorf("%w: target size %g x %g m", ErrConfiguration, t.Width, t.Height)
	}
	return nil
}

// OnGrid resamples the target bilinearly onto the grid described by p.
func (t *Target) OnGrid(p Params) ([]float64, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	width, height := t.Width, t.Height
	if width == 0 {
		width = p.ExtentX
	}
	if height == 0 {
		height = p.ExtentY
	}
	out := make([]float64, p.Nx*p.Ny)
	us := placement(p.Nx, p.ExtentX, t.Nx, width)
	vs := placement(p.Ny, p.ExtentY, t.Ny, height)
	for iy, v := range vs {
		if math.IsNaN(v) {
			continue
		}
		for ix, u := range us {
			if math.IsNaN(u) {
				continue
			}
			out[iy*p.Nx+ix] = bilinearReal(t.Intensity, t.Nx, t.Ny, u, v)
		}
	}
	return out, nil
}

// sizeOrZero accepts a physical size, or zero for "the whole field".
func sizeOrZero(v float64) bool {
	return v == 0 || positiveFinite(v)
}
