package optics

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
)

// Params are the global simulation parameters supplied by the bench.
type Params struct {
	Wavelength float64 // metres
	ExtentX    float64 // physical width of the grid, metres
	ExtentY    float64 // physical height of the grid, metres
	Nx         int     // samples across
	Ny         int     // samples down
}

// Validate checks the invariants every Field relies on.
func (p Params) Validate() error {
	if p.Nx <= 0 || p.Ny <= 0 {
		return fmt.Errorf("%w: grid must be at least 1x1, got %dx%d", ErrConfiguration, p.Nx, p.Ny)
	}
	if !positiveFinite(p.ExtentX) || !positiveFinite(p.ExtentY) {
		return fmt.Errorf("%w: extent must be positive, got %g x %g m", ErrConfiguration, p.ExtentX, p.ExtentY)
	}
	if !positiveFinite(p.Wavelength) {
		return fmt.Errorf("%w: wavelength must be positive, got %g m", ErrConfiguration, p.Wavelength)
	}
	return nil
}

// Field is a sampled complex scalar wavefront. E is row-major with Ny rows of
// Nx samples.
type Field struct {
	Nx, Ny     int
	ExtentX    float64
	ExtentY    float64
	Wavelength float64
	E          []complex128
}

// NewField returns a unit-amplitude, zero-phase plane wave on the grid
// described by p.
func NewField(p Params) (*Field, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	f := &Field{
		Nx:         p.Nx,
		Ny:         p.Ny,
		ExtentX:    p.ExtentX,
		ExtentY:    p.ExtentY,
		Wavelength: p.Wavelength,
		E:          make([]complex128, p.Nx*p.Ny),
	}
	for i := range f.E {
		f.E[i] = 1
	}
	return f, nil
}

// Params reports the grid the field lives on.
func (f *Field) Params() Params {
	return Params{Wavelength: f.Wavelength, ExtentX: f.ExtentX, ExtentY: f.ExtentY, Nx: f.Nx, Ny: f.Ny}
}

// Pitch returns the sample spacing in x and y.
func (f *Field) Pitch() (dx, dy float64) {
	return f.ExtentX / float64(f.Nx), f.ExtentY / float64(f.Ny)
}

// Wavenumber returns 2π/λ.
func (f *Field) Wavenumber() float64 {
	return 2 * math.Pi / f.Wavelength
}

// Coordinates returns the physical x positions of the columns and y positions
// of the rows. The sample at index N/2 sits on the optical axis.
func (f *Field) Coordinates() (xs, ys []float64) {
	dx, dy := f.Pitch()
	xs = make([]float64, f.Nx)
	for i := range xs {
		xs[i] = float64(i-f.Nx/2) * dx
	}
	ys = make([]float64, f.Ny)
	for i := range ys {
		ys[i] = float64(i-f.Ny/2) * dy
	}
	return xs, ys
}

// Clone returns a deep copy.
func (f *Field) Clone() *Field {
	g := *f
	g.E = make([]complex128, len(f.E))
	copy(g.E, f.E)
	return &g
}

// Intensity returns |E|² per sample.
func (f *Field) Intensity() []float64 {
	out := make([]float64, len(f.E))
	for i, v := range f.E {
		out[i] = real(v)*real(v) + imag(v)*imag(v)
	}
	return out
}

// Amplitude returns |E| per sample.
func (f *Field) Amplitude() []float64 {
	out := make([]float64, len(f.E))
	for i, v := range f.E {
		out[i] = cmplx.Abs(v)
	}
	return out
}

// Phase returns arg(E) per sample, wrapped to [0, 2π).
func (f *Field) Phase() []float64 {
	out := make([]float64, len(f.E))
	for i, v := range f.E {
		out[i] = wrapPhase(cmplx.Phase(v))
	}
	return out
}

// Energy returns Σ|E|²·dx·dy.
func (f *Field) Energy() float64 {
	dx, dy := f.Pitch()
	return floats.Sum(f.Intensity()) * dx * dy
}

// Multiply applies a complex transmittance pointwise, in place.
func (f *Field) Multiply(mask []complex128) error {
	if len(mask) != len(f.E) {
		return fmt.Errorf("%w: mask has %d samples, field has %d", ErrConfiguration, len(mask), len(f.E))
	}
	for i := range f.E {
		f.E[i] *= mask[i]
	}
	return nil
}

// SameGrid reports whether g shares f's sample counts and physical extent.
func (f *Field) SameGrid(g *Field) bool {
	return f.Nx == g.Nx && f.Ny == g.Ny && f.ExtentX == g.ExtentX && f.ExtentY == g.ExtentY
}

// Resample returns the field bilinearly interpolated onto an nx × ny grid
// covering the same physical extent. Samples beyond the source edge take the
// nearest edge value.
func (f *Field) Resample(nx, ny int) (*Field, error) {
	p := f.Params()
	p.Nx, p.Ny = nx, ny
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if nx == f.Nx && ny == f.Ny {
		return f.Clone(), nil
	}
	g := &Field{Nx: nx, Ny: ny, ExtentX: f.ExtentX, ExtentY: f.ExtentY, Wavelength: f.Wavelength,
		E: make([]complex128, nx*ny)}
	sx := float64(f.Nx) / float64(nx)
	sy := float64(f.Ny) / float64(ny)
	for iy := 0; iy < ny; iy++ {
		v := float64(iy-ny/2)*sy + float64(f.Ny/2)
		for ix := 0; ix < nx; ix++ {
			u := float64(ix-nx/2)*sx + float64(f.Nx/2)
			g.E[iy*nx+ix] = bilinearComplex(f.E, f.Nx, f.Ny, u, v)
		}
	}
	return g, nil
}

// CheckFinite returns ErrNumericalInstability if any sample is NaN or Inf.
func (f *Field) CheckFinite() error {
	for i, v := range f.E {
		if math.IsNaN(real(v)) || math.IsNaN(imag(v)) || math.IsInf(real(v), 0) || math.IsInf(imag(v), 0) {
			return fmt.Errorf("%w: sample (%d, %d) is %v", ErrNumericalInstability, i%f.Nx, i/f.Nx, v)
		}
	}
	return nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func wrapPhase(p float64) float64 {
	p = math.Mod(p, 2*math.Pi)
	if p < 0 {
		p += 2 * math.Pi
	}
	if p >= 2*math.Pi {
		return 0
	}
	return p
}
