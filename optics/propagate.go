package optics

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"
)

// Method selects the diffraction model used by a Propagator.
type Method int

const (
	// MethodAuto resolves to the angular spectrum, which is exact for every
	// frequency the grid carries. Both transfer functions share the same
	// frequency grid, so beyond CriticalDistance neither is better sampled;
	// see Undersampled.
	MethodAuto Method = iota
	// MethodAngularSpectrum multiplies the spectrum by exp(i·kz·Δz) with the
	// exact kz = 2π·sqrt(1/λ² − fx² − fy²).
	MethodAngularSpectrum
	// MethodFresnel multiplies the spectrum by the paraxial transfer function
	// exp(ikΔz)·exp(−iπλΔz(fx² + fy²)).
	MethodFresnel
)

// paraxialLimit is the largest sine of the propagation angle, over the grid's
// frequency band, for which Paraxial reports true.
const paraxialLimit = 0.1

// evanescentFloor is the most negative exponent used for evanescent decay.
// Anything below it is flushed to an exact zero instead of being handed to exp.
const evanescentFloor = -700.0

func (m Method) String() string {
	switch m {
	case MethodAuto:
		return "auto"
	case MethodAngularSpectrum:
		return "angular_spectrum"
	case MethodFresnel:
		return "fresnel"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod maps "auto", "angular_spectrum" and "fresnel" to a Method.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return MethodAuto, nil
	case "angular_spectrum", "angular-spectrum", "as":
		return MethodAngularSpectrum, nil
	case "fresnel":
		return MethodFresnel, nil
	}
	return MethodAuto, fmt.Errorf("%w: unknown propagation method %q", ErrConfiguration, s)
}

// Propagator moves a Field along the optical axis. The zero value uses
// MethodAuto on a single goroutine.
type Propagator struct {
	Method  Method
	Workers int // goroutines used for the FFT row and column passes
}

// Propagate returns a new field holding f advanced by dz metres (negative dz
// propagates backwards). f itself is not modified; dz == 0 returns a copy.
func (p Propagator) Propagate(f *Field, dz float64) (*Field, error) {
	if math.IsNaN(dz) || math.IsInf(dz, 0) {
		return nil, fmt.Errorf("%w: propagation distance %v", ErrConfiguration, dz)
	}
	g := f.Clone()
	if dz == 0 {
		return g, nil
	}
	if err := newPlan(f.Params(), p).propagate(g, dz); err != nil {
		return nil, err
	}
	return g, nil
}

// CriticalDistance is the distance N·d²/λ (smaller of the two axes) beyond
// which the transfer-function phase is undersampled at the edge of the band.
// Past it, light leaving the window wraps back in from the opposite edge and
// the result is aliased whichever Method is used. Use a wider window (more
// points at the same pitch) to move it further out.
func CriticalDistance(p Params) float64 {
	dx := p.ExtentX / float64(p.Nx)
	dy := p.ExtentY / float64(p.Ny)
	return math.Min(float64(p.Nx)*dx*dx, float64(p.Ny)*dy*dy) / p.Wavelength
}

// FresnelNumber returns a²/(λz) for a feature of half-width a seen from z.
func FresnelNumber(halfWidth, wavelength, z float64) float64 {
	return halfWidth * halfWidth / (wavelength * math.Abs(z))
}

// Paraxial reports whether every propagating frequency on the grid travels
// within paraxialLimit of the axis.
func Paraxial(p Params) bool {
	fx := 1 / (2 * p.ExtentX / float64(p.Nx))
	fy := 1 / (2 * p.ExtentY / float64(p.Ny))
	return p.Wavelength*math.Hypot(fx, fy) < paraxialLimit
}

// maxCachedTransfers bounds the transfer functions a plan keeps. Retrieval
// reuses a handful of distances every iteration; range sampling uses each
// distance once.
const maxCachedTransfers = 16

// plan holds what one run needs to propagate repeatedly on a fixed grid:
// per-worker FFTs, the frequency axes and a cache of transfer functions keyed
// by distance. A plan belongs to exactly one goroutine.
type plan struct {
	params    Params
	method    Method
	fft       *fft2
	fx, fy    []float64
	transfers map[float64][]complex128
}

func newPlan(p Params, prop Propagator) *plan {
	return &plan{
		params:    p,
		method:    prop.Method,
		fft:       newFFT2(p.Nx, p.Ny, prop.Workers),
		fx:        frequencies(p.Nx, p.ExtentX/float64(p.Nx)),
		fy:        frequencies(p.Ny, p.ExtentY/float64(p.Ny)),
		transfers: make(map[float64][]complex128),
	}
}

// MethodFor reports the method p uses for a step of dz on grid params. An
// explicit method is used as is; MethodAuto is the angular spectrum.
func (p Propagator) MethodFor(params Params, dz float64) Method {
	if p.Method != MethodAuto {
		return p.Method
	}
	return MethodAngularSpectrum
}

// Undersampled reports whether a step of dz on grid params lies beyond
// CriticalDistance, where the output is aliased.
func Undersampled(params Params, dz float64) bool {
	return math.Abs(dz) > CriticalDistance(params)
}

func (pl *plan) methodFor(dz float64) Method {
	return Propagator{Method: pl.method}.MethodFor(pl.params, dz)
}

func (pl *plan) transfer(dz float64) []complex128 {
	if h, ok := pl.transfers[dz]; ok {
		return h
	}
	if len(pl.transfers) >= maxCachedTransfers {
		clear(pl.transfers)
	}
	lambda := pl.params.Wavelength
	k := 2 * math.Pi / lambda
	invLambda2 := 1 / (lambda * lambda)
	fresnel := pl.methodFor(dz) == MethodFresnel
	absDz := math.Abs(dz)

	// The Fresnel carrier exp(ikΔz) is common to every bin.
	carrier := cmplx.Exp(complex(0, math.Mod(k*dz, 2*math.Pi)))

	h := make([]complex128, len(pl.fy)*len(pl.fx))
	for iy, fy := range pl.fy {
		for ix, fx := range pl.fx {
			f2 := fx*fx + fy*fy
			s := invLambda2 - f2
			var v complex128
			switch {
			case s < 0:
				// Evanescent: decays as exp(−κ|Δz|) whichever way we go.
				e := -2 * math.Pi * math.Sqrt(-s) * absDz
				if e > evanescentFloor {
					v = complex(math.Exp(e), 0)
				}
			case fresnel:
				v = carrier * cmplx.Exp(complex(0, -math.Mod(math.Pi*lambda*dz*f2, 2*math.Pi)))
			default:
				kz := 2 * math.Pi * math.Sqrt(s)
				v = cmplx.Exp(complex(0, math.Mod(kz*dz, 2*math.Pi)))
			}
			h[iy*len(pl.fx)+ix] = v
		}
	}
	pl.transfers[dz] = h
	return h
}

// propagate advances f by dz in place.
func (pl *plan) propagate(f *Field, dz float64) error {
	if dz == 0 {
		return nil
	}
	if f.Nx != pl.params.Nx || f.Ny != pl.params.Ny {
		return fmt.Errorf("%w: field is %dx%d, plan is %dx%d", ErrConfiguration, f.Nx, f.Ny, pl.params.Nx, pl.params.Ny)
	}
	h := pl.transfer(dz)
	pl.fft.transform(f.E, true)
	for i := range f.E {
		f.E[i] *= h[i]
	}
	pl.fft.transform(f.E, false)
	if err := f.CheckFinite(); err != nil {
		return fmt.Errorf("propagating %g m: %w", dz, err)
	}
	return nil
}
