package optics

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"
)

// Kind tags the closed set of bench elements.
type Kind int

const (
	KindAperture Kind = iota
	KindLens
	KindScreen
	KindAperturePlaceholder // reverse mode: the DOE being designed
	KindTargetIntensity     // reverse mode: the intensity to reproduce
)

func (k Kind) String() string {
	switch k {
	case KindAperture:
		return "aperture"
	case KindLens:
		return "lens"
	case KindScreen:
		return "screen"
	case KindAperturePlaceholder:
		return "aperture_result"
	case KindTargetIntensity:
		return "target_intensity"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// transforms reports whether the element changes the field it sits in.
func (k Kind) transforms() bool {
	return k == KindAperture || k == KindLens
}

// Mode is the kind of run a chain is built for.
type Mode int

const (
	Forward Mode = iota
	Reverse
)

func (m Mode) String() string {
	if m == Reverse {
		return "reverse"
	}
	return "forward"
}

// ParseMode maps "forward" and "reverse" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "forward":
		return Forward, nil
	case "reverse":
		return Reverse, nil
	}
	return Forward, fmt.Errorf("%w: unknown mode %q", ErrConfiguration, s)
}

func (m Mode) accepts(k Kind) bool {
	switch k {
	case KindLens:
		return true
	case KindAperture, KindScreen:
		return m == Forward
	case KindAperturePlaceholder, KindTargetIntensity:
		return m == Reverse
	}
	return false
}

// ScreenRange turns a screen into a sweep of Steps planes from the screen's
// own distance to End, both ends included.
type ScreenRange struct {
	End   float64
	Steps int
}

// Element is one item on the bench. Kind selects which payload is used; the
// others are ignored.
type Element struct {
	Kind     Kind
	Name     string
	Distance float64 // metres from the source plane

	Mask      *Mask            // KindAperture
	Focal     float64          // KindLens, metres; negative for a diverging lens
	Range     *ScreenRange     // KindScreen, optional
	Retrieval *RetrievalParams // KindAperturePlaceholder
	Target    *Target          // KindTargetIntensity
}

// NewAperture returns an aperture element applying mask at distance.
func NewAperture(name string, distance float64, mask *Mask) Element {
	return Element{Kind: KindAperture, Name: name, Distance: distance, Mask: mask}
}

// NewLens returns a thin lens of focal length focal at distance.
func NewLens(name string, distance, focal float64) Element {
	return Element{Kind: KindLens, Name: name, Distance: distance, Focal: focal}
}

// NewScreen returns a screen recording intensity at distance.
func NewScreen(name string, distance float64) Element {
	return Element{Kind: KindScreen, Name: name, Distance: distance}
}

// NewRangedScreen returns a screen sampling steps planes between distance and
// end inclusive.
func NewRangedScreen(name string, distance, end float64, steps int) Element {
	return Element{Kind: KindScreen, Name: name, Distance: distance, Range: &ScreenRange{End: end, Steps: steps}}
}

// NewAperturePlaceholder marks where the designed DOE sits in a reverse chain.
func NewAperturePlaceholder(name string, distance float64, params RetrievalParams) Element {
	return Element{Kind: KindAperturePlaceholder, Name: name, Distance: distance, Retrieval: &params}
}

// NewTargetIntensity places the intensity to reproduce at distance.
func NewTargetIntensity(name string, distance float64, target *Target) Element {
	return Element{Kind: KindTargetIntensity, Name: name, Distance: distance, Target: target}
}

func (e Element) label() string {
	if e.Name != "" {
		return fmt.Sprintf("%s %q", e.Kind, e.Name)
	}
	return e.Kind.String()
}

func (e Element) validate() error {
	if math.IsNaN(e.Distance) || math.IsInf(e.Distance, 0) {
		return fmt.Errorf("%w: %s has distance %v", ErrConfiguration, e.label(), e.Distance)
	}
	if e.Distance < 0 {
		return fmt.Errorf("%w: %s at %g m lies behind the source plane", ErrOrdering, e.label(), e.Distance)
	}
	switch e.Kind {
	case KindAperture:
		if err := e.Mask.validate(); err != nil {
			return fmt.Errorf("%s: %w", e.label(), err)
		}
	case KindLens:
		if e.Focal == 0 || math.IsNaN(e.Focal) || math.IsInf(e.Focal, 0) {
			return fmt.Errorf("%w: %s has focal length %v", ErrConfiguration, e.label(), e.Focal)
		}
	case KindScreen:
		if r := e.Range; r != nil {
			if r.Steps < 1 {
				return fmt.Errorf("%w: %s range needs at least 1 step, got %d", ErrConfiguration, e.label(), r.Steps)
			}
			if math.IsNaN(r.End) || math.IsInf(r.End, 0) {
				return fmt.Errorf("%w: %s range ends at %v", ErrConfiguration, e.label(), r.End)
			}
			if r.End < e.Distance {
				return fmt.Errorf("%w: %s range ends at %g m, before its start at %g m", ErrOrdering, e.label(), r.End, e.Distance)
			}
		}
	case KindAperturePlaceholder:
		if e.Retrieval == nil {
			return fmt.Errorf("%w: %s has no retrieval parameters", ErrConfiguration, e.label())
		}
		if err := e.Retrieval.validate(); err != nil {
			return fmt.Errorf("%s: %w", e.label(), err)
		}
	case KindTargetIntensity:
		if err := e.Target.validate(); err != nil {
			return fmt.Errorf("%s: %w", e.label(), err)
		}
	default:
		return fmt.Errorf("%w: unknown element kind %d", ErrConfiguration, int(e.Kind))
	}
	return nil
}

// transmittance returns the complex mask a transforming element multiplies
// into a field on grid p. inverse returns the mask that undoes it where the
// element is lossless (lenses); apertures are returned unchanged because an
// amplitude stop has no inverse.
func (e Element) transmittance(p Params, inverse bool) ([]complex128, error) {
	switch e.Kind {
	case KindAperture:
		return e.Mask.Transmittance(p)
	case KindLens:
		return lensTransmittance(p, e.Focal, inverse), nil
	}
	return nil, fmt.Errorf("%w: %s does not transform the field", ErrConfiguration, e.label())
}

// lensTransmittance is exp(−ik(x²+y²)/2f), or its conjugate when inverse.
func lensTransmittance(p Params, focal float64, inverse bool) []complex128 {
	k := 2 * math.Pi / p.Wavelength
	dx := p.ExtentX / float64(p.Nx)
	dy := p.ExtentY / float64(p.Ny)
	sign := -1.0
	if inverse {
		sign = 1
	}
	out := make([]complex128, p.Nx*p.Ny)
	for iy := 0; iy < p.Ny; iy++ {
		y := float64(iy-p.Ny/2) * dy
		for ix := 0; ix < p.Nx; ix++ {
			x := float64(ix-p.Nx/2) * dx
			phi := sign * k * (x*x + y*y) / (2 * focal)
			out[iy*p.Nx+ix] = cmplx.Exp(complex(0, math.Mod(phi, 2*math.Pi)))
		}
	}
	return out
}
