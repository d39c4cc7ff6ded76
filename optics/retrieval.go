package optics

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"
	"slices"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Algorithm selects the phase-retrieval iteration.
type Algorithm int

const (
	// GerchbergSaxton replaces the target-plane amplitude with the target's.
	GerchbergSaxton Algorithm = iota
	// WeightedGerchbergSaxton replaces it with a weight that grows where the
	// achieved amplitude falls short, which evens out bright spots.
	WeightedGerchbergSaxton
)

func (a Algorithm) String() string {
	if a == WeightedGerchbergSaxton {
		return "weighted_gs"
	}
	return "gs"
}

// ParseAlgorithm accepts "gs" or "weighted_gs" (and their long names).
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "gs", "gerchberg_saxton":
		return GerchbergSaxton, nil
	case "weighted_gs", "wgs", "weighted_gerchberg_saxton":
		return WeightedGerchbergSaxton, nil
	}
	return GerchbergSaxton, fmt.Errorf("%w: unknown retrieval algorithm %q", ErrConfiguration, s)
}

// PhaseInit selects the starting phase of a retrieval.
type PhaseInit int

const (
	InitZero PhaseInit = iota
	InitRandom
)

// ParsePhaseInit accepts "zero" or "random".
func ParsePhaseInit(s string) (PhaseInit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "zero":
		return InitZero, nil
	case "random":
		return InitRandom, nil
	}
	return InitZero, fmt.Errorf("%w: unknown phase initialisation %q", ErrConfiguration, s)
}

// Illumination is the amplitude falling on the DOE. The zero value is a
// uniform unit plane wave.
type Illumination struct {
	// Waist, when positive, gives a Gaussian beam exp(−r²/w²) in metres.
	Waist float64
	// Amplitude, when set, is used as is; it must match the run grid.
	Amplitude []float64
}

func (il Illumination) validate() error {
	if il.Waist < 0 || math.IsNaN(il.Waist) || math.IsInf(il.Waist, 0) {
		return fmt.Errorf("%w: illumination waist %v", ErrConfiguration, il.Waist)
	}
	for i, a := range il.Amplitude {
		if a < 0 || math.IsNaN(a) || math.IsInf(a, 0) {
			return fmt.Errorf("%w: illumination amplitude %v at sample %d", ErrConfiguration, a, i)
		}
	}
	return nil
}

func (il Illumination) on(p Params) ([]float64, error) {
	n := p.Nx * p.Ny
	switch {
	case il.Amplitude != nil:
		if len(il.Amplitude) != n {
			return nil, fmt.Errorf("%w: illumination has %d samples, grid has %d", ErrConfiguration, len(il.Amplitude), n)
		}
		return slices.Clone(il.Amplitude), nil
	case il.Waist > 0:
		out := make([]float64, n)
		dx := p.ExtentX / float64(p.Nx)
		dy := p.ExtentY / float64(p.Ny)
		w2 := il.Waist * il.Waist
		for iy := 0; iy < p.Ny; iy++ {
			y := float64(iy-p.Ny/2) * dy
			for ix := 0; ix < p.Nx; ix++ {
				x := float64(ix-p.Nx/2) * dx
				out[iy*p.Nx+ix] = math.Exp(-(x*x + y*y) / w2)
			}
		}
		return out, nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out, nil
}

const (
	DefaultMaxIterations = 100
	DefaultTolerance     = 1e-3
)

// RetrievalParams configure the solver attached to an aperture placeholder.
// Zero MaxIterations and Tolerance take the package defaults.
type RetrievalParams struct {
	Algorithm     Algorithm
	MaxIterations int
	Tolerance     float64 // stop once the relative intensity error is at or below this
	Init          PhaseInit
	Seed          int64 // used by InitRandom
	Illumination  Illumination
}

func (rp *RetrievalParams) validate() error {
	if rp.Algorithm != GerchbergSaxton && rp.Algorithm != WeightedGerchbergSaxton {
		return fmt.Errorf("%w: unknown retrieval algorithm %d", ErrConfiguration, int(rp.Algorithm))
	}
	if rp.MaxIterations < 0 {
		return fmt.Errorf("%w: max iterations %d", ErrConfiguration, rp.MaxIterations)
	}
	if rp.Tolerance < 0 || math.IsNaN(rp.Tolerance) || math.IsInf(rp.Tolerance, 0) {
		return fmt.Errorf("%w: tolerance %v", ErrConfiguration, rp.Tolerance)
	}
	if rp.Init != InitZero && rp.Init != InitRandom {
		return fmt.Errorf("%w: unknown phase initialisation %d", ErrConfiguration, int(rp.Init))
	}
	return rp.Illumination.validate()
}

func (rp RetrievalParams) withDefaults() RetrievalParams {
	if rp.MaxIterations == 0 {
		rp.MaxIterations = DefaultMaxIterations
	}
	if rp.Tolerance == 0 {
		rp.Tolerance = DefaultTolerance
	}
	return rp
}

// RetrievalResult is the outcome of a phase retrieval. The fields describe the
// best iterate seen, which is not necessarily the last.
type RetrievalResult struct {
	Params     Params
	Phase      []float64 // DOE phase in [0, 2π) on the field grid
	Intensity  []float64 // intensity the DOE produces at the target plane
	Target     []float64 // target on the field grid, scaled to the illumination energy
	Iterations int
	Converged  bool
	Error      float64   // relative intensity error of Phase
	History    []float64 // error of every iteration's trial field
}

// ConvergenceErr returns nil when the solver reached its tolerance and an
// error wrapping ErrConvergenceNotReached otherwise. The result is usable
// either way.
func (r *RetrievalResult) ConvergenceErr() error {
	if r.Converged {
		return nil
	}
	return fmt.Errorf("%w: error %.3g after %d iterations", ErrConvergenceNotReached, r.Error, r.Iterations)
}

// retrievalLayout is the part of a reverse chain the solver iterates over.
type retrievalLayout struct {
	aperture *Element
	target   *Element
	lenses   []*Element // in increasing distance
}

// retrievalSpan checks that a reverse chain has exactly one aperture
// placeholder in front of exactly one target, with every lens between them.
func (c *Chain) retrievalSpan() (retrievalLayout, error) {
	var l retrievalLayout
	for i := range c.elems {
		e := &c.elems[i]
		switch e.Kind {
		case KindAperturePlaceholder:
			if l.aperture != nil {
				return l, fmt.Errorf("%w: more than one aperture placeholder", ErrConfiguration)
			}
			l.aperture = e
		case KindTargetIntensity:
			if l.target != nil {
				return l, fmt.Errorf("%w: more than one target intensity", ErrConfiguration)
			}
			l.target = e
		case KindLens:
			l.lenses = append(l.lenses, e)
		}
	}
	if l.aperture == nil || l.target == nil {
		return l, fmt.Errorf("%w: reverse mode needs one aperture placeholder and one target intensity", ErrConfiguration)
	}
	if l.aperture.Distance >= l.target.Distance {
		return l, fmt.Errorf("%w: %s at %g m must lie before %s at %g m", ErrOrdering,
			l.aperture.label(), l.aperture.Distance, l.target.label(), l.target.Distance)
	}
	for _, e := range l.lenses {
		if e.Distance < l.aperture.Distance || e.Distance > l.target.Distance {
			return l, fmt.Errorf("%w: %s at %g m lies outside the retrieval span %g..%g m", ErrOrdering,
				e.label(), e.Distance, l.aperture.Distance, l.target.Distance)
		}
	}
	return l, nil
}

// Retrieve runs the phase-retrieval solver of a reverse chain and returns the
// DOE phase that best reproduces the target intensity. Not reaching the
// tolerance is reported through RetrievalResult.ConvergenceErr, not as an
// error.
func (c *Chain) Retrieve(ctx context.Context, p Params, opts ...Option) (res *RetrievalResult, err error) {
	if c.mode != Reverse {
		return nil, fmt.Errorf("%w: Retrieve needs a reverse chain", ErrConfiguration)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	layout, err := c.retrievalSpan()
	if err != nil {
		return nil, err
	}
	rp := layout.aperture.Retrieval.withDefaults()
	illum, err := rp.Illumination.on(p)
	if err != nil {
		return nil, err
	}
	target, err := layout.target.Target.OnGrid(p)
	if err != nil {
		return nil, err
	}
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer func() { c.finish(err) }()

	r := newRun(ctx, p, gatherOptions(opts))
	s := &solver{run: r, layout: layout, cfg: rp, illum: illum}
	return s.solve(target)
}

type solver struct {
	*run
	layout retrievalLayout
	cfg    RetrievalParams
	illum  []float64
}

func (s *solver) solve(target []float64) (*RetrievalResult, error) {
	n := len(s.illum)

	// Lenses and free space are lossless, so the target plane carries the
	// illumination's energy; scale the target to match.
	energy := floats.Dot(s.illum, s.illum)
	if energy == 0 {
		return nil, fmt.Errorf("%w: illumination is dark everywhere", ErrConfiguration)
	}
	total := floats.Sum(target)
	if total == 0 {
		return nil, fmt.Errorf("%w: target intensity falls outside the grid", ErrConfiguration)
	}
	floats.Scale(energy/total, target)
	targetAmp := make([]float64, n)
	for i, t := range target {
		targetAmp[i] = math.Sqrt(t)
	}
	weights := slices.Clone(targetAmp)

	phase := make([]float64, n)
	if s.cfg.Init == InitRandom {
		rnd := rand.New(rand.NewSource(s.cfg.Seed))
		for i := range phase {
			phase[i] = 2 * math.Pi * rnd.Float64()
		}
	}

	res := &RetrievalResult{Params: s.params, Target: target, Error: math.Inf(1)}
	field, err := NewField(s.params)
	if err != nil {
		return nil, err
	}
	amp := make([]float64, n)
	for it := 1; it <= s.cfg.MaxIterations; it++ {
		if err := s.ctx.Err(); err != nil {
			return nil, err
		}
		for i := range field.E {
			field.E[i] = cmplx.Rect(s.illum[i], phase[i])
		}
		if err := s.toTarget(field); err != nil {
			return nil, err
		}
		achieved := field.Intensity()
		e := relativeError(achieved, target)
		res.History = append(res.History, e)
		res.Iterations = it
		if s.opts.observer != nil {
			s.opts.observer(it, e)
		}
		if e < res.Error {
			res.Error = e
			res.Phase = slices.Clone(phase)
			res.Intensity = achieved
		}
		if e <= s.cfg.Tolerance {
			res.Converged = true
			break
		}
		if it == s.cfg.MaxIterations {
			break
		}

		if s.cfg.Algorithm == WeightedGerchbergSaxton {
			for i, a := range targetAmp {
				if got := cmplx.Abs(field.E[i]); got > 0 && a > 0 {
					weights[i] *= a / got
				}
			}
			copy(amp, weights)
		} else {
			copy(amp, targetAmp)
		}
		for i, v := range field.E {
			field.E[i] = cmplx.Rect(amp[i], cmplx.Phase(v))
		}
		if err := s.toAperture(field); err != nil {
			return nil, err
		}
		for i, v := range field.E {
			phase[i] = wrapPhase(cmplx.Phase(v))
		}
	}
	return res, nil
}

// toTarget carries field from the aperture plane through the lenses to the
// target plane.
func (s *solver) toTarget(field *Field) error {
	z := s.layout.aperture.Distance
	for _, e := range s.layout.lenses {
		if err := s.advance(field, z, e.Distance); err != nil {
			return err
		}
		z = e.Distance
		if err := s.apply(field, e, false); err != nil {
			return err
		}
	}
	return s.advance(field, z, s.layout.target.Distance)
}

// toAperture undoes toTarget: it propagates backwards and applies each lens's
// conjugate in reverse order.
func (s *solver) toAperture(field *Field) error {
	z := s.layout.target.Distance
	for i := len(s.layout.lenses) - 1; i >= 0; i-- {
		e := s.layout.lenses[i]
		if err := s.plan.propagate(field, e.Distance-z); err != nil {
			return err
		}
		z = e.Distance
		if err := s.apply(field, e, true); err != nil {
			return err
		}
	}
	return s.plan.propagate(field, s.layout.aperture.Distance-z)
}

// relativeError is Σ(a−t)² / Σt².
func relativeError(achieved, target []float64) float64 {
	diff := make([]float64, len(target))
	floats.SubTo(diff, achieved, target)
	return floats.Dot(diff, diff) / floats.Dot(target, target)
}
