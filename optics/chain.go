package optics

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
)

// State is where a Chain is in its run lifecycle.
type State int

const (
	StateBuilt State = iota
	StatePropagating
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StatePropagating:
		return "propagating"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Chain is an immutable, distance-ordered snapshot of bench elements for one
// mode. Elements at the same distance are ordered transforms first (apertures
// and lenses, whose transmittances commute, in insertion order) and screens
// after them, so a screen always sees the element sharing its plane.
type Chain struct {
	mode  Mode
	elems []Element

	mu    sync.Mutex
	state State
}

// NewChain validates elems for mode and sorts them. All configuration and
// ordering problems are reported here, before any field is computed.
func NewChain(mode Mode, elems []Element) (*Chain, error) {
	if len(elems) == 0 {
		return nil, fmt.Errorf("%w: no elements on the bench", ErrConfiguration)
	}
	for _, e := range elems {
		if !mode.accepts(e.Kind) {
			return nil, fmt.Errorf("%w: %s is not allowed in %s mode", ErrConfiguration, e.label(), mode)
		}
		if err := e.validate(); err != nil {
			return nil, err
		}
	}

	sorted := slices.Clone(elems)
	slices.SortStableFunc(sorted, func(a, b Element) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(screenRank(a.Kind), screenRank(b.Kind))
	})

	c := &Chain{mode: mode, elems: sorted}
	if mode == Reverse {
		if _, err := c.retrievalSpan(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func screenRank(k Kind) int {
	if k == KindScreen {
		return 1
	}
	return 0
}

// Mode reports the mode the chain was built for.
func (c *Chain) Mode() Mode { return c.mode }

// Elements returns the elements in run order.
func (c *Chain) Elements() []Element { return slices.Clone(c.elems) }

// State reports the lifecycle state of the most recent run.
func (c *Chain) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Chain) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StatePropagating {
		return fmt.Errorf("%w: chain is already running", ErrConfiguration)
	}
	c.state = StatePropagating
	return nil
}

func (c *Chain) finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateFailed
		return
	}
	c.state = StateDone
}

// ScreenOutput is what one screen recorded during a forward run.
type ScreenOutput struct {
	Name      string
	Distance  float64
	Nx, Ny    int
	Intensity []float64
	// Frames is set for screens with a range; it is evaluated lazily.
	Frames *FrameSequence
}

// ForwardResult holds every screen's output in chain order.
type ForwardResult struct {
	Params  Params
	Screens []ScreenOutput
}

// Simulate runs a forward chain: a plane wave starts at z = 0 and is carried
// through every element in order. Nothing is returned if any step fails.
func (c *Chain) Simulate(ctx context.Context, p Params, opts ...Option) (res *ForwardResult, err error) {
	if c.mode != Forward {
		return nil, fmt.Errorf("%w: Simulate needs a forward chain", ErrConfiguration)
	}
	field, err := NewField(p)
	if err != nil {
		return nil, err
	}
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer func() { c.finish(err) }()

	r := newRun(ctx, p, gatherOptions(opts))
	res = &ForwardResult{Params: p}
	z := 0.0
	for i := range c.elems {
		e := &c.elems[i]
		if err := r.ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.advance(field, z, e.Distance); err != nil {
			return nil, err
		}
		z = e.Distance

		switch e.Kind {
		case KindAperture, KindLens:
			if err := r.apply(field, e, false); err != nil {
				return nil, err
			}
		case KindScreen:
			out := ScreenOutput{Name: e.Name, Distance: e.Distance, Nx: p.Nx, Ny: p.Ny, Intensity: field.Intensity()}
			if e.Range != nil {
				out.Frames = newFrameSequence(field, *e, c.elems[i+1:], r.opts)
			}
			res.Screens = append(res.Screens, out)
		}
	}
	return res, nil
}

// run is the per-run context threaded through a simulation or retrieval: the
// grid, a propagation plan and cached element transmittances. It is never
// shared between goroutines.
type run struct {
	ctx    context.Context
	params Params
	opts   options
	plan   *plan
	masks  map[maskKey][]complex128
}

type maskKey struct {
	elem    *Element
	inverse bool
}

func newRun(ctx context.Context, p Params, o options) *run {
	return &run{
		ctx:    ctx,
		params: p,
		opts:   o,
		plan:   newPlan(p, o.propagator),
		masks:  make(map[maskKey][]complex128),
	}
}

// advance propagates field from plane from to plane to.
func (r *run) advance(field *Field, from, to float64) error {
	if to < from {
		return fmt.Errorf("%w: cannot step from %g m back to %g m", ErrOrdering, from, to)
	}
	return r.plan.propagate(field, to-from)
}

// apply multiplies a transforming element into field. Transmittances are
// cached per element so repeated passes (range samples, retrieval
// iterations) compute each mask once.
func (r *run) apply(field *Field, e *Element, inverse bool) error {
	key := maskKey{elem: e, inverse: inverse}
	t, ok := r.masks[key]
	if !ok {
		var err error
		if t, err = e.transmittance(r.params, inverse); err != nil {
			return err
		}
		r.masks[key] = t
	}
	if err := field.Multiply(t); err != nil {
		return err
	}
	if err := field.CheckFinite(); err != nil {
		return fmt.Errorf("after %s: %w", e.label(), err)
	}
	return nil
}
