package optics

import (
	"context"
	"iter"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"
)

// Frame is the intensity captured at one plane of a screen range.
type Frame struct {
	Index     int
	Distance  float64
	Nx, Ny    int
	Intensity []float64
}

// FrameSequence is the lazily evaluated output of a ranged screen. It keeps a
// private copy of the field at the screen plane; every frame starts from that
// copy, so samples are independent of each other and the sequence can be
// iterated any number of times.
type FrameSequence struct {
	start     *Field
	from      float64
	distances []float64
	segment   []Element // transforming elements between the screen and the range end
	opts      options
}

func newFrameSequence(f *Field, screen Element, rest []Element, o options) *FrameSequence {
	s := &FrameSequence{
		start:     f.Clone(),
		from:      screen.Distance,
		distances: Linspace(screen.Distance, screen.Range.End, screen.Range.Steps),
		opts:      o,
	}
	for _, e := range rest {
		if e.Kind.transforms() && e.Distance <= screen.Range.End {
			s.segment = append(s.segment, e)
		}
	}
	return s
}

// Len is the number of frames in the sequence.
func (s *FrameSequence) Len() int { return len(s.distances) }

// Distances returns the sampled planes in increasing order.
func (s *FrameSequence) Distances() []float64 { return slices.Clone(s.distances) }

// All yields the frames one at a time in increasing distance, computing each
// only when it is requested. Iteration stops after the first error.
func (s *FrameSequence) All(ctx context.Context) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		r := newRun(ctx, s.start.Params(), s.opts)
		for i := range s.distances {
			if err := ctx.Err(); err != nil {
				yield(Frame{Index: i, Distance: s.distances[i]}, err)
				return
			}
			fr, err := s.sample(r, i)
			if !yield(fr, err) || err != nil {
				return
			}
		}
	}
}

// Collect computes every frame using up to workers goroutines (GOMAXPROCS
// when workers <= 0) and returns them ordered by distance. On cancellation or
// error no frames are returned.
func (s *FrameSequence) Collect(ctx context.Context, workers int) ([]Frame, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, len(s.distances))

	frames := make([]Frame, len(s.distances))
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			r := newRun(gctx, s.start.Params(), s.opts)
			for i := w; i < len(s.distances); i += workers {
				if err := gctx.Err(); err != nil {
					return err
				}
				fr, err := s.sample(r, i)
				if err != nil {
					return err
				}
				frames[i] = fr
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return frames, nil
}

// sample computes frame i from the screen-plane snapshot, applying any
// transforming elements that lie between the screen and the frame's plane.
func (s *FrameSequence) sample(r *run, i int) (Frame, error) {
	d := s.distances[i]
	f := s.start.Clone()
	z := s.from
	for j := range s.segment {
		e := &s.segment[j]
		if e.Distance > d {
			break
		}
		if err := r.advance(f, z, e.Distance); err != nil {
			return Frame{}, err
		}
		z = e.Distance
		if err := r.apply(f, e, false); err != nil {
			return Frame{}, err
		}
	}
	if err := r.advance(f, z, d); err != nil {
		return Frame{}, err
	}
	return Frame{Index: i, Distance: d, Nx: f.Nx, Ny: f.Ny, Intensity: f.Intensity()}, nil
}

// Linspace returns n evenly spaced values from start to end inclusive, like
// numpy.linspace. n <= 1 yields just start.
func Linspace(start, end float64, n int) []float64 {
	if n <= 1 {
		return []float64{start}
	}

	step := (end - start) / float64(n-1)

	x := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = start + float64(i)*step
	}
	x[n-1] = end
	return x
}
