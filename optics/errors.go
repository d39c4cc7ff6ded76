package optics

import "errors"

// Every message carries the "optics:" prefix. Callers match with errors.Is;
// context is attached with fmt.Errorf("...: %w", ErrX).
var (
	// ErrConfiguration reports an invalid grid, extent or wavelength, a bad
	// element payload, or elements that do not belong to the chain's mode.
	ErrConfiguration = errors.New("optics: invalid configuration")

	// ErrOrdering reports a distance that lies behind the current propagation
	// point (negative positions, a screen range that runs backwards, a target
	// in front of the aperture placeholder, a lens outside the retrieval span).
	ErrOrdering = errors.New("optics: element distances out of order")

	// ErrNumericalInstability reports a NaN or Inf sample after a propagation
	// or element step. The run that produced it is abandoned.
	ErrNumericalInstability = errors.New("optics: non-finite value in field")

	// ErrConvergenceNotReached is never returned by Retrieve. It is only
	// produced by RetrievalResult.ConvergenceErr for callers who prefer to
	// report a missed tolerance as an error value.
	ErrConvergenceNotReached = errors.New("optics: retrieval tolerance not reached")
)
