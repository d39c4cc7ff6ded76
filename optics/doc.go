// Package optics is a scalar wave-optics engine for a virtual optical bench.
//
// A Field holds the complex samples of a monochromatic wavefront on a
// rectangular grid. A Chain sorts apertures, lenses and screens by their
// distance along the optical axis and moves the field from one element to the
// next with a Propagator (angular spectrum or Fresnel transfer function,
// evaluated with 2-D FFTs). Screens record intensity; a screen with a range
// yields a FrameSequence of intensity frames over a sweep of distances.
//
// In reverse mode the same chain topology is inverted by a Gerchberg–Saxton
// style solver that searches for the phase of a diffractive optical element
// reproducing a target intensity.
//
// Lengths are in metres throughout. Grids are row-major: sample (ix, iy) is
// stored at index iy*Nx+ix and sits at x = (ix-Nx/2)*dx, y = (iy-Ny/2)*dy.
package optics
