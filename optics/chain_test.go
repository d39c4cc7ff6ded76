package optics_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/bob-anderson-ok/OpticalBench/optics"
)

func rasterize(t *testing.T, shape optics.Shape, p optics.Params) *optics.Mask {
	t.Helper()
	m, err := optics.Rasterize(shape, p.Nx, p.Ny, p.ExtentX, p.ExtentY)
	require.NoError(t, err)
	return m
}

func flatTarget(n int) *optics.Target {
	in := make([]float64, n*n)
	for i := range in {
		in[i] = 1
	}
	return &optics.Target{Nx: n, Ny: n, Intensity: in}
}

func TestScreenSeesApertureAtSameDistance(t *testing.T) {
	p := benchParams(32, 1e-3)
	mask := rasterize(t, optics.Rectangle(0.25e-3, 0.25e-3), p)

	chain, err := optics.NewChain(optics.Forward, []optics.Element{
		optics.NewScreen("screen", 0.01),
		optics.NewAperture("square", 0.01, mask),
	})
	require.NoError(t, err)

	elems := chain.Elements()
	require.Len(t, elems, 2)
	assert.Equal(t, optics.KindAperture, elems[0].Kind)
	assert.Equal(t, optics.KindScreen, elems[1].Kind)

	res, err := chain.Simulate(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, res.Screens, 1)
	assert.Equal(t, "screen", res.Screens[0].Name)
	for i, v := range res.Screens[0].Intensity {
		require.InDelta(t, mask.Amplitude[i], v, 1e-12, "sample %d", i)
	}
	assert.Equal(t, optics.StateDone, chain.State())
}

func TestChainSortsByDistance(t *testing.T) {
	mask := &optics.Mask{Nx: 1, Ny: 1}
	chain, err := optics.NewChain(optics.Forward, []optics.Element{
		optics.NewScreen("far", 0.3),
		optics.NewLens("second", 0.2, 0.1),
		optics.NewScreen("mid", 0.2),
		optics.NewLens("first", 0.2, -0.5),
		optics.NewAperture("stop", 0, mask),
	})
	require.NoError(t, err)

	var names []string
	for _, e := range chain.Elements() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"stop", "second", "first", "mid", "far"}, names)
}

func TestDoubleSlitFringeSpacing(t *testing.T) {
	const (
		n          = 1024
		separation = 0.5e-3
		focal      = 0.07
	)
	p := benchParams(n, 4e-3)
	mask := rasterize(t, optics.DoubleSlit(0.1e-3, separation, 1e-3), p)

	// A lens one focal length in front of the screen puts the far field on it.
	chain, err := optics.NewChain(optics.Forward, []optics.Element{
		optics.NewAperture("slits", 0, mask),
		optics.NewLens("transform", 0, focal),
		optics.NewScreen("focal plane", focal),
	})
	require.NoError(t, err)
	res, err := chain.Simulate(context.Background(), p, optics.WithWorkers(4))
	require.NoError(t, err)

	row := res.Screens[0].Intensity[n/2*n : (n/2+1)*n]
	dx := p.ExtentX / n
	want := wavelength * focal / separation

	lo := n/2 + int(0.5*want/dx)
	hi := n/2 + int(1.5*want/dx)
	peak := lo + floats.MaxIdx(row[lo:hi])
	// Parabolic refinement of the first side fringe.
	a, b, c := row[peak-1], row[peak], row[peak+1]
	offset := 0.5 * (a - c) / (a - 2*b + c)
	got := (float64(peak-n/2) + offset) * dx

	assert.InEpsilon(t, want, got, 0.1)
}

func TestDoubleSlitFreeSpaceFringes(t *testing.T) {
	const (
		n          = 1024
		separation = 0.3e-3
		z          = 0.05
	)
	p := benchParams(n, 4e-3)
	p.Wavelength = 532e-9
	mask := rasterize(t, optics.DoubleSlit(0.1e-3, separation, 2e-3), p)

	chain, err := optics.NewChain(optics.Forward, []optics.Element{
		optics.NewAperture("slits", 0, mask),
		optics.NewScreen("screen", z),
	})
	require.NoError(t, err)
	res, err := chain.Simulate(context.Background(), p,
		optics.WithMethod(optics.MethodAngularSpectrum), optics.WithWorkers(2))
	require.NoError(t, err)

	row := res.Screens[0].Intensity[n/2*n : (n/2+1)*n]
	dx := p.ExtentX / n
	want := p.Wavelength * z / separation

	// The first dark fringes either side of the central maximum sit at
	// ±want/2 whatever the single-slit envelope does.
	minimum := func(lo, hi int) float64 {
		i := lo + floats.MinIdx(row[lo:hi])
		a, b, c := row[i-1], row[i], row[i+1]
		den := a - 2*b + c
		if den == 0 {
			return float64(i)
		}
		return float64(i) + 0.5*(a-c)/den
	}
	quarter := int(0.25 * want / dx)
	right := minimum(n/2+quarter, n/2+3*quarter)
	left := minimum(n/2-3*quarter, n/2-quarter)

	assert.InEpsilon(t, want, (right-left)*dx, 0.05)
}

func TestLensFocusesOnAxis(t *testing.T) {
	const n = 256
	p := benchParams(n, 2e-3)
	chain, err := optics.NewChain(optics.Forward, []optics.Element{
		optics.NewAperture("pupil", 0, rasterize(t, optics.Circle(0.5e-3), p)),
		optics.NewLens("objective", 0, 0.1),
		optics.NewScreen("pupil plane", 0),
		optics.NewScreen("focus", 0.1),
	})
	require.NoError(t, err)
	res, err := chain.Simulate(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, res.Screens, 2)

	pupil, focus := res.Screens[0].Intensity, res.Screens[1].Intensity
	assert.InEpsilon(t, floats.Sum(pupil), floats.Sum(focus), 0.01)
	assert.Equal(t, n/2*n+n/2, floats.MaxIdx(focus))
	assert.Greater(t, floats.Max(focus), 50*floats.Max(pupil))
}

func TestNewChainRejects(t *testing.T) {
	p := optics.RetrievalParams{}
	tests := []struct {
		name  string
		mode  optics.Mode
		elems []optics.Element
		want  error
	}{
		{"empty bench", optics.Forward, nil, optics.ErrConfiguration},
		{"placeholder in forward mode", optics.Forward,
			[]optics.Element{optics.NewAperturePlaceholder("doe", 0, p)}, optics.ErrConfiguration},
		{"screen in reverse mode", optics.Reverse,
			[]optics.Element{
				optics.NewAperturePlaceholder("doe", 0, p),
				optics.NewTargetIntensity("t", 0.1, flatTarget(2)),
				optics.NewScreen("s", 0.05),
			}, optics.ErrConfiguration},
		{"nan distance", optics.Forward,
			[]optics.Element{optics.NewScreen("s", math.NaN())}, optics.ErrConfiguration},
		{"behind the source", optics.Forward,
			[]optics.Element{optics.NewScreen("s", -0.1)}, optics.ErrOrdering},
		{"zero focal length", optics.Forward,
			[]optics.Element{optics.NewLens("l", 0.1, 0)}, optics.ErrConfiguration},
		{"aperture without mask", optics.Forward,
			[]optics.Element{optics.NewAperture("a", 0.1, nil)}, optics.ErrConfiguration},
		{"range runs backwards", optics.Forward,
			[]optics.Element{optics.NewRangedScreen("s", 0.2, 0.1, 4)}, optics.ErrOrdering},
		{"range without steps", optics.Forward,
			[]optics.Element{optics.NewRangedScreen("s", 0.1, 0.2, 0)}, optics.ErrConfiguration},
		{"target before placeholder", optics.Reverse,
			[]optics.Element{
				optics.NewAperturePlaceholder("doe", 0.2, p),
				optics.NewTargetIntensity("t", 0.1, flatTarget(2)),
			}, optics.ErrOrdering},
		{"two targets", optics.Reverse,
			[]optics.Element{
				optics.NewAperturePlaceholder("doe", 0, p),
				optics.NewTargetIntensity("t1", 0.1, flatTarget(2)),
				optics.NewTargetIntensity("t2", 0.2, flatTarget(2)),
			}, optics.ErrConfiguration},
		{"no target", optics.Reverse,
			[]optics.Element{optics.NewAperturePlaceholder("doe", 0, p)}, optics.ErrConfiguration},
		{"lens past the target", optics.Reverse,
			[]optics.Element{
				optics.NewAperturePlaceholder("doe", 0, p),
				optics.NewTargetIntensity("t", 0.1, flatTarget(2)),
				optics.NewLens("l", 0.2, 0.1),
			}, optics.ErrOrdering},
		{"negative tolerance", optics.Reverse,
			[]optics.Element{
				optics.NewAperturePlaceholder("doe", 0, optics.RetrievalParams{Tolerance: -1}),
				optics.NewTargetIntensity("t", 0.1, flatTarget(2)),
			}, optics.ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := optics.NewChain(tt.mode, tt.elems)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRunsNeedTheirMode(t *testing.T) {
	p := benchParams(8, 1e-3)
	fwd, err := optics.NewChain(optics.Forward, []optics.Element{optics.NewScreen("s", 0)})
	require.NoError(t, err)
	_, err = fwd.Retrieve(context.Background(), p)
	assert.ErrorIs(t, err, optics.ErrConfiguration)

	rev, err := optics.NewChain(optics.Reverse, []optics.Element{
		optics.NewAperturePlaceholder("doe", 0, optics.RetrievalParams{}),
		optics.NewTargetIntensity("t", 0.1, flatTarget(8)),
	})
	require.NoError(t, err)
	_, err = rev.Simulate(context.Background(), p)
	assert.ErrorIs(t, err, optics.ErrConfiguration)
	assert.Equal(t, optics.StateBuilt, rev.State())
}

func TestSimulateHonoursCancellation(t *testing.T) {
	chain, err := optics.NewChain(optics.Forward, []optics.Element{optics.NewScreen("s", 0.1)})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := chain.Simulate(ctx, benchParams(16, 1e-3))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
	assert.Equal(t, optics.StateFailed, chain.State())
}

func TestSimulateRejectsBadGrid(t *testing.T) {
	chain, err := optics.NewChain(optics.Forward, []optics.Element{optics.NewScreen("s", 0.1)})
	require.NoError(t, err)
	_, err = chain.Simulate(context.Background(), optics.Params{Wavelength: wavelength, Nx: 4, Ny: 4})
	assert.ErrorIs(t, err, optics.ErrConfiguration)
}
