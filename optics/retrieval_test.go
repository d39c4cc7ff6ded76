package optics_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bob-anderson-ok/OpticalBench/optics"
)

// sinusoidDOE is a weak crossed phase grating whose first orders pick up a
// quarter-wave phase over talbotQuarter, so its intensity there is a faithful
// image of the phase.
const (
	doeGrid   = 64
	doeExtent = 1e-3
	doeFreq   = 4 / doeExtent
	doeDepth  = 0.1
)

var talbotQuarter = 1 / (2 * wavelength * doeFreq * doeFreq)

func sinusoidDOE(x, y float64) (float64, float64) {
	return 1, doeDepth * (math.Cos(2*math.Pi*doeFreq*x) + math.Cos(2*math.Pi*doeFreq*y))
}

// designTarget simulates the intensity a known DOE (plus optional lens)
// produces, to be used as a retrieval target.
func designTarget(t *testing.T, p optics.Params, extra ...optics.Element) *optics.Target {
	t.Helper()
	elems := append([]optics.Element{
		optics.NewAperture("doe", 0, rasterize(t, sinusoidDOE, p)),
		optics.NewScreen("target", talbotQuarter),
	}, extra...)
	in := screenIntensity(t, p, elems...)
	return &optics.Target{Nx: p.Nx, Ny: p.Ny, Intensity: in}
}

func reverseChain(t *testing.T, rp optics.RetrievalParams, target *optics.Target, extra ...optics.Element) *optics.Chain {
	t.Helper()
	elems := append([]optics.Element{
		optics.NewAperturePlaceholder("doe", 0, rp),
		optics.NewTargetIntensity("target", talbotQuarter, target),
	}, extra...)
	chain, err := optics.NewChain(optics.Reverse, elems)
	require.NoError(t, err)
	return chain
}

func TestRetrieveConverges(t *testing.T) {
	p := benchParams(doeGrid, doeExtent)
	target := designTarget(t, p)
	chain := reverseChain(t, optics.RetrievalParams{MaxIterations: 50, Tolerance: 1e-3}, target)

	var seen []float64
	res, err := chain.Retrieve(context.Background(), p, exact, optics.WithObserver(func(it int, e float64) {
		assert.Equal(t, len(seen)+1, it)
		seen = append(seen, e)
	}))
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.NoError(t, res.ConvergenceErr())
	assert.Less(t, res.Iterations, 50)
	assert.LessOrEqual(t, res.Error, 1e-3)
	assert.Equal(t, seen, res.History)
	assert.Len(t, res.History, res.Iterations)
	assert.Greater(t, res.History[0], res.Error)
	assert.Equal(t, optics.StateDone, chain.State())

	// The retrieved phase reproduces the target when simulated forward.
	mask := &optics.Mask{Nx: p.Nx, Ny: p.Ny, Phase: res.Phase}
	for _, ph := range res.Phase {
		require.True(t, ph >= 0 && ph < 2*math.Pi)
	}
	got := screenIntensity(t, p,
		optics.NewAperture("designed", 0, mask),
		optics.NewScreen("target", talbotQuarter))
	assert.InDeltaSlice(t, res.Intensity, got, 1e-9)
}

func TestRetrieveReportsMissedTolerance(t *testing.T) {
	p := benchParams(doeGrid, doeExtent)
	chain := reverseChain(t, optics.RetrievalParams{MaxIterations: 1, Tolerance: 1e-12}, designTarget(t, p))

	res, err := chain.Retrieve(context.Background(), p, exact)
	require.NoError(t, err)
	assert.False(t, res.Converged)
	assert.Equal(t, 1, res.Iterations)
	assert.ErrorIs(t, res.ConvergenceErr(), optics.ErrConvergenceNotReached)
	// One pass from a zero phase leaves the illumination flat.
	for _, ph := range res.Phase {
		require.Equal(t, 0.0, ph)
	}
	for _, v := range res.Intensity {
		require.InDelta(t, 1, v, 1e-9)
	}
}

func TestRetrieveRandomStartIsSeeded(t *testing.T) {
	p := benchParams(16, doeExtent)
	target := flatTarget(16)
	rp := optics.RetrievalParams{MaxIterations: 3, Init: optics.InitRandom, Seed: 7}

	a, err := reverseChain(t, rp, target).Retrieve(context.Background(), p)
	require.NoError(t, err)
	b, err := reverseChain(t, rp, target).Retrieve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, a.Phase, b.Phase)
	assert.Equal(t, a.History, b.History)
}

func TestWeightedGerchbergSaxtonImproves(t *testing.T) {
	p := benchParams(doeGrid, doeExtent)
	rp := optics.RetrievalParams{
		Algorithm:     optics.WeightedGerchbergSaxton,
		MaxIterations: 30,
		Tolerance:     1e-6,
	}
	res, err := reverseChain(t, rp, designTarget(t, p)).Retrieve(context.Background(), p, exact)
	require.NoError(t, err)
	assert.Less(t, res.Error, res.History[0])
	assert.False(t, math.IsNaN(res.Error))
}

func TestRetrieveThroughLens(t *testing.T) {
	p := benchParams(doeGrid, doeExtent)
	lens := optics.NewLens("relay", talbotQuarter/2, 0.2)
	target := designTarget(t, p, lens)
	rp := optics.RetrievalParams{MaxIterations: 20, Illumination: optics.Illumination{Waist: 2 * doeExtent}}

	res, err := reverseChain(t, rp, target, lens).Retrieve(context.Background(), p, exact)
	require.NoError(t, err)
	assert.Less(t, res.Error, res.History[0])
}

func TestRetrieveRejectsBadIllumination(t *testing.T) {
	p := benchParams(8, doeExtent)
	rp := optics.RetrievalParams{Illumination: optics.Illumination{Amplitude: make([]float64, 10)}}
	_, err := reverseChain(t, rp, flatTarget(8)).Retrieve(context.Background(), p)
	assert.ErrorIs(t, err, optics.ErrConfiguration)

	rp = optics.RetrievalParams{Illumination: optics.Illumination{Amplitude: make([]float64, 64)}}
	_, err = reverseChain(t, rp, flatTarget(8)).Retrieve(context.Background(), p)
	assert.ErrorIs(t, err, optics.ErrConfiguration)
}

func TestRetrieveAbortsOnOverflow(t *testing.T) {
	// Finite but huge: the 64-point DC sum of the first transform overflows.
	p := benchParams(8, doeExtent)
	amp := make([]float64, 64)
	for i := range amp {
		amp[i] = 1e307
	}
	rp := optics.RetrievalParams{MaxIterations: 5, Illumination: optics.Illumination{Amplitude: amp}}
	chain := reverseChain(t, rp, flatTarget(8))

	res, err := chain.Retrieve(context.Background(), p)
	assert.ErrorIs(t, err, optics.ErrNumericalInstability)
	assert.Nil(t, res)
	assert.Equal(t, optics.StateFailed, chain.State())
}

func TestRetrieveHonoursCancellation(t *testing.T) {
	p := benchParams(16, doeExtent)
	chain := reverseChain(t, optics.RetrievalParams{}, flatTarget(16))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := chain.Retrieve(ctx, p)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
	assert.Equal(t, optics.StateFailed, chain.State())
}

func TestParseRetrievalNames(t *testing.T) {
	a, err := optics.ParseAlgorithm("weighted_gs")
	require.NoError(t, err)
	assert.Equal(t, optics.WeightedGerchbergSaxton, a)
	a, err = optics.ParseAlgorithm("GS")
	require.NoError(t, err)
	assert.Equal(t, optics.GerchbergSaxton, a)
	_, err = optics.ParseAlgorithm("hio")
	assert.ErrorIs(t, err, optics.ErrConfiguration)

	i, err := optics.ParsePhaseInit("random")
	require.NoError(t, err)
	assert.Equal(t, optics.InitRandom, i)
	_, err = optics.ParsePhaseInit("ones")
	assert.ErrorIs(t, err, optics.ErrConfiguration)
}
