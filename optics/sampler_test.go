package optics_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bob-anderson-ok/OpticalBench/optics"
)

// exact pins the propagation model so runs that split a distance into
// different steps stay comparable.
var exact = optics.WithMethod(optics.MethodAngularSpectrum)

func screenIntensity(t *testing.T, p optics.Params, elems ...optics.Element) []float64 {
	t.Helper()
	chain, err := optics.NewChain(optics.Forward, elems)
	require.NoError(t, err)
	res, err := chain.Simulate(context.Background(), p, exact)
	require.NoError(t, err)
	require.NotEmpty(t, res.Screens)
	return res.Screens[len(res.Screens)-1].Intensity
}

func TestLinspace(t *testing.T) {
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75, 1}, optics.Linspace(0, 1, 5))
	assert.Equal(t, []float64{2}, optics.Linspace(2, 3, 1))
	assert.Equal(t, []float64{2}, optics.Linspace(2, 3, 0))
}

func TestRangedScreenFrames(t *testing.T) {
	p := benchParams(64, 1e-3)
	pinhole := rasterize(t, optics.Circle(0.2e-3), p)
	chain, err := optics.NewChain(optics.Forward, []optics.Element{
		optics.NewAperture("pinhole", 0, pinhole),
		optics.NewRangedScreen("sweep", 0.01, 0.05, 5),
		optics.NewScreen("after", 0.08),
	})
	require.NoError(t, err)
	res, err := chain.Simulate(context.Background(), p, exact)
	require.NoError(t, err)
	require.Len(t, res.Screens, 2)
	assert.Nil(t, res.Screens[1].Frames)

	seq := res.Screens[0].Frames
	require.NotNil(t, seq)
	require.Equal(t, 5, seq.Len())
	assert.InDeltaSlice(t, []float64{0.01, 0.02, 0.03, 0.04, 0.05}, seq.Distances(), 1e-15)

	var frames []optics.Frame
	for fr, err := range seq.All(context.Background()) {
		require.NoError(t, err)
		frames = append(frames, fr)
	}
	require.Len(t, frames, 5)
	for i, fr := range frames {
		assert.Equal(t, i, fr.Index)
		assert.Equal(t, 64, fr.Nx)
		if i > 0 {
			assert.Greater(t, fr.Distance, frames[i-1].Distance)
		}
	}
	assert.InDeltaSlice(t, res.Screens[0].Intensity, frames[0].Intensity, 1e-12)

	direct := screenIntensity(t, p,
		optics.NewAperture("pinhole", 0, pinhole),
		optics.NewScreen("direct", 0.03))
	assert.InDeltaSlice(t, direct, frames[2].Intensity, 1e-9)

	collected, err := seq.Collect(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, collected, 5)
	for i := range frames {
		assert.Equal(t, frames[i].Distance, collected[i].Distance)
		assert.InDeltaSlice(t, frames[i].Intensity, collected[i].Intensity, 1e-12)
	}

	// A second pass starts over from the screen plane.
	again, err := seq.Collect(context.Background(), 0)
	require.NoError(t, err)
	assert.InDeltaSlice(t, collected[4].Intensity, again[4].Intensity, 1e-12)
}

func TestRangedScreenAppliesLaterElements(t *testing.T) {
	p := benchParams(64, 1e-3)
	pinhole := rasterize(t, optics.Circle(0.2e-3), p)
	chain, err := optics.NewChain(optics.Forward, []optics.Element{
		optics.NewAperture("pinhole", 0, pinhole),
		optics.NewRangedScreen("sweep", 0, 0.1, 3),
		optics.NewLens("lens", 0.05, 0.05),
	})
	require.NoError(t, err)
	res, err := chain.Simulate(context.Background(), p, exact)
	require.NoError(t, err)

	frames, err := res.Screens[0].Frames.Collect(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, frames, 3)

	direct := screenIntensity(t, p,
		optics.NewAperture("pinhole", 0, pinhole),
		optics.NewLens("lens", 0.05, 0.05),
		optics.NewScreen("direct", 0.1))
	assert.InDeltaSlice(t, direct, frames[2].Intensity, 1e-9)
}

func TestFrameSequenceCancellation(t *testing.T) {
	p := benchParams(32, 1e-3)
	chain, err := optics.NewChain(optics.Forward, []optics.Element{
		optics.NewRangedScreen("sweep", 0, 0.1, 8),
	})
	require.NoError(t, err)
	res, err := chain.Simulate(context.Background(), p)
	require.NoError(t, err)
	seq := res.Screens[0].Frames

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	frames, err := seq.Collect(ctx, 4)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, frames)

	n := 0
	for _, err := range seq.All(ctx) {
		n++
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, 1, n)

	// Breaking out early is fine.
	n = 0
	for range seq.All(context.Background()) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}
