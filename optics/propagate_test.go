package optics_test

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bob-anderson-ok/OpticalBench/optics"
)

func TestPropagateZeroIsCopy(t *testing.T) {
	f := gaussian(t, benchParams(32, 1e-3), 0.1e-3)
	g, err := optics.Propagator{}.Propagate(f, 0)
	require.NoError(t, err)
	assert.Equal(t, f.E, g.E)
	g.E[0] = 7
	assert.NotEqual(t, f.E[0], g.E[0])
}

func TestPropagateRejectsBadDistance(t *testing.T) {
	f := gaussian(t, benchParams(8, 1e-3), 0.1e-3)
	for _, dz := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := optics.Propagator{}.Propagate(f, dz)
		assert.ErrorIs(t, err, optics.ErrConfiguration)
	}
}

func TestPropagateRoundTrip(t *testing.T) {
	f := gaussian(t, benchParams(128, 2e-3), 0.15e-3)
	for _, m := range []optics.Method{optics.MethodAngularSpectrum, optics.MethodFresnel} {
		prop := optics.Propagator{Method: m, Workers: 2}
		there, err := prop.Propagate(f, 0.03)
		require.NoError(t, err)
		back, err := prop.Propagate(there, -0.03)
		require.NoError(t, err)
		for i := range f.E {
			require.InDelta(t, 0, cmplx.Abs(back.E[i]-f.E[i]), 1e-9, "%s sample %d", m, i)
		}
	}
}

func TestPropagateConservesEnergy(t *testing.T) {
	f := gaussian(t, benchParams(128, 2e-3), 0.15e-3)
	g, err := optics.Propagator{Method: optics.MethodAngularSpectrum}.Propagate(f, 0.05)
	require.NoError(t, err)
	assert.InEpsilon(t, f.Energy(), g.Energy(), 1e-9)
}

func TestGaussianBeamSpreads(t *testing.T) {
	const waist = 0.2e-3
	p := benchParams(256, 2e-3)
	f := gaussian(t, p, waist)
	g, err := optics.Propagator{}.Propagate(f, 0.05)
	require.NoError(t, err)

	zR := math.Pi * waist * waist / wavelength
	want := 1 / (1 + (0.05/zR)*(0.05/zR))
	assert.InDelta(t, want, g.Intensity()[128*256+128], 1e-3)
}

func TestFresnelMatchesAngularSpectrumParaxially(t *testing.T) {
	p := benchParams(256, 2e-3)
	require.True(t, optics.Paraxial(p))
	f := gaussian(t, p, 0.2e-3)

	as, err := optics.Propagator{Method: optics.MethodAngularSpectrum}.Propagate(f, 0.05)
	require.NoError(t, err)
	fr, err := optics.Propagator{Method: optics.MethodFresnel}.Propagate(f, 0.05)
	require.NoError(t, err)

	ia, ifr := as.Intensity(), fr.Intensity()
	for i := range ia {
		require.InDelta(t, ia[i], ifr[i], 1e-4, "sample %d", i)
	}
}

func TestEvanescentComponentsDecay(t *testing.T) {
	// 0.2 µm pitch puts the Nyquist frequency above 1/λ.
	p := optics.Params{Wavelength: wavelength, ExtentX: 3.2e-6, ExtentY: 3.2e-6, Nx: 16, Ny: 16}
	require.False(t, optics.Paraxial(p))
	f, err := optics.NewField(p)
	require.NoError(t, err)
	for i := range f.E {
		if i%2 == 1 {
			f.E[i] = -1
		}
	}
	before := f.Energy()

	for _, m := range []optics.Method{optics.MethodAngularSpectrum, optics.MethodFresnel} {
		for _, dz := range []float64{1e-6, -1e-6} {
			g, err := optics.Propagator{Method: m}.Propagate(f, dz)
			require.NoError(t, err)
			assert.Less(t, g.Energy(), 1e-3*before, "%s dz=%g", m, dz)
		}
	}
}

func TestPropagatorWorkersAgree(t *testing.T) {
	f := gaussian(t, benchParams(64, 1e-3), 0.1e-3)
	a, err := optics.Propagator{Workers: 1}.Propagate(f, 0.01)
	require.NoError(t, err)
	b, err := optics.Propagator{Workers: 8}.Propagate(f, 0.01)
	require.NoError(t, err)
	for i := range a.E {
		require.InDelta(t, 0, cmplx.Abs(a.E[i]-b.E[i]), 1e-12)
	}
}

func TestParseMethod(t *testing.T) {
	tests := map[string]optics.Method{
		"":                 optics.MethodAuto,
		"auto":             optics.MethodAuto,
		"angular_spectrum": optics.MethodAngularSpectrum,
		"AS":               optics.MethodAngularSpectrum,
		" fresnel ":        optics.MethodFresnel,
	}
	for in, want := range tests {
		got, err := optics.ParseMethod(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := optics.ParseMethod("rayleigh")
	assert.ErrorIs(t, err, optics.ErrConfiguration)
}

func TestSamplingFigures(t *testing.T) {
	p := benchParams(256, 2e-3)
	dx := 2e-3 / 256
	assert.InEpsilon(t, 256*dx*dx/wavelength, optics.CriticalDistance(p), 1e-12)
	assert.InEpsilon(t, 1.0, optics.FresnelNumber(math.Sqrt(wavelength*0.5), wavelength, -0.5), 1e-12)
}

func TestMethodFor(t *testing.T) {
	p := benchParams(256, 2e-3)
	require.True(t, optics.Paraxial(p))
	zc := optics.CriticalDistance(p)

	// Both transfer functions share the frequency grid, so auto never
	// switches to Fresnel, even past the critical distance.
	auto := optics.Propagator{}
	assert.Equal(t, optics.MethodAngularSpectrum, auto.MethodFor(p, zc/2))
	assert.Equal(t, optics.MethodAngularSpectrum, auto.MethodFor(p, 2*zc))
	assert.Equal(t, optics.MethodAngularSpectrum, auto.MethodFor(p, -2*zc))

	fine := benchParams(256, 0.1e-3)
	require.False(t, optics.Paraxial(fine))
	assert.Equal(t, optics.MethodAngularSpectrum, auto.MethodFor(fine, 10))

	fixed := optics.Propagator{Method: optics.MethodFresnel}
	assert.Equal(t, optics.MethodFresnel, fixed.MethodFor(p, zc/2))
}

func TestUndersampled(t *testing.T) {
	p := benchParams(256, 2e-3)
	zc := optics.CriticalDistance(p)
	assert.False(t, optics.Undersampled(p, 0))
	assert.False(t, optics.Undersampled(p, zc))
	assert.True(t, optics.Undersampled(p, 1.01*zc))
	assert.True(t, optics.Undersampled(p, -1.01*zc))

	// Doubling the points at the same pitch doubles the reach.
	wide := benchParams(512, 4e-3)
	assert.InEpsilon(t, 2*zc, optics.CriticalDistance(wide), 1e-12)
	assert.False(t, optics.Undersampled(wide, 1.5*zc))
}
