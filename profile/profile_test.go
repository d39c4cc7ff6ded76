package profile

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// grid8 is an 8x8 screen with 1 mm samples.
var grid8 = Grid{Nx: 8, Ny: 8, ExtentX: 8e-3, ExtentY: 8e-3}

func TestHorizontalPath(t *testing.T) {
	p, err := NewPath(grid8, Line{})
	require.NoError(t, err)

	assert.Equal(t, "left to right", p.Direction)
	assert.InDelta(t, 0, p.StartCol, 1e-9)
	assert.InDelta(t, 4, p.StartRow, 1e-9)
	assert.InDelta(t, 7, p.EndCol, 1e-9)
	assert.InDelta(t, 4, p.EndRow, 1e-9)
	assert.InDelta(t, 7e-3, p.Length, 1e-12)
	require.Len(t, p.Samples, 8)
	for i, s := range p.Samples {
		assert.InDelta(t, float64(i), s.Col, 1e-9)
		assert.InDelta(t, float64(i)*1e-3, s.Distance, 1e-12)
	}
}

func TestPathGeometry(t *testing.T) {
	up, err := NewPath(grid8, Line{AngleDegrees: 90})
	require.NoError(t, err)
	assert.Equal(t, "bottom to top", up.Direction)
	assert.InDelta(t, 7, up.StartRow, 1e-9)
	assert.InDelta(t, 0, up.EndRow, 1e-9)
	assert.InDelta(t, 4, up.StartCol, 1e-9)

	back, err := NewPath(grid8, Line{AngleDegrees: 180})
	require.NoError(t, err)
	assert.Equal(t, "right to left", back.Direction)

	down, err := NewPath(grid8, Line{AngleDegrees: -80})
	require.NoError(t, err)
	assert.Equal(t, "top to bottom", down.Direction)

	// Positive offsets move the line to the left of travel, which is up the
	// image for a left-to-right line.
	shifted, err := NewPath(grid8, Line{Offset: 2e-3})
	require.NoError(t, err)
	assert.InDelta(t, 2, shifted.StartRow, 1e-9)

	diag, err := NewPath(grid8, Line{AngleDegrees: 45})
	require.NoError(t, err)
	assert.Greater(t, len(diag.Samples), 8)

	_, err = NewPath(grid8, Line{Offset: 10e-3})
	assert.ErrorIs(t, err, ErrNoIntersection)

	_, err = NewPath(Grid{Nx: 1, Ny: 8, ExtentX: 1, ExtentY: 1}, Line{})
	assert.Error(t, err)
}

func TestExtractAndEdges(t *testing.T) {
	p, err := NewPath(grid8, Line{})
	require.NoError(t, err)

	ramp := make([]float64, 64)
	slit := make([]float64, 64)
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			ramp[row*8+col] = float64(col)
			if col >= 2 && col <= 4 {
				slit[row*8+col] = 1
			}
		}
	}

	curve, err := p.Extract(ramp)
	require.NoError(t, err)
	require.Len(t, curve, 8)
	for i, pt := range curve {
		assert.InDelta(t, float64(i), pt.Intensity, 1e-9)
	}

	edges, err := p.FindEdges(slit)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2e-3, 5e-3}, edges, 1e-12)

	_, err = p.Extract(ramp[:10])
	assert.Error(t, err)
	_, err = p.FindEdges(slit[:10])
	assert.Error(t, err)
}

func TestInterpolateClamps(t *testing.T) {
	m := []float64{0, 1, 2, 3}
	assert.InDelta(t, 1.5, interpolate(m, 2, 2, 0.5, 0.5), 1e-12)
	assert.InDelta(t, 3, interpolate(m, 2, 2, 5, 5), 1e-12)
	assert.InDelta(t, 0, interpolate(m, 2, 2, -1, -1), 1e-12)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Point{{Intensity: 1}, {Intensity: 3}})
	assert.InDelta(t, 2, s.Mean, 1e-12)
	assert.InDelta(t, 1.4142135623730951, s.StdDev, 1e-12)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 3.0, s.Max)
	assert.InDelta(t, 0.5, s.Visibility, 1e-12)
	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestPlotAndDraw(t *testing.T) {
	p, err := NewPath(grid8, Line{})
	require.NoError(t, err)
	curve := []Point{{0, 1}, {1e-3, 2}, {2e-3, 0.5}}

	img, err := Plot(curve, []float64{1e-3}, "test", 300, 200)
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())

	_, err = Plot(nil, nil, "empty", 300, 200)
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "profile.png")
	require.NoError(t, SavePlot(file, curve, nil, "test", 300, 200))

	view := image.NewGray(image.Rect(0, 0, 16, 16))
	drawn := DrawPath(view, p)
	assert.Equal(t, color.RGBA{R: 255, A: 255}, drawn.RGBAAt(1, 9))
	assert.Equal(t, color.RGBA{G: 255, A: 255}, drawn.RGBAAt(15, 9))
	assert.Equal(t, color.RGBA{A: 255}, drawn.RGBAAt(8, 1))
}

func TestLoadGray16PNG(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 3, 2))
	img.SetGray16(2, 1, color.Gray16{Y: 4000})
	file := filepath.Join(t.TempDir(), "screen_16bit.png")
	require.NoError(t, SavePNG(file, img))

	got, nx, ny, err := LoadGray16PNG(file, 4000)
	require.NoError(t, err)
	assert.Equal(t, 3, nx)
	assert.Equal(t, 2, ny)
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 1}, got)

	_, _, _, err = LoadGray16PNG(filepath.Join(t.TempDir(), "missing.png"), 1)
	assert.Error(t, err)
}
