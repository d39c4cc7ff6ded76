package main

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"sort"

	"github.com/bob-anderson-ok/OpticalBench/optics"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// -------------------- I/O --------------------

// LoadImage decodes a PNG, JPEG, BMP, TIFF or WebP file.
func LoadImage(filename string) (img image.Image, err error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	img, _, err = image.Decode(f)
	return img, err
}

func ColorModelString(m color.Model) string {
	switch m {
	case color.RGBAModel:
		return "RGBA"
	case color.RGBA64Model:
		return "RGBA64"
	case color.NRGBAModel:
		return "NRGBA"
	case color.NRGBA64Model:
		return "NRGBA64"
	case color.GrayModel:
		return "Gray"
	case color.Gray16Model:
		return "Gray16"
	case color.CMYKModel:
		return "CMYK"
	case color.YCbCrModel:
		return "YCbCr"
	default:
		if _, ok := m.(color.Palette); ok {
			return "Paletted"
		}
		return fmt.Sprintf("Unknown (%T)", m)
	}
}

// isGrayImage reports whether every pixel of img has equal R, G and B.
func isGrayImage(img image.Image) bool {
	if m := img.ColorModel(); m == color.GrayModel || m == color.Gray16Model {
		return true
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r != g || g != bl {
				return false
			}
		}
	}
	return true
}

// hueOf returns the HSV hue of an RGB colour as a fraction of a turn.
func hueOf(r, g, b float64) float64 {
	hi := math.Max(r, math.Max(g, b))
	lo := math.Min(r, math.Min(g, b))
	c := hi - lo
	if c == 0 {
		return 0
	}
	var h float64
	switch hi {
	case r:
		h = math.Mod((g-b)/c, 6)
	case g:
		h = (b-r)/c + 2
	default:
		h = (r-g)/c + 4
	}
	h /= 6
	if h < 0 {
		h++
	}
	return h
}

// ImageToMask converts an aperture image to a mask on its own pixel grid.
// Gray levels become amplitude, or phase (0..2π, fully clear) for a phase
// mask. In colour images hue becomes phase and brightness amplitude.
// Inverting a phase mask reverses its phase instead of its amplitude.
func ImageToMask(img image.Image, isPhasemask, isInverted bool) *optics.Mask {
	b := img.Bounds()
	nx, ny := b.Dx(), b.Dy()
	m := &optics.Mask{Nx: nx, Ny: ny, Inverted: isInverted && !isPhasemask}
	turn := func(f float64) float64 {
		if isPhasemask && isInverted {
			f = 1 - f
		}
		return 2 * math.Pi * f
	}

	gray := isGrayImage(img)
	if !isPhasemask || !gray {
		m.Amplitude = make([]float64, nx*ny)
	}
	if isPhasemask || !gray {
		m.Phase = make([]float64, nx*ny)
	}
	if isPhasemask && !gray {
		m.Amplitude = nil
	}

	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			i := y*nx + x
			c := img.At(x+b.Min.X, y+b.Min.Y)
			if gray {
				v := float64(color.Gray16Model.Convert(c).(color.Gray16).Y) / 65535
				if isPhasemask {
					m.Phase[i] = turn(v)
				} else {
					m.Amplitude[i] = v
				}
				continue
			}
			r, g, bl, _ := c.RGBA()
			rf, gf, bf := float64(r)/65535, float64(g)/65535, float64(bl)/65535
			m.Phase[i] = turn(hueOf(rf, gf, bf))
			if m.Amplitude != nil {
				m.Amplitude[i] = math.Max(rf, math.Max(gf, bf))
			}
		}
	}
	return m
}

// ImageToTarget converts a target image to intensity by luminance.
func ImageToTarget(img image.Image) *optics.Target {
	b := img.Bounds()
	t := &optics.Target{Nx: b.Dx(), Ny: b.Dy(), Intensity: make([]float64, b.Dx()*b.Dy())}
	for y := 0; y < t.Ny; y++ {
		for x := 0; x < t.Nx; x++ {
			g := color.Gray16Model.Convert(img.At(x+b.Min.X, y+b.Min.Y)).(color.Gray16)
			t.Intensity[y*t.Nx+x] = float64(g.Y) / 65535
		}
	}
	return t
}

// MatrixToGray16Data -------------------- Data PNG (Gray16, fixed physical scaling) --------------------
// Mapping: Y16 = round(v * scale), clamped to [0, 65535]
func MatrixToGray16Data(m []float64, nx, ny int, scale float64) (*image.Gray16, error) {
	if nx <= 0 || ny <= 0 || len(m) != nx*ny {
		return nil, fmt.Errorf("matrix has %d values, want %dx%d", len(m), nx, ny)
	}
	if scale <= 0 {
		return nil, errors.New("scale must be > 0")
	}

	img := image.NewGray16(image.Rect(0, 0, nx, ny))
	for y := 0; y < ny; y++ {
		row := y * img.Stride
		for x := 0; x < nx; x++ {
			i := row + 2*x
			v := m[y*nx+x]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				img.Pix[i], img.Pix[i+1] = 0, 0
				continue
			}

			u := math.Round(v * scale)
			if u < 0 {
				u = 0
			} else if u > 65535 {
				u = 65535
			}
			y16 := uint16(u)

			// Gray16 Pix is big-endian per pixel: high then low
			img.Pix[i] = uint8(y16 >> 8)
			img.Pix[i+1] = uint8(y16)
		}
	}
	return img, nil
}

// MatrixToGrayViewPercentile -------------------- View PNG (Gray8, auto-stretch) --------------------
// Percentile stretch: map pLow to pHigh onto 0..255 and clamp.
func MatrixToGrayViewPercentile(m []float64, nx, ny int, pLow, pHigh float64) (*image.Gray, error) {
	if nx <= 0 || ny <= 0 || len(m) != nx*ny {
		return nil, fmt.Errorf("matrix has %d values, want %dx%d", len(m), nx, ny)
	}
	if !(0 <= pLow && pLow < pHigh && pHigh <= 100) {
		return nil, errors.New("percentiles must satisfy 0 <= p Low < pHigh <= 100")
	}

	// Collect finite values for percentile computation
	vals := make([]float64, 0, len(m))
	for _, v := range m {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return nil, errors.New("matrix has no finite values")
	}

	sort.Float64s(vals)

	percentile := func(p float64) float64 {
		if p <= 0 {
			return vals[0]
		}
		if p >= 100 {
			return vals[len(vals)-1]
		}
		pos := (p / 100.0) * float64(len(vals)-1)
		i := int(math.Floor(pos))
		f := pos - float64(i)
		if i >= len(vals)-1 {
			return vals[len(vals)-1]
		}
		return vals[i]*(1-f) + vals[i+1]*f
	}

	lo := percentile(pLow)
	hi := percentile(pHigh)
	if hi == lo {
		hi = lo + 1 // avoid divide-by-zero; image becomes mostly constant
	}

	img := image.NewGray(image.Rect(0, 0, nx, ny))
	for y := 0; y < ny; y++ {
		row := y * img.Stride
		for x := 0; x < nx; x++ {
			v := m[y*nx+x]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				img.Pix[row+x] = 0
				continue
			}
			t := (v - lo) / (hi - lo)
			t = math.Max(0, math.Min(1, t))
			img.Pix[row+x] = uint8(math.Round(t * 255.0))
		}
	}
	return img, nil
}

// PhaseToGray maps a phase map in [0, 2π) onto 0..255.
func PhaseToGray(phase []float64, nx, ny int) (*image.Gray, error) {
	if len(phase) != nx*ny {
		return nil, fmt.Errorf("phase has %d values, want %dx%d", len(phase), nx, ny)
	}
	img := image.NewGray(image.Rect(0, 0, nx, ny))
	for i, p := range phase {
		t := math.Mod(p, 2*math.Pi)
		if t < 0 {
			t += 2 * math.Pi
		}
		img.Pix[(i/nx)*img.Stride+i%nx] = uint8(math.Min(255, math.Floor(t/(2*math.Pi)*256)))
	}
	return img, nil
}

// ScaleForDisplay resizes img so its longer side is size pixels. size <= 0
// returns img unchanged.
func ScaleForDisplay(img image.Image, size int) image.Image {
	b := img.Bounds()
	if size <= 0 || max(b.Dx(), b.Dy()) == size {
		return img
	}
	w, h := size, size
	if b.Dx() > b.Dy() {
		h = max(1, int(math.Round(float64(size)*float64(b.Dy())/float64(b.Dx()))))
	} else if b.Dy() > b.Dx() {
		w = max(1, int(math.Round(float64(size)*float64(b.Dx())/float64(b.Dy()))))
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}
