package profile

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
)

// DrawPath copies img and draws the path on it as a red line, with a red dot
// at its start and a green dot at its end. img may be a rescaled view of the
// path's grid; coordinates are scaled to fit.
func DrawPath(img image.Image, p *Path) *image.RGBA {
	bounds := img.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, img, bounds.Min, draw.Src)

	sx := float64(bounds.Dx()) / float64(p.Nx)
	sy := float64(bounds.Dy()) / float64(p.Ny)
	x1, y1 := (p.StartCol+0.5)*sx, (p.StartRow+0.5)*sy
	x2, y2 := (p.EndCol+0.5)*sx, (p.EndRow+0.5)*sy

	drawLine(result, x1, y1, x2, y2, color.RGBA{R: 255, A: 255})
	drawDot(result, x1, y1, 5, color.RGBA{R: 255, A: 255})
	drawDot(result, x2, y2, 5, color.RGBA{G: 255, A: 255})
	return result
}

// drawLine draws a 3-pixel wide line using Bresenham's algorithm.
func drawLine(img *image.RGBA, x1, y1, x2, y2 float64, col color.Color) {
	x1, y1, x2, y2 = math.Round(x1), math.Round(y1), math.Round(x2), math.Round(y2)
	dx := math.Abs(x2 - x1)
	dy := math.Abs(y2 - y1)
	sx := -1.0
	if x1 < x2 {
		sx = 1.0
	}
	sy := -1.0
	if y1 < y2 {
		sy = 1.0
	}
	err := dx - dy

	b := img.Bounds()
	for {
		for oy := -1; oy <= 1; oy++ {
			for ox := -1; ox <= 1; ox++ {
				pt := image.Pt(int(x1)+ox, int(y1)+oy)
				if pt.In(b) {
					img.Set(pt.X, pt.Y, col)
				}
			}
		}

		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func drawDot(img *image.RGBA, cx, cy float64, radius int, col color.Color) {
	b := img.Bounds()
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			pt := image.Pt(int(cx)+x, int(cy)+y)
			if x*x+y*y <= radius*radius && pt.In(b) {
				img.Set(pt.X, pt.Y, col)
			}
		}
	}
}

// LoadGray16PNG reads a 16-bit grayscale PNG written by the bench back into a
// row-major intensity image: intensity = pixel / scale.
func LoadGray16PNG(filename string, scale float64) (intensity []float64, nx, ny int, err error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	img, err := png.Decode(f)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode %s: %w", filename, err)
	}

	b := img.Bounds()
	nx, ny = b.Dx(), b.Dy()
	intensity = make([]float64, nx*ny)
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			g := color.Gray16Model.Convert(img.At(x+b.Min.X, y+b.Min.Y)).(color.Gray16)
			intensity[y*nx+x] = float64(g.Y) / scale
		}
	}
	return intensity, nx, ny, nil
}
