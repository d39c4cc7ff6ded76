package optics

// Bilinear lookups on flat row-major grids. Coordinates are fractional sample
// indices; positions past the last sample are clamped to the edge.

func clampIndex(u float64, n int) (i0, i1 int, frac float64) {
	if n == 1 {
		return 0, 0, 0
	}
	if u < 0 {
		u = 0
	}
	if u >= float64(n-1) {
		return n - 1, n - 1, 0
	}
	i0 = int(u)
	return i0, i0 + 1, u - float64(i0)
}

func bilinearReal(data []float64, nx, ny int, u, v float64) float64 {
	x0, x1, xFrac := clampIndex(u, nx)
	y0, y1, yFrac := clampIndex(v, ny)

	v00 := data[y0*nx+x0]
	v01 := data[y0*nx+x1]
	v10 := data[y1*nx+x0]
	v11 := data[y1*nx+x1]

	r0 := v00*(1-xFrac) + v01*xFrac
	r1 := v10*(1-xFrac) + v11*xFrac
	return r0*(1-yFrac) + r1*yFrac
}

func bilinearComplex(data []complex128, nx, ny int, u, v float64) complex128 {
	x0, x1, xFrac := clampIndex(u, nx)
	y0, y1, yFrac := clampIndex(v, ny)
	fx := complex(xFrac, 0)
	fy := complex(yFrac, 0)

	v00 := data[y0*nx+x0]
	v01 := data[y0*nx+x1]
	v10 := data[y1*nx+x0]
	v11 := data[y1*nx+x1]

	r0 := v00*(1-fx) + v01*fx
	r1 := v10*(1-fx) + v11*fx
	return r0*(1-fy) + r1*fy
}

func nearestIndex(u float64, n int) int {
	i := int(u + 0.5)
	if u < 0 {
		i = 0
	}
	if i >= n {
		i = n - 1
	}
	return i
}
