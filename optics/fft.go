package optics

import (
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// fft2 performs 2-D complex transforms on a flat row-major grid: rows first,
// then columns. fourier.CmplxFFT keeps internal work space, so each worker
// owns its own pair of transforms and its own column buffer.
type fft2 struct {
	nx, ny  int
	workers int
	rowFFT  []*fourier.CmplxFFT
	colFFT  []*fourier.CmplxFFT
	colBuf  [][]complex128
}

func newFFT2(nx, ny, workers int) *fft2 {
	if workers < 1 {
		workers = 1
	}
	if n := max(nx, ny); workers > n {
		workers = n
	}
	t := &fft2{nx: nx, ny: ny, workers: workers}
	for w := 0; w < workers; w++ {
		t.rowFFT = append(t.rowFFT, fourier.NewCmplxFFT(nx))
		t.colFFT = append(t.colFFT, fourier.NewCmplxFFT(ny))
		t.colBuf = append(t.colBuf, make([]complex128, ny))
	}
	return t
}

// transform replaces a with its 2-D DFT (forward) or inverse DFT. Gonum's
// transforms are unnormalized; the inverse divides by nx*ny so a forward
// transform followed by an inverse one is the identity.
func (t *fft2) transform(a []complex128, forward bool) {
	t.parallel(t.ny, func(w, y int) {
		row := a[y*t.nx : (y+1)*t.nx]
		if forward {
			t.rowFFT[w].Coefficients(row, row)
		} else {
			t.rowFFT[w].Sequence(row, row)
		}
	})

	t.parallel(t.nx, func(w, x int) {
		col := t.colBuf[w]
		for y := 0; y < t.ny; y++ {
			col[y] = a[y*t.nx+x]
		}
		if forward {
			t.colFFT[w].Coefficients(col, col)
		} else {
			t.colFFT[w].Sequence(col, col)
		}
		for y := 0; y < t.ny; y++ {
			a[y*t.nx+x] = col[y]
		}
	})

	if !forward {
		scale := complex(1/float64(t.nx*t.ny), 0)
		for i := range a {
			a[i] *= scale
		}
	}
}

// parallel calls fn(worker, i) for i in [0, n), striding the indices across
// the configured workers.
func (t *fft2) parallel(n int, fn func(w, i int)) {
	if t.workers == 1 {
		for i := 0; i < n; i++ {
			fn(0, i)
		}
		return
	}
	var wg sync.WaitGroup
	for w := 0; w < t.workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < n; i += t.workers {
				fn(w, i)
			}
		}(w)
	}
	wg.Wait()
}

// frequencies returns the spatial frequency (cycles per metre) of each DFT
// bin for n samples at spacing d, in the unshifted order used by the
// transform: 0, 1, ..., ceil(n/2)-1, -floor(n/2), ..., -1.
func frequencies(n int, d float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		k := i
		if i > (n-1)/2 {
			k = i - n
		}
		out[i] = float64(k) / (float64(n) * d)
	}
	return out
}
