package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/bob-anderson-ok/OpticalBench/optics"
)

const mm = 1e-3

// params converts the bench's grid settings to optics units. Explicit point
// counts win over resolution_px_per_mm.
func (b *Bench) params() optics.Params {
	nx, ny := b.NumPointsX, b.NumPointsY
	if nx <= 0 {
		nx = int(b.ExtentXmm*b.ResolutionPxPerMm + 0.5)
	}
	if ny <= 0 {
		ny = int(b.ExtentYmm*b.ResolutionPxPerMm + 0.5)
	}
	return optics.Params{
		Wavelength: b.WavelengthNm * 1e-9,
		ExtentX:    b.ExtentXmm * mm,
		ExtentY:    b.ExtentYmm * mm,
		Nx:         nx,
		Ny:         ny,
	}
}

// shapeFor returns the analytic shape an element entry names, in metres.
func shapeFor(e ElementSpec) (optics.Shape, error) {
	switch e.Shape {
	case "circle":
		return optics.Circle(e.RadiusMm * mm), nil
	case "ellipse":
		return optics.Ellipse(e.XCenterMm*mm, e.YCenterMm*mm, e.XDiamMm*mm, e.YDiamMm*mm, e.AngleDegrees), nil
	case "rectangle":
		return optics.Rectangle(e.SlitWidthMm*mm, e.SlitHeightMm*mm), nil
	case "double_slit":
		return optics.DoubleSlit(e.SlitWidthMm*mm, e.SeparationMm*mm, e.SlitHeightMm*mm), nil
	case "binary_grating":
		duty := e.Duty
		if duty == 0 {
			duty = 0.5
		}
		return optics.BinaryGrating(e.PeriodMm*mm, duty), nil
	case "phase_grating":
		return optics.PhaseGrating(e.PeriodMm*mm, e.DepthRad), nil
	}
	return nil, fmt.Errorf("unknown shape %q", e.Shape)
}

// maskFor loads or rasterizes an element's aperture. Shapes are rasterized on
// the run grid over the element's width and height (the field extent when
// they are zero) so no resampling is needed.
func maskFor(e ElementSpec, p optics.Params) (*optics.Mask, error) {
	width, height := e.WidthMm*mm, e.HeightMm*mm
	if e.ImagePath != "" {
		img, err := LoadImage(e.ImagePath)
		if err != nil {
			return nil, fmt.Errorf("attempt to read image %q failed: %w", e.ImagePath, err)
		}
		fmt.Printf("Loaded %q: %dx%d %s\n", e.ImagePath, img.Bounds().Dx(), img.Bounds().Dy(), ColorModelString(img.ColorModel()))
		m := ImageToMask(img, e.IsPhasemask, e.IsInverted)
		m.Width, m.Height = width, height
		if strings.EqualFold(e.Interpolation, "nearest") {
			m.Interpolation = optics.Nearest
		}
		return m, nil
	}

	shape, err := shapeFor(e)
	if err != nil {
		return nil, err
	}
	if width == 0 {
		width = p.ExtentX
	}
	if height == 0 {
		height = p.ExtentY
	}
	nx := max(1, int(width/p.ExtentX*float64(p.Nx)+0.5))
	ny := max(1, int(height/p.ExtentY*float64(p.Ny)+0.5))
	m, err := optics.Rasterize(shape, nx, ny, width, height)
	if err != nil {
		return nil, err
	}
	m.Inverted = e.IsInverted
	if e.IsPhasemask {
		// A shape used as a phase mask delays its clear area by π.
		for i, a := range m.Amplitude {
			m.Phase[i] += a * math.Pi
		}
		m.Amplitude = nil
		m.Inverted = false
	}
	return m, nil
}

// targetFor loads or rasterizes a target intensity.
func targetFor(e ElementSpec, p optics.Params) (*optics.Target, error) {
	if e.ImagePath != "" {
		img, err := LoadImage(e.ImagePath)
		if err != nil {
			return nil, fmt.Errorf("attempt to read image %q failed: %w", e.ImagePath, err)
		}
		fmt.Printf("Loaded %q: %dx%d %s\n", e.ImagePath, img.Bounds().Dx(), img.Bounds().Dy(), ColorModelString(img.ColorModel()))
		t := ImageToTarget(img)
		t.Width, t.Height = e.WidthMm*mm, e.HeightMm*mm
		return t, nil
	}
	shape := e
	shape.IsPhasemask, shape.IsInverted = false, false
	m, err := maskFor(shape, p)
	if err != nil {
		return nil, err
	}
	t := &optics.Target{Nx: m.Nx, Ny: m.Ny, Width: m.Width, Height: m.Height, Intensity: make([]float64, len(m.Amplitude))}
	for i, a := range m.Amplitude {
		t.Intensity[i] = a * a
	}
	return t, nil
}

// retrievalFor converts an aperture_result entry.
func retrievalFor(e ElementSpec) (optics.RetrievalParams, error) {
	alg, err := optics.ParseAlgorithm(e.Algorithm)
	if err != nil {
		return optics.RetrievalParams{}, err
	}
	phaseInit, err := optics.ParsePhaseInit(e.Init)
	if err != nil {
		return optics.RetrievalParams{}, err
	}
	return optics.RetrievalParams{
		Algorithm:     alg,
		MaxIterations: e.MaxIterations,
		Tolerance:     e.Tolerance,
		Init:          phaseInit,
		Seed:          e.Seed,
		Illumination:  optics.Illumination{Waist: e.WaistMm * mm},
	}, nil
}

// buildElements turns the parameter file's element list into optics
// elements for grid p.
func buildElements(b *Bench, p optics.Params) ([]optics.Element, error) {
	out := make([]optics.Element, 0, len(b.Elements))
	for i, e := range b.Elements {
		name := e.Name
		if name == "" {
			name = fmt.Sprintf("%s%d", e.Type, i)
		}
		d := e.DistanceMm * mm

		switch e.Type {
		case "aperture":
			m, err := maskFor(e, p)
			if err != nil {
				return nil, fmt.Errorf("elements[%d]: %w", i, err)
			}
			out = append(out, optics.NewAperture(name, d, m))
		case "lens":
			out = append(out, optics.NewLens(name, d, e.FocalMm*mm))
		case "screen":
			if e.HasRange {
				out = append(out, optics.NewRangedScreen(name, d, e.RangeEndMm*mm, e.Steps))
			} else {
				out = append(out, optics.NewScreen(name, d))
			}
		case "aperture_result":
			rp, err := retrievalFor(e)
			if err != nil {
				return nil, fmt.Errorf("elements[%d]: %w", i, err)
			}
			out = append(out, optics.NewAperturePlaceholder(name, d, rp))
		case "target_intensity":
			t, err := targetFor(e, p)
			if err != nil {
				return nil, fmt.Errorf("elements[%d]: %w", i, err)
			}
			out = append(out, optics.NewTargetIntensity(name, d, t))
		default:
			return nil, fmt.Errorf("elements[%d]: unknown element type %q", i, e.Type)
		}
	}
	return out, nil
}

// undersampledWarning says that name at distance metres lies past the grid's
// critical distance, and how many points at the same pitch would reach it.
func undersampledWarning(p optics.Params, name string, distance float64) string {
	dx := p.ExtentX / float64(p.Nx)
	dy := p.ExtentY / float64(p.Ny)
	nx := int(math.Ceil(math.Abs(distance) * p.Wavelength / (dx * dx)))
	ny := int(math.Ceil(math.Abs(distance) * p.Wavelength / (dy * dy)))
	return fmt.Sprintf("\tWarning: %q at %0.2f mm is beyond the critical distance of %0.2f mm and will be aliased; "+
		"%dx%d points at the same pitch would reach it",
		name, distance*1e3, optics.CriticalDistance(p)*1e3, max(nx, p.Nx), max(ny, p.Ny))
}
