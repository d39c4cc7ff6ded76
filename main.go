package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	json "github.com/KevinWang15/go-json5"
	"gonum.org/v1/gonum/floats"

	"github.com/bob-anderson-ok/OpticalBench/optics"
	"github.com/bob-anderson-ok/OpticalBench/profile"
)

// !!!!! This MUST match the app name given in the run configuration !!!!!
const version = "1_0_0"

// Scale used for the scientific (16-bit) images: Y16 = intensity * 4000.
const gray16Scale = 4000.0

// Bench is everything read from the parameter file.
type Bench struct {
	ShowInput          bool
	Title              string
	Mode               string
	WavelengthNm       float64
	ExtentXmm          float64
	ExtentYmm          float64
	ResolutionPxPerMm  float64
	NumPointsX         int
	NumPointsY         int
	Method             string
	Workers            int
	OutputFolder       string
	DisplaySizePixels  int
	PathToSpectrumFile string
	Spectrum           [][2]float64 // [wavelength nm, normalised weight]
	Profile            *ProfileSpec
	Elements           []ElementSpec
}

// ProfileSpec asks for an intensity profile across every screen.
type ProfileSpec struct {
	AngleDegrees float64
	OffsetMm     float64
}

// ElementSpec is one entry of the elements array. Only the fields of its Type
// are used.
type ElementSpec struct {
	Type       string
	Name       string
	DistanceMm float64

	// aperture and target_intensity
	ImagePath     string
	Shape         string
	WidthMm       float64
	HeightMm      float64
	IsInverted    bool
	IsPhasemask   bool
	Interpolation string
	RadiusMm      float64
	SlitWidthMm   float64
	SlitHeightMm  float64
	SeparationMm  float64
	XCenterMm     float64
	YCenterMm     float64
	XDiamMm       float64
	YDiamMm       float64
	AngleDegrees  float64
	PeriodMm      float64
	Duty          float64
	DepthRad      float64

	// lens
	FocalMm float64

	// screen
	HasRange   bool
	RangeEndMm float64
	Steps      int

	// aperture_result
	Algorithm     string
	Init          string
	MaxIterations int
	Tolerance     float64
	Seed          int64
	WaistMm       float64
}

// screenImage is a screen's intensity after any spectral compositing.
type screenImage struct {
	name      string
	distance  float64
	intensity []float64
	slices    []optics.Frame
}

func main() {

	programStart := time.Now()

	args := os.Args

	if len(args) != 2 {
		fmt.Println("\n\tWrong number of arguments.\n\tUsage: OpticalBench <parameter-file>")
		os.Exit(1)
	}

	path := args[1]

	// Read the Json5 (or Json) parameter file
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tAttempt to read input file %q failed: %w\n", path, err))
		os.Exit(2)
	}

	// Parse json(5) data into a generic container
	var jsonTable map[string]interface{}
	err = json.Unmarshal(data, &jsonTable)
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tFormat error in file %q: %w\n", path, err))
		os.Exit(3)
	}

	var bench Bench
	msg, ok := validateJsonFileAndFillBench(jsonTable, &bench)
	if !ok {
		fmt.Println(msg)
		os.Exit(4)
	}

	// Check for user wanting printout of complete jsonTable
	if bench.ShowInput {
		fmt.Printf("%s", "\nPrintout of  complete jsonTable contents...\n")
		fmt.Println(string(data))
	}

	err = os.MkdirAll(bench.OutputFolder, 0o755)
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tCould not create output folder %q: %w\n", bench.OutputFolder, err))
		os.Exit(5)
	}

	// If a path to a spectrum file was given, read it
	if bench.PathToSpectrumFile != "" {
		data, err := os.ReadFile(bench.PathToSpectrumFile)
		if err != nil {
			fmt.Println(fmt.Errorf("\n\tAttempt to read file %q failed: %w\n", bench.PathToSpectrumFile, err))
			os.Exit(13)
		}
		spectrum, err := parseArrayFormat(data)
		if err != nil {
			fmt.Println(fmt.Errorf("\n\tError reading spectrum file %q: %w\n", bench.PathToSpectrumFile, err))
			os.Exit(15)
		}
		if len(spectrum) < 1 {
			fmt.Println(fmt.Errorf("\n\tThe spectrum file %q is empty.", bench.PathToSpectrumFile))
			os.Exit(14)
		}
		var cumWeights = 0.0
		for i := 0; i < len(spectrum); i++ {
			cumWeights += spectrum[i][1]
		}
		if cumWeights <= 0 {
			fmt.Println(fmt.Errorf("\n\tThe spectrum file %q has no positive weights.", bench.PathToSpectrumFile))
			os.Exit(14)
		}
		for i := 0; i < len(spectrum); i++ {
			spectrum[i][1] /= cumWeights
		}
		bench.Spectrum = spectrum
		err = MakeSpectrumPlot(spectrum, bench.PathToSpectrumFile, filepath.Join(bench.OutputFolder, "spectrum.png"))
		if err != nil {
			fmt.Println(fmt.Errorf("\n\tWriting the spectrum plot failed: %w", err))
			os.Exit(12)
		}
	}

	fmt.Printf("\nVersion %s\n\n", version)

	params := bench.params()
	err = params.Validate()
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tBad grid: %w", err))
		os.Exit(6)
	}
	mode, err := optics.ParseMode(bench.Mode)
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tmode: %w", err))
		os.Exit(6)
	}
	method, err := optics.ParseMethod(bench.Method)
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tpropagation_method: %w", err))
		os.Exit(6)
	}
	propagator := optics.Propagator{Method: method, Workers: bench.Workers}

	dx := params.ExtentX / float64(params.Nx)
	dy := params.ExtentY / float64(params.Ny)
	fmt.Printf("Grid is %dx%d points, %0.3f x %0.3f um/pixel\n", params.Nx, params.Ny, dx*1e6, dy*1e6)
	fmt.Printf("Critical distance is %0.3f mm\n", optics.CriticalDistance(params)*1e3)
	fmt.Printf("Paraxial grid: %v\n\n", optics.Paraxial(params))

	start := time.Now()
	elems, err := buildElements(&bench, params)
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tBuilding the elements failed: %w", err))
		os.Exit(7)
	}
	chain, err := optics.NewChain(mode, elems)
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tThe bench is not valid: %w", err))
		os.Exit(8)
	}
	for _, e := range chain.Elements() {
		fmt.Printf("%-16s %-20q at %8.2f mm", e.Kind, e.Name, e.Distance*1e3)
		if e.Distance > 0 {
			fmt.Printf("  Fresnel number %0.3g, %s",
				optics.FresnelNumber(params.ExtentX/2, params.Wavelength, e.Distance), propagator.MethodFor(params, e.Distance))
		}
		fmt.Println()
		far := e.Distance
		if e.Range != nil {
			far = max(far, e.Range.End)
		}
		if optics.Undersampled(params, far) {
			fmt.Println(undersampledWarning(params, e.Name, far))
		}
	}
	fmt.Printf("Building the bench took %s\n\n", time.Since(start))

	opts := []optics.Option{optics.WithMethod(method), optics.WithWorkers(bench.Workers)}
	ctx := context.Background()

	if mode == optics.Reverse {
		runRetrieval(ctx, chain, params, &bench, opts)
	} else {
		runForward(ctx, chain, params, &bench, opts)
	}

	elapsed := time.Since(programStart)
	fmt.Printf("\nTotal program run time is %s\n", elapsed)
}

func runForward(ctx context.Context, chain *optics.Chain, params optics.Params, bench *Bench, opts []optics.Option) {
	start := time.Now()
	screens, err := simulateScreens(ctx, chain, params, bench, opts)
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tSimulation failed: %w", err))
		os.Exit(9)
	}
	elapsed := time.Since(start)
	fmt.Printf("Calculation of the screen intensities took %s\n", elapsed)

	start = time.Now()
	md := newRunMetadata(bench, params)
	for _, s := range screens {
		base := screenBase(s.name, s.distance)
		view, err := writeScreenImages(bench, base, params.Nx, params.Ny, s.intensity)
		if err != nil {
			fmt.Println(fmt.Errorf("\n\tWriting of %q failed: %w", base, err))
			os.Exit(10)
		}
		md.addScreen(s.name, s.distance, base+".png", view.Bounds().Dx(), view.Bounds().Dy())
		for _, fr := range s.slices {
			frameBase := sliceBase(s.name, fr.Distance, fr.Index)
			frameView, err := writeScreenImages(bench, frameBase, fr.Nx, fr.Ny, fr.Intensity)
			if err != nil {
				fmt.Println(fmt.Errorf("\n\tWriting of %q failed: %w", frameBase, err))
				os.Exit(10)
			}
			end := s.slices[len(s.slices)-1].Distance
			md.addSlice(s.name, s.distance, len(s.slices), fr, end, frameBase+".png", frameView.Bounds().Dx(), frameView.Bounds().Dy())
		}
		if bench.Profile != nil {
			if err := writeProfile(chain, params, bench, s, base, view); err != nil {
				fmt.Println(fmt.Errorf("\n\tProfile of %q failed: %w", base, err))
				os.Exit(11)
			}
		}
	}
	elapsed = time.Since(start)
	fmt.Printf("Writing the screen images took %s\n", elapsed)

	metadataPath := filepath.Join(bench.OutputFolder, "metadata.txt")
	if err := writeMetadata(metadataPath, md); err != nil {
		fmt.Println(fmt.Errorf("\n\tWriting of %q failed: %w", metadataPath, err))
		os.Exit(10)
	}
	fmt.Printf("Metadata saved: %s\n", metadataPath)
}

// simulateScreens runs the forward chain once, or once per spectral line
// with the intensities summed by weight.
func simulateScreens(ctx context.Context, chain *optics.Chain, params optics.Params, bench *Bench, opts []optics.Option) ([]screenImage, error) {
	spectrum := bench.Spectrum
	if len(spectrum) == 0 {
		spectrum = [][2]float64{{params.Wavelength * 1e9, 1}}
	}

	var screens []screenImage
	for k, line := range spectrum {
		p := params
		p.Wavelength = line[0] * 1e-9
		start := time.Now()
		res, err := chain.Simulate(ctx, p, opts...)
		if err != nil {
			return nil, err
		}
		if k == 0 {
			screens = make([]screenImage, len(res.Screens))
		}
		for i, out := range res.Screens {
			s := &screens[i]
			if k == 0 {
				s.name, s.distance = out.Name, out.Distance
				s.intensity = make([]float64, len(out.Intensity))
			}
			floats.AddScaled(s.intensity, line[1], out.Intensity)
			if out.Frames == nil {
				continue
			}
			frames, err := out.Frames.Collect(ctx, bench.Workers)
			if err != nil {
				return nil, err
			}
			if k == 0 {
				s.slices = make([]optics.Frame, len(frames))
				for j, fr := range frames {
					s.slices[j] = fr
					s.slices[j].Intensity = make([]float64, len(fr.Intensity))
				}
			}
			for j, fr := range frames {
				floats.AddScaled(s.slices[j].Intensity, line[1], fr.Intensity)
			}
		}
		if len(bench.Spectrum) > 0 {
			fmt.Printf("Calculation of wavelength %0.1f took %s\n", line[0], time.Since(start))
		}
	}
	return screens, nil
}

// writeScreenImages writes the 8-bit view and the 16-bit data image of one
// intensity grid and returns the view.
func writeScreenImages(bench *Bench, base string, nx, ny int, intensity []float64) (image.Image, error) {
	imgForDisplay, err := MatrixToGrayViewPercentile(intensity, nx, ny, 0.0, 100)
	if err != nil {
		return nil, fmt.Errorf("creation of the display image failed: %w", err)
	}
	view := ScaleForDisplay(imgForDisplay, bench.DisplaySizePixels)
	err = profile.SavePNG(filepath.Join(bench.OutputFolder, base+".png"), view)
	if err != nil {
		return nil, err
	}

	// Make the scientific (well-defined scaling) version of the intensity matrix
	dataImage, err := MatrixToGray16Data(intensity, nx, ny, gray16Scale)
	if err != nil {
		return nil, fmt.Errorf("creation of the 16-bit image failed: %w", err)
	}
	err = profile.SavePNG(filepath.Join(bench.OutputFolder, base+"_16bit.png"), dataImage)
	if err != nil {
		return nil, err
	}
	return view, nil
}

// writeProfile plots the intensity along the profile line of a screen, with
// the edges of the last aperture in front of it, and draws the line on the
// screen's view.
func writeProfile(chain *optics.Chain, params optics.Params, bench *Bench, s screenImage, base string, view image.Image) error {
	grid := profile.Grid{Nx: params.Nx, Ny: params.Ny, ExtentX: params.ExtentX, ExtentY: params.ExtentY}
	path, err := profile.NewPath(grid, profile.Line{AngleDegrees: bench.Profile.AngleDegrees, Offset: bench.Profile.OffsetMm * mm})
	if err != nil {
		return err
	}
	curve, err := path.Extract(s.intensity)
	if err != nil {
		return err
	}

	var edges []float64
	var shadow *optics.Element
	for _, e := range chain.Elements() {
		if e.Kind == optics.KindAperture && e.Distance <= s.distance {
			shadow = &e
		}
	}
	if shadow != nil {
		t, err := shadow.Mask.Transmittance(params)
		if err != nil {
			return err
		}
		transmission := make([]float64, len(t))
		for i, v := range t {
			transmission[i] = real(v)*real(v) + imag(v)*imag(v)
		}
		edges, err = path.FindEdges(transmission)
		if err != nil {
			return err
		}
	}

	sum := profile.Summarize(curve)
	fmt.Printf("Profile of %s (%s): mean %0.4g, peak %0.4g, visibility %0.3f\n", base, path.Direction, sum.Mean, sum.Max, sum.Visibility)

	title := bench.Title
	if title == "" {
		title = s.name
	}
	title = fmt.Sprintf("%s at %0.2f mm (%s)", title, s.distance*1e3, path.Direction)
	err = profile.SavePlot(filepath.Join(bench.OutputFolder, base+"_profile.png"), curve, edges, title, 1200, 500)
	if err != nil {
		return err
	}
	return profile.SavePNG(filepath.Join(bench.OutputFolder, base+"_path.png"), profile.DrawPath(view, path))
}

func runRetrieval(ctx context.Context, chain *optics.Chain, params optics.Params, bench *Bench, opts []optics.Option) {
	var target, placeholder optics.Element
	for _, e := range chain.Elements() {
		switch e.Kind {
		case optics.KindTargetIntensity:
			target = e
		case optics.KindAperturePlaceholder:
			placeholder = e
		}
	}

	observer := optics.WithObserver(func(iteration int, relErr float64) {
		if iteration == 1 || iteration%10 == 0 {
			fmt.Printf("Iteration %4d: relative error %0.4g\n", iteration, relErr)
		}
	})

	start := time.Now()
	res, err := chain.Retrieve(ctx, params, append(opts, observer)...)
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tPhase retrieval failed: %w", err))
		os.Exit(9)
	}
	elapsed := time.Since(start)
	fmt.Printf("\nPhase retrieval took %s (%d iterations, error %0.4g)\n", elapsed, res.Iterations, res.Error)
	if err := res.ConvergenceErr(); errors.Is(err, optics.ErrConvergenceNotReached) {
		fmt.Println(fmt.Errorf("\tWarning: %w; the best phase found is written anyway", err))
	}

	nx, ny := params.Nx, params.Ny
	phaseBase := slugify(placeholder.Name) + "_phase"
	phaseImg, err := PhaseToGray(res.Phase, nx, ny)
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tCreation of the phase image failed: %w", err))
		os.Exit(10)
	}
	err = profile.SavePNG(filepath.Join(bench.OutputFolder, phaseBase+".png"), phaseImg)
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tWriting of %q failed: %w", phaseBase, err))
		os.Exit(10)
	}
	// Radians × 10000 fit in 16 bits.
	phaseData, err := MatrixToGray16Data(res.Phase, nx, ny, 10000)
	if err == nil {
		err = profile.SavePNG(filepath.Join(bench.OutputFolder, phaseBase+"_16bit.png"), phaseData)
	}
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tWriting of %q failed: %w", phaseBase+"_16bit", err))
		os.Exit(10)
	}

	achievedBase := fmt.Sprintf("%s_achieved_%0.2f_mm", slugify(target.Name), target.Distance*1e3)
	if _, err := writeScreenImages(bench, achievedBase, nx, ny, res.Intensity); err != nil {
		fmt.Println(fmt.Errorf("\n\tWriting of %q failed: %w", achievedBase, err))
		os.Exit(10)
	}
	targetBase := fmt.Sprintf("%s_target_%0.2f_mm", slugify(target.Name), target.Distance*1e3)
	if _, err := writeScreenImages(bench, targetBase, nx, ny, res.Target); err != nil {
		fmt.Println(fmt.Errorf("\n\tWriting of %q failed: %w", targetBase, err))
		os.Exit(10)
	}

	title := bench.Title
	if title == "" {
		title = "Phase retrieval"
	}
	tolerance := placeholder.Retrieval.Tolerance
	if tolerance == 0 {
		tolerance = optics.DefaultTolerance
	}
	err = MakeConvergencePlot(res.History, tolerance, fmt.Sprintf("%s (%s)", title, placeholder.Retrieval.Algorithm),
		filepath.Join(bench.OutputFolder, "convergence.png"))
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tWriting the convergence plot failed: %w", err))
		os.Exit(12)
	}
}
