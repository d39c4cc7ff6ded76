package main

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/bob-anderson-ok/OpticalBench/optics"
)

// slugify makes an element name safe for a filename: anything other than a
// letter, digit, '_' or '-' becomes '_'. A blank name becomes "screen".
func slugify(name string) string {
	s := strings.TrimSpace(name)
	if s == "" {
		return "screen"
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, s)
}

// screenBase is the file name stem of a screen image at distance metres.
func screenBase(name string, distance float64) string {
	return fmt.Sprintf("%s_%0.2f_mm", slugify(name), distance*1e3)
}

// sliceBase is the file name stem of frame index (0-based) of a ranged
// screen. Slices are numbered from 1 in file names.
func sliceBase(name string, distance float64, index int) string {
	return fmt.Sprintf("%s_slice_%03d", screenBase(name, distance), index+1)
}

// screenCapture describes one screen image written by a forward run.
type screenCapture struct {
	Name       string
	Distance   float64 // metres
	IsRange    bool
	RangeStart float64 // metres
	RangeEnd   float64 // metres
	Steps      int
	Slice      int // 1-based; 0 for a single screen
	Filename   string
	Width      int // pixels of the written view image
	Height     int
}

// runMetadata is the summary written to metadata.txt after a forward run.
type runMetadata struct {
	Title        string
	Timestamp    time.Time
	Params       optics.Params
	Method       string
	Spectrum     string
	OutputFolder string
	Screens      []screenCapture
}

func newRunMetadata(bench *Bench, params optics.Params) runMetadata {
	return runMetadata{
		Title:        bench.Title,
		Timestamp:    time.Now(),
		Params:       params,
		Method:       bench.Method,
		Spectrum:     bench.PathToSpectrumFile,
		OutputFolder: bench.OutputFolder,
	}
}

// addScreen records a single screen image.
func (md *runMetadata) addScreen(name string, distance float64, filename string, width, height int) {
	md.Screens = append(md.Screens, screenCapture{
		Name: name, Distance: distance, Filename: filename, Width: width, Height: height,
	})
}

// addSlice records frame fr of a ranged screen that starts at start and has
// steps frames.
func (md *runMetadata) addSlice(name string, start float64, steps int, fr optics.Frame, end float64, filename string, width, height int) {
	md.Screens = append(md.Screens, screenCapture{
		Name:       name,
		Distance:   fr.Distance,
		IsRange:    true,
		RangeStart: start,
		RangeEnd:   end,
		Steps:      steps,
		Slice:      fr.Index + 1,
		Filename:   filename,
		Width:      width,
		Height:     height,
	})
}

// writeMetadata writes md as a plain text report to filename.
func writeMetadata(filename string, md runMetadata) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	p := md.Params
	var b strings.Builder
	b.WriteString("Simulation Metadata\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	fmt.Fprintf(&b, "Title: %s\n", md.Title)
	fmt.Fprintf(&b, "Timestamp: %s\n", md.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Version: %s\n", version)
	fmt.Fprintf(&b, "Wavelength: %0.2f nm\n", p.Wavelength*1e9)
	if md.Spectrum != "" {
		fmt.Fprintf(&b, "Spectrum: %s\n", md.Spectrum)
	}
	fmt.Fprintf(&b, "Extent X: %0.4f mm\n", p.ExtentX/mm)
	fmt.Fprintf(&b, "Extent Y: %0.4f mm\n", p.ExtentY/mm)
	fmt.Fprintf(&b, "Resolution: %0.3f px/mm\n", float64(p.Nx)/(p.ExtentX/mm))
	fmt.Fprintf(&b, "Grid: %dx%d\n", p.Nx, p.Ny)
	fmt.Fprintf(&b, "Propagation Method: %s\n", md.Method)
	fmt.Fprintf(&b, "Output Dir: %s\n\n", md.OutputFolder)

	fmt.Fprintf(&b, "Screen Captures: %d\n", len(md.Screens))
	b.WriteString(strings.Repeat("-", 60) + "\n")
	for i, s := range md.Screens {
		fmt.Fprintf(&b, "\nScreen %d:\n", i+1)
		fmt.Fprintf(&b, "  Name: %s\n", s.Name)
		fmt.Fprintf(&b, "  Distance: %0.4f mm\n", s.Distance/mm)
		fmt.Fprintf(&b, "  Is Range: %v\n", s.IsRange)
		if s.IsRange {
			fmt.Fprintf(&b, "  Slice: %d\n", s.Slice)
			fmt.Fprintf(&b, "  Range Start: %0.4f mm\n", s.RangeStart/mm)
			fmt.Fprintf(&b, "  Range End: %0.4f mm\n", s.RangeEnd/mm)
			fmt.Fprintf(&b, "  Steps: %d\n", s.Steps)
		}
		fmt.Fprintf(&b, "  Filename: %s\n", s.Filename)
		fmt.Fprintf(&b, "  Image Shape: [%d, %d]\n", s.Height, s.Width)
	}

	_, err = f.WriteString(b.String())
	return err
}
