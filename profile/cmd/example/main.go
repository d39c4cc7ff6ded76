// Example program demonstrating how to use the profile package to:
// 1. Simulate a double slit focused by a lens and take a profile across the
// fringes
// 2. Detect the slit edges in the aperture's own transmission
// 3. Plot the profile with edge markers
// 4. Draw the profile line on an 8-bit view of the screen
//
// Usage:
//
//	go run main.go [screen16bit.png]
//
// With an argument, the 16-bit screen image written by the bench is profiled
// instead of the simulated one.
package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"time"

	"github.com/bob-anderson-ok/OpticalBench/optics"
	"github.com/bob-anderson-ok/OpticalBench/profile"
)

const (
	gridPts    = 512
	extent     = 4e-3
	wavelength = 633e-9
	focal      = 0.1
)

func main() {
	fmt.Println("Profile Extraction Example")
	fmt.Println("==========================")

	params := optics.Params{Wavelength: wavelength, ExtentX: extent, ExtentY: extent, Nx: gridPts, Ny: gridPts}

	slits, err := optics.Rasterize(optics.DoubleSlit(0.1e-3, 0.5e-3, 2e-3), gridPts, gridPts, extent, extent)
	if err != nil {
		log.Fatalf("Failed to build the slits: %v", err)
	}

	chain, err := optics.NewChain(optics.Forward, []optics.Element{
		optics.NewAperture("slits", 0, slits),
		optics.NewScreen("slits", 0),
		optics.NewLens("objective", 0, focal),
		optics.NewScreen("focus", focal),
	})
	if err != nil {
		log.Fatalf("Failed to build the bench: %v", err)
	}

	start := time.Now()
	result, err := chain.Simulate(context.Background(), params, optics.WithWorkers(4))
	if err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}
	fmt.Printf("\nSimulation took %s\n", time.Since(start))

	grid := profile.Grid{Nx: gridPts, Ny: gridPts, ExtentX: extent, ExtentY: extent}
	intensity := result.Screens[1].Intensity
	if len(os.Args) > 1 {
		loaded, nx, ny, err := profile.LoadGray16PNG(os.Args[1], 4000.0)
		if err != nil {
			log.Fatalf("Failed to load %s: %v", os.Args[1], err)
		}
		fmt.Printf("Loaded intensity image: %dx%d pixels\n", nx, ny)
		intensity = loaded
		grid.Nx, grid.Ny = nx, ny
	}

	// A horizontal cut through the optical axis crosses both slits and the
	// fringes between them.
	path, err := profile.NewPath(grid, profile.Line{AngleDegrees: 0, Offset: 0})
	if err != nil {
		log.Fatalf("Failed to compute path: %v", err)
	}
	fmt.Printf("\nPath direction: %s", path.Direction)
	fmt.Printf("\nPath start: (%.1f, %.1f)", path.StartCol, path.StartRow)
	fmt.Printf("\nPath end: (%.1f, %.1f)\n", path.EndCol, path.EndRow)
	fmt.Printf("Generated %d sample points along the path\n", len(path.Samples))

	curve, err := path.Extract(intensity)
	if err != nil {
		log.Fatalf("Failed to extract profile: %v", err)
	}

	var edges []float64
	if len(os.Args) == 1 {
		edges, err = path.FindEdges(result.Screens[0].Intensity)
		if err != nil {
			log.Fatalf("Failed to find edges: %v", err)
		}
		fmt.Printf("Found %d slit edges\n", len(edges))
	}

	s := profile.Summarize(curve)
	fmt.Printf("Profile mean %.4g, peak %.4g, visibility %.3f\n", s.Mean, s.Max, s.Visibility)

	if err := profile.SavePlot("profilePlot.png", curve, edges, "double slit at focus", 1200, 500); err != nil {
		log.Fatalf("Failed to save plot: %v", err)
	}
	fmt.Println("Saved profilePlot.png")

	view := grayView(intensity, grid.Nx, grid.Ny, s.Max)
	if err := profile.SavePNG("profileView.png", profile.DrawPath(view, path)); err != nil {
		log.Fatalf("Failed to save view: %v", err)
	}
	fmt.Println("Saved profileView.png")
}

// grayView scales intensity so that peak maps to white.
func grayView(intensity []float64, nx, ny int, peak float64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, nx, ny))
	if peak <= 0 {
		return img
	}
	for i, v := range intensity {
		img.SetGray(i%nx, i/nx, color.Gray{Y: uint8(min(255, 255*v/peak))})
	}
	return img
}
