package main

import (
	"fmt"
	"math"
	"strings"

	json "github.com/KevinWang15/go-json5"
)

func parseArrayFormat(data []byte) ([][2]float64, error) {
	var pairs [][2]float64
	err := json.Unmarshal(data, &pairs)
	return pairs, err
}

func getLeafValue(jsonTable map[string]interface{}, path ...string) (interface{}, bool) {
	var cur interface{} = jsonTable
	for _, p := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// The field readers below return the message "<key>: ..." and
// false on a type mismatch. A missing optional entry leaves dst untouched.

func readFloat(table map[string]interface{}, label string, dst *float64, required bool, path ...string) (string, bool) {
	v, ok := getLeafValue(table, path...)
	if !ok {
		if required {
			return label + ": not found", false
		}
		return "", true
	}
	f, ok := v.(float64)
	if !ok {
		return label + ": is not a float64", false
	}
	*dst = f
	return "", true
}

func readInt(table map[string]interface{}, label string, dst *int, path ...string) (string, bool) {
	v, ok := getLeafValue(table, path...)
	if !ok {
		return "", true
	}
	f, ok := v.(float64)
	if !ok {
		return label + ": is not a float64", false
	}
	if f != math.Trunc(f) {
		return label + ": is not a whole number", false
	}
	*dst = int(f)
	return "", true
}

func readString(table map[string]interface{}, label string, dst *string, path ...string) (string, bool) {
	v, ok := getLeafValue(table, path...)
	if !ok {
		return "", true
	}
	s, ok := v.(string)
	if !ok {
		return label + ": is not a string", false
	}
	*dst = s
	return "", true
}

func readBool(table map[string]interface{}, label string, dst *bool, path ...string) (string, bool) {
	v, ok := getLeafValue(table, path...)
	if !ok {
		return "", true
	}
	b, ok := v.(bool)
	if !ok {
		return label + ": is not a bool", false
	}
	*dst = b
	return "", true
}

func validateJsonFileAndFillBench(jsonTable map[string]interface{}, bench *Bench) (string, bool) {
	msg := "No problem found in json file" // Initialize msg to presumed success.

	// Defaults match the original bench: 633 nm over 4 mm at 256 px/mm.
	bench.WavelengthNm = 633
	bench.ExtentXmm = 4
	bench.ResolutionPxPerMm = 256
	bench.Workers = 1
	bench.OutputFolder = "."
	bench.DisplaySizePixels = 500
	bench.Mode = "forward"
	bench.Method = "auto"

	if m, ok := readBool(jsonTable, "show_input_bool", &bench.ShowInput, "show_input_bool"); !ok {
		return m, false
	}
	if m, ok := readString(jsonTable, "title", &bench.Title, "title"); !ok {
		return m, false
	}
	if m, ok := readString(jsonTable, "mode", &bench.Mode, "mode"); !ok {
		return m, false
	}

	wavelength, ok := getLeafValue(jsonTable, "wavelength_nm")
	if ok {
		bench.WavelengthNm, ok = wavelength.(float64)
		if !ok {
			msg = "wavelength_nm: is not a float64"
			return msg, false
		}
		if bench.WavelengthNm <= 0 {
			msg = "wavelength_nm: must be positive"
			return msg, false
		}
	}

	extentX, ok := getLeafValue(jsonTable, "extent_x_mm")
	if ok {
		bench.ExtentXmm, ok = extentX.(float64)
		if !ok {
			msg = "extent_x_mm: is not a float64"
			return msg, false
		}
	}
	bench.ExtentYmm = bench.ExtentXmm // square unless told otherwise
	if m, ok := readFloat(jsonTable, "extent_y_mm", &bench.ExtentYmm, false, "extent_y_mm"); !ok {
		return m, false
	}
	if bench.ExtentXmm <= 0 || bench.ExtentYmm <= 0 {
		msg = "extent_x_mm/extent_y_mm: must be positive"
		return msg, false
	}

	if m, ok := readFloat(jsonTable, "resolution_px_per_mm", &bench.ResolutionPxPerMm, false, "resolution_px_per_mm"); !ok {
		return m, false
	}
	if bench.ResolutionPxPerMm <= 0 {
		msg = "resolution_px_per_mm: must be positive"
		return msg, false
	}
	// Explicit point counts take precedence over the resolution.
	if m, ok := readInt(jsonTable, "num_points_x", &bench.NumPointsX, "num_points_x"); !ok {
		return m, false
	}
	if m, ok := readInt(jsonTable, "num_points_y", &bench.NumPointsY, "num_points_y"); !ok {
		return m, false
	}

	if m, ok := readString(jsonTable, "propagation_method", &bench.Method, "propagation_method"); !ok {
		return m, false
	}
	if m, ok := readInt(jsonTable, "workers", &bench.Workers, "workers"); !ok {
		return m, false
	}

	filePath, ok := getLeafValue(jsonTable, "output_folder")
	if ok {
		bench.OutputFolder, ok = filePath.(string)
		if !ok {
			msg = "output_folder: is not a string"
			return msg, false
		}
	}

	windowSize, ok := getLeafValue(jsonTable, "display_size_pixels")
	if ok {
		wSize, ok := windowSize.(float64)
		if !ok {
			msg = "display_size_pixels: is not a float64"
			return msg, false
		}
		bench.DisplaySizePixels = int(wSize)
	}

	filePath, ok = getLeafValue(jsonTable, "path_to_spectrum_file")
	if ok {
		bench.PathToSpectrumFile, ok = filePath.(string)
		if !ok {
			msg = "path_to_spectrum_file: is not a string"
			return msg, false
		}
	}

	// Check to see if a profile group is present. It asks for an intensity
	// profile across every screen.
	_, ok = getLeafValue(jsonTable, "profile")
	if ok {
		bench.Profile = &ProfileSpec{}
		if m, ok := readFloat(jsonTable, "profile.angle_degrees", &bench.Profile.AngleDegrees, false, "profile", "angle_degrees"); !ok {
			return m, false
		}
		if m, ok := readFloat(jsonTable, "profile.offset_mm", &bench.Profile.OffsetMm, false, "profile", "offset_mm"); !ok {
			return m, false
		}
	}

	elems, ok := getLeafValue(jsonTable, "elements")
	if !ok {
		msg = "elements: not found"
		return msg, false
	}
	list, ok := elems.([]interface{})
	if !ok {
		msg = "elements: is not an array"
		return msg, false
	}
	if len(list) == 0 {
		msg = "elements: is empty"
		return msg, false
	}
	for i, item := range list {
		table, ok := item.(map[string]interface{})
		if !ok {
			return fmt.Sprintf("elements[%d]: is not an object", i), false
		}
		spec, m, ok := validateElement(table, fmt.Sprintf("elements[%d]", i))
		if !ok {
			return m, false
		}
		bench.Elements = append(bench.Elements, spec)
	}

	return msg, true
}

var shapeNames = []string{"circle", "ellipse", "rectangle", "double_slit", "binary_grating", "phase_grating"}

// validateElement fills an ElementSpec from one entry of the elements array.
// prefix is used in messages, e.g. "elements[2]".
func validateElement(table map[string]interface{}, prefix string) (ElementSpec, string, bool) {
	var e ElementSpec
	key := func(k string) string { return prefix + "." + k }

	v, ok := getLeafValue(table, "type")
	if !ok {
		return e, key("type") + ": not found", false
	}
	e.Type, ok = v.(string)
	if !ok {
		return e, key("type") + ": is not a string", false
	}
	e.Type = strings.ToLower(strings.TrimSpace(e.Type))

	if m, ok := readString(table, key("name"), &e.Name, "name"); !ok {
		return e, m, false
	}
	if m, ok := readFloat(table, key("distance_mm"), &e.DistanceMm, true, "distance_mm"); !ok {
		return e, m, false
	}

	// Geometry shared by apertures and targets.
	readGeometry := func() (string, bool) {
		for _, f := range []struct {
			name string
			dst  *float64
		}{
			{"width_mm", &e.WidthMm},
			{"height_mm", &e.HeightMm},
			{"radius_mm", &e.RadiusMm},
			{"slit_width_mm", &e.SlitWidthMm},
			{"slit_height_mm", &e.SlitHeightMm},
			{"separation_mm", &e.SeparationMm},
			{"x_center_mm", &e.XCenterMm},
			{"y_center_mm", &e.YCenterMm},
			{"x_diam_mm", &e.XDiamMm},
			{"y_diam_mm", &e.YDiamMm},
			{"angle_degrees", &e.AngleDegrees},
			{"period_mm", &e.PeriodMm},
			{"duty", &e.Duty},
			{"depth_rad", &e.DepthRad},
		} {
			if m, ok := readFloat(table, key(f.name), f.dst, false, f.name); !ok {
				return m, false
			}
		}
		if m, ok := readString(table, key("image_path"), &e.ImagePath, "image_path"); !ok {
			return m, false
		}
		if m, ok := readString(table, key("shape"), &e.Shape, "shape"); !ok {
			return m, false
		}
		e.Shape = strings.ToLower(strings.TrimSpace(e.Shape))
		if e.ImagePath == "" && e.Shape == "" {
			return key("image_path") + ": not found (give an image_path or a shape)", false
		}
		if e.Shape != "" {
			known := false
			for _, s := range shapeNames {
				known = known || s == e.Shape
			}
			if !known {
				return fmt.Sprintf("%s: unknown shape %q", key("shape"), e.Shape), false
			}
		}
		if e.WidthMm < 0 || e.HeightMm < 0 {
			return key("width_mm/height_mm") + ": must not be negative", false
		}
		return "", true
	}

	switch e.Type {
	case "aperture":
		if m, ok := readGeometry(); !ok {
			return e, m, false
		}
		if m, ok := readBool(table, key("is_inverted"), &e.IsInverted, "is_inverted"); !ok {
			return e, m, false
		}
		if m, ok := readBool(table, key("is_phasemask"), &e.IsPhasemask, "is_phasemask"); !ok {
			return e, m, false
		}
		if m, ok := readString(table, key("interpolation"), &e.Interpolation, "interpolation"); !ok {
			return e, m, false
		}

	case "lens":
		if m, ok := readFloat(table, key("focal_mm"), &e.FocalMm, true, "focal_mm"); !ok {
			return e, m, false
		}
		if e.FocalMm == 0 {
			return e, key("focal_mm") + ": must not be zero", false
		}

	case "screen":
		_, e.HasRange = getLeafValue(table, "range_end_mm")
		if m, ok := readFloat(table, key("range_end_mm"), &e.RangeEndMm, false, "range_end_mm"); !ok {
			return e, m, false
		}
		e.Steps = 10
		if m, ok := readInt(table, key("steps"), &e.Steps, "steps"); !ok {
			return e, m, false
		}
		if e.HasRange && e.Steps < 1 {
			return e, key("steps") + ": must be at least 1", false
		}

	case "aperture_result":
		if m, ok := readString(table, key("algorithm"), &e.Algorithm, "algorithm"); !ok {
			return e, m, false
		}
		if m, ok := readString(table, key("init"), &e.Init, "init"); !ok {
			return e, m, false
		}
		if m, ok := readInt(table, key("max_iterations"), &e.MaxIterations, "max_iterations"); !ok {
			return e, m, false
		}
		if m, ok := readFloat(table, key("tolerance"), &e.Tolerance, false, "tolerance"); !ok {
			return e, m, false
		}
		seed := 0
		if m, ok := readInt(table, key("seed"), &seed, "seed"); !ok {
			return e, m, false
		}
		e.Seed = int64(seed)
		if m, ok := readFloat(table, key("waist_mm"), &e.WaistMm, false, "waist_mm"); !ok {
			return e, m, false
		}

	case "target_intensity":
		if m, ok := readGeometry(); !ok {
			return e, m, false
		}

	default:
		return e, fmt.Sprintf("%s: unknown element type %q", key("type"), e.Type), false
	}
	return e, "", true
}
