package imaging

import (
	"image"
	"image/color"
	"testing"
)

// createInMemoryImage creates an in-memory test image
func createInMemoryImage(width, height int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// createPatternImage creates an image with different colors in each quadrant
func createPatternImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var c color.Color
			if x < width/2 && y < height/2 {
				c = color.RGBA{255, 0, 0, 255} // Red top-left
			} else if x >= width/2 && y < height/2 {
				c = color.RGBA{0, 255, 0, 255} // Green top-right
			} else if x < width/2 && y >= height/2 {
				c = color.RGBA{0, 0, 255, 255} // Blue bottom-left
			} else {
				c = color.RGBA{255, 255, 255, 255} // White bottom-right
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestSampleColor(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{200, 150, 50, 255})

	result, err := SampleColor(img, 50, 50)
	if err != nil {
		t.Fatalf("SampleColor failed: %v", err)
	}

	if result.Hex != "#C89632" {
		t.Errorf("Hex: got %s, want #C89632", result.Hex)
	}

	if result.RGB.R != 200 || result.RGB.G != 150 || result.RGB.B != 50 {
		t.Errorf("RGB: got (%d,%d,%d), want (200,150,50)", result.RGB.R, result.RGB.G, result.RGB.B)
	}

	if result.RGBA.A != 255 {
		t.Errorf("RGBA.A: got %d, want 255", result.RGBA.A)
	}
}

func TestSampleColor_KnownColors(t *testing.T) {
	tests := []struct {
		name    string
		color   color.RGBA
		wantHex string
		wantHSL HSLColor
	}{
		{"pure red", color.RGBA{255, 0, 0, 255}, "#FF0000", HSLColor{0, 100, 50}},
		{"pure green", color.RGBA{0, 255, 0, 255}, "#00FF00", HSLColor{120, 100, 50}},
		{"pure blue", color.RGBA{0, 0, 255, 255}, "#0000FF", HSLColor{240, 100, 50}},
		{"white", color.RGBA{255, 255, 255, 255}, "#FFFFFF", HSLColor{0, 0, 100}},
		{"black", color.RGBA{0, 0, 0, 255}, "#000000", HSLColor{0, 0, 0}},
		{"gray", color.RGBA{128, 128, 128, 255}, "#808080", HSLColor{0, 0, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := createInMemoryImage(10, 10, tt.color)
			result, err := SampleColor(img, 5, 5)
			if err != nil {
				t.Fatalf("SampleColor failed: %v", err)
			}

			if result.Hex != tt.wantHex {
				t.Errorf("Hex: got %s, want %s", result.Hex, tt.wantHex)
			}
			// Allow some tolerance for rounding
			if abs(result.HSL.H-tt.wantHSL.H) > 1 || abs(result.HSL.S-tt.wantHSL.S) > 1 || abs(result.HSL.L-tt.wantHSL.L) > 1 {
				t.Errorf("HSL: got %+v, want %+v", result.HSL, tt.wantHSL)
			}
		})
	}
}

func TestSampleColor_OutOfBounds(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 0, 0, 255})

	tests := []struct {
		name string
		x, y int
	}{
		{"negative x", -1, 50},
		{"negative y", 50, -1},
		{"x too large", 100, 50},
		{"y too large", 50, 100},
		{"both too large", 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SampleColor(img, tt.x, tt.y)
			if err == nil {
				t.Error("SampleColor should fail for out-of-bounds coordinates")
			}
		})
	}
}

func TestSampleColor_EdgeCoordinates(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 0, 0, 255})

	for _, p := range []image.Point{{0, 0}, {99, 0}, {0, 99}, {99, 99}} {
		if _, err := SampleColor(img, p.X, p.Y); err != nil {
			t.Errorf("SampleColor failed for valid edge coordinate %v: %v", p, err)
		}
	}
}

func TestSampleColorsMulti(t *testing.T) {
	img := createPatternImage(100, 100)

	points := []LabeledPoint{
		{X: 25, Y: 25, Label: "red"},
		{X: 75, Y: 25, Label: "green"},
		{X: 25, Y: 75, Label: "blue"},
		{X: 75, Y: 75, Label: "white"},
	}

	result, err := SampleColorsMulti(img, points)
	if err != nil {
		t.Fatalf("SampleColorsMulti failed: %v", err)
	}

	if len(result.Samples) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(result.Samples))
	}

	expectedHex := []string{"#FF0000", "#00FF00", "#0000FF", "#FFFFFF"}
	for i, sample := range result.Samples {
		if sample.Label != points[i].Label {
			t.Errorf("sample %d label: got %s, want %s", i, sample.Label, points[i].Label)
		}
		if sample.Color.Hex != expectedHex[i] {
			t.Errorf("sample %d (%s) hex: got %s, want %s",
				i, sample.Label, sample.Color.Hex, expectedHex[i])
		}
	}
}

func TestSampleColorsMulti_EmptyPoints(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 0, 0, 255})

	result, err := SampleColorsMulti(img, []LabeledPoint{})
	if err != nil {
		t.Fatalf("SampleColorsMulti failed: %v", err)
	}

	if len(result.Samples) != 0 {
		t.Errorf("expected 0 samples, got %d", len(result.Samples))
	}
}

func TestSampleColorsMulti_OutOfBounds(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 0, 0, 255})

	points := []LabeledPoint{
		{X: 50, Y: 50, Label: "valid"},
		{X: 200, Y: 50, Label: "invalid"},
	}

	if _, err := SampleColorsMulti(img, points); err == nil {
		t.Error("SampleColorsMulti should fail when any point is out of bounds")
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		input string
		want  color.RGBA
		ok    bool
	}{
		{"#FF0000", color.RGBA{255, 0, 0, 255}, true},
		{"#00ff80", color.RGBA{0, 255, 128, 255}, true},
		{"#fff", color.RGBA{255, 255, 255, 255}, true},
		{"", color.RGBA{}, false},
		{"#GGGGGG", color.RGBA{}, false},
		{"red", color.RGBA{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseColor(tt.input)
			if tt.ok && err != nil {
				t.Fatalf("ParseColor(%q) failed: %v", tt.input, err)
			}
			if !tt.ok {
				if err == nil {
					t.Errorf("ParseColor(%q) should fail", tt.input)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseColor(%q): got %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
