package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// Default overlay colours.
const (
	DefaultBoxColor    = "#00FF00"
	DefaultMarkerColor = "#00FFFF"
	DefaultGridColor   = "#FF0000"
)

// Box is a rectangle in pixel coordinates with inclusive bounds.
type Box struct {
	MinX  int    `json:"min_x"`
	MinY  int    `json:"min_y"`
	MaxX  int    `json:"max_x"`
	MaxY  int    `json:"max_y"`
	Label string `json:"label,omitempty"`
}

// Marker is a point to highlight. A positive Half draws a square outline of
// side 2*Half+1 (a FOV footprint); otherwise a small cross is drawn.
type Marker struct {
	X    int `json:"x"`
	Y    int `json:"y"`
	Half int `json:"half,omitempty"`
}

// OverlayOptions configures RenderOverlay. Invalid colours fall back to the
// defaults.
type OverlayOptions struct {
	Boxes       []Box
	Markers     []Marker
	BoxColor    string
	MarkerColor string

	// GridSpacing draws a coordinate grid every GridSpacing pixels when
	// positive. ShowCoordinates labels the grid intersections.
	GridSpacing     int
	GridColor       string
	ShowCoordinates bool

	// Scale resizes the rendered image; 0 or 1 keeps the original size.
	Scale float64
}

// OverlayResult is the rendered overlay with the number of drawn elements.
type OverlayResult struct {
	EncodedImage
	Boxes       int `json:"boxes"`
	Markers     int `json:"markers"`
	GridSpacing int `json:"grid_spacing,omitempty"`
}

// RenderOverlay draws annotation boxes, FOV markers and an optional grid over
// a copy of img and returns it as base64 PNG. Coordinates are relative to the
// top-left corner of img's bounds.
func RenderOverlay(img image.Image, opts OverlayOptions) (*OverlayResult, error) {
	canvas := Overlay(img, opts)

	scale := opts.Scale
	if scale == 0 {
		scale = 1
	}
	encoded, err := EncodePNG(canvas, scale)
	if err != nil {
		return nil, err
	}

	return &OverlayResult{
		EncodedImage: *encoded,
		Boxes:        len(opts.Boxes),
		Markers:      len(opts.Markers),
		GridSpacing:  opts.GridSpacing,
	}, nil
}

// Overlay draws opts over a copy of img without encoding it.
func Overlay(img image.Image, opts OverlayOptions) *image.RGBA {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), img, bounds.Min, draw.Src)

	if opts.GridSpacing > 0 {
		drawGrid(canvas, opts.GridSpacing, opts.ShowCoordinates, colorOr(opts.GridColor, DefaultGridColor))
	}

	boxColor := colorOr(opts.BoxColor, DefaultBoxColor)
	for i, b := range opts.Boxes {
		drawRect(canvas, b.MinX, b.MinY, b.MaxX, b.MaxY, boxColor)
		drawRect(canvas, b.MinX-1, b.MinY-1, b.MaxX+1, b.MaxY+1, boxColor)
		label := b.Label
		if label == "" {
			label = fmt.Sprintf("%d", i)
		}
		drawLabel(canvas, b.MinX+2, b.MinY+2, label, color.RGBA{255, 255, 255, 255}, color.RGBA{0, 0, 0, 180})
	}

	markerColor := colorOr(opts.MarkerColor, DefaultMarkerColor)
	for _, m := range opts.Markers {
		if m.Half > 0 {
			drawRect(canvas, m.X-m.Half, m.Y-m.Half, m.X+m.Half, m.Y+m.Half, markerColor)
		}
		drawCross(canvas, m.X, m.Y, 3, markerColor)
	}

	return canvas
}

func colorOr(hex, fallback string) color.RGBA {
	c, err := ParseColor(hex)
	if err != nil {
		c, _ = ParseColor(fallback)
	}
	return c
}

func setPixel(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

// drawRect draws the one pixel outline of the inclusive rectangle.
func drawRect(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	for x := x0; x <= x1; x++ {
		setPixel(img, x, y0, c)
		setPixel(img, x, y1, c)
	}
	for y := y0; y <= y1; y++ {
		setPixel(img, x0, y, c)
		setPixel(img, x1, y, c)
	}
}

func drawCross(img *image.RGBA, x, y, radius int, c color.RGBA) {
	for d := -radius; d <= radius; d++ {
		setPixel(img, x+d, y, c)
		setPixel(img, x, y+d, c)
	}
}

func drawGrid(img *image.RGBA, spacing int, showCoordinates bool, c color.RGBA) {
	b := img.Bounds()
	for x := spacing; x < b.Dx(); x += spacing {
		for y := 0; y < b.Dy(); y++ {
			img.SetRGBA(x, y, c)
		}
	}
	for y := spacing; y < b.Dy(); y += spacing {
		for x := 0; x < b.Dx(); x++ {
			img.SetRGBA(x, y, c)
		}
	}

	if !showCoordinates {
		return
	}
	fg := color.RGBA{255, 255, 255, 255}
	bg := color.RGBA{0, 0, 0, 180}
	for y := spacing; y < b.Dy(); y += spacing {
		for x := spacing; x < b.Dx(); x += spacing {
			drawLabel(img, x+2, y+2, fmt.Sprintf("%d,%d", x, y), fg, bg)
		}
	}
}

// drawLabel draws text at (x, y) with a 3x5 pixel font. Characters without a
// glyph are left blank.
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
		',': {"000", "000", "000", "010", "010"},
		'-': {"000", "000", "111", "000", "000"},
		'_': {"000", "000", "000", "000", "111"},
		'P': {"111", "101", "111", "100", "100"},
	}

	const charWidth = 4
	const labelHeight = 7
	labelWidth := len(text) * charWidth

	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			setPixel(img, x+dx, y+dy, bg)
		}
	}

	cx := x
	for _, ch := range text {
		if glyph, ok := glyphs[ch]; ok {
			for row, line := range glyph {
				for col, pixel := range line {
					if pixel == '1' {
						setPixel(img, cx+col, y+row, fg)
					}
				}
			}
		}
		cx += charWidth
	}
}
