package annotation

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/he-fov-mcp/internal/geometry"
)

// ErrRegionCountMismatch is matched by *RegionCountError.
var ErrRegionCountMismatch = errors.New("annotation region count mismatch")

// RegionCountError reports how many regions were found against how many the
// caller expected.
type RegionCountError struct {
	Found    int
	Expected int
}

func (e *RegionCountError) Error() string {
	return fmt.Sprintf("found %d annotation regions, expected %d", e.Found, e.Expected)
}

// Is lets errors.Is match ErrRegionCountMismatch.
func (e *RegionCountError) Is(target error) bool {
	return target == ErrRegionCountMismatch
}

// Threshold selects marker pixels: R > RedMin, G > GreenMin and B < BlueMax.
type Threshold struct {
	RedMin   uint8 `json:"red_min" toml:"red_min"`
	GreenMin uint8 `json:"green_min" toml:"green_min"`
	BlueMax  uint8 `json:"blue_max" toml:"blue_max"`
}

// DefaultThreshold isolates the yellow marker used on H&E slides.
var DefaultThreshold = Threshold{RedMin: 160, GreenMin: 100, BlueMax: 180}

// Marked reports whether a pixel passes the threshold.
func (t Threshold) Marked(r, g, b uint8) bool {
	return r > t.RedMin && g > t.GreenMin && b < t.BlueMax
}

// OrderAxis selects the sequencing axis for extracted regions.
type OrderAxis int

const (
	// OrderByColumn sorts regions left to right by (MinCol, MaxCol).
	OrderByColumn OrderAxis = iota
	// OrderByRow sorts regions top to bottom by (MinRow, MaxRow).
	OrderByRow
)

// ParseOrderAxis accepts "column" or "row". An empty string means column.
func ParseOrderAxis(s string) (OrderAxis, error) {
	switch s {
	case "", "column", "col":
		return OrderByColumn, nil
	case "row":
		return OrderByRow, nil
	default:
		return OrderByColumn, fmt.Errorf("unknown order axis %q (want column or row)", s)
	}
}

func (a OrderAxis) String() string {
	if a == OrderByRow {
		return "row"
	}
	return "column"
}

// Region is the bounding box and pixel area of one connected component.
type Region struct {
	MinRow int `json:"min_row"`
	MinCol int `json:"min_col"`
	MaxRow int `json:"max_row"`
	MaxCol int `json:"max_col"`
	Area   int `json:"area"`
}

// Bounds returns (MinRow, MinCol, MaxRow, MaxCol).
func (r Region) Bounds() [4]int {
	return [4]int{r.MinRow, r.MinCol, r.MaxRow, r.MaxCol}
}

// MinCorner is the top-left corner as a pixel point (x = column, y = row).
func (r Region) MinCorner() geometry.Point2D {
	return geometry.Pt(float64(r.MinCol), float64(r.MinRow))
}

// MaxCorner is the bottom-right corner as a pixel point (x = column, y = row).
func (r Region) MaxCorner() geometry.Point2D {
	return geometry.Pt(float64(r.MaxCol), float64(r.MaxRow))
}

// Options configures Extract.
type Options struct {
	Threshold Threshold
	Order     OrderAxis
}

// DefaultOptions returns the default marker threshold with column ordering.
func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold, Order: OrderByColumn}
}

// Mask classifies every pixel of img. The result is indexed [row][col].
func Mask(img image.Image, t Threshold) [][]bool {
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	mask := make([][]bool, b.Dy())
	for y := 0; y < b.Dy(); y++ {
		mask[y] = make([]bool, b.Dx())
		for x := 0; x < b.Dx(); x++ {
			i := nrgba.PixOffset(x+b.Min.X, y+b.Min.Y)
			mask[y][x] = t.Marked(nrgba.Pix[i], nrgba.Pix[i+1], nrgba.Pix[i+2])
		}
	}
	return mask
}

// Extract returns the expected number of annotation regions found in img,
// ordered along opts.Order. If fewer components exist, the regions that were
// found are returned together with a *RegionCountError.
func Extract(img image.Image, expected int, opts Options) ([]Region, error) {
	if expected <= 0 {
		return nil, fmt.Errorf("expected region count must be positive, got %d", expected)
	}

	regions := Label(Mask(img, opts.Threshold))

	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].Area > regions[j].Area
	})
	if len(regions) > expected {
		regions = regions[:expected]
	}
	Order(regions, opts.Order)

	if len(regions) < expected {
		return regions, &RegionCountError{Found: len(regions), Expected: expected}
	}
	return regions, nil
}

// Order sorts regions in place along the given axis.
func Order(regions []Region, axis OrderAxis) {
	sort.SliceStable(regions, func(i, j int) bool {
		a, b := regions[i], regions[j]
		if axis == OrderByRow {
			if a.MinRow != b.MinRow {
				return a.MinRow < b.MinRow
			}
			return a.MaxRow < b.MaxRow
		}
		if a.MinCol != b.MinCol {
			return a.MinCol < b.MinCol
		}
		return a.MaxCol < b.MaxCol
	})
}
