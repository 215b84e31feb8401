// Package tiling lays out fields of view (FOVs) over a region in stage
// coordinates.
//
// Tiles advance in +x by fovSize·(1 - overlapX) per column and in -y by
// fovSize·(1 - overlapY) per row, starting at the origin. Column-major order is
// used: every row of column 0 is emitted before column 1. Centres are truncated
// to whole microns.
package tiling

import (
	"errors"
	"fmt"
	"math"

	"github.com/ironsheep/he-fov-mcp/internal/geometry"
)

// CountFactor scales the FOV size when deriving tile counts from a region
// size. Values below 1 under-count to leave a margin at the region edge.
const CountFactor = 0.9

// MaxTiles bounds CountX*CountY for a single grid. A whole slide at the
// smallest FOV size stays well below it.
const MaxTiles = 1_000_000

var (
	// ErrInvalidOverlap is returned for overlap fractions outside (-1, 1).
	ErrInvalidOverlap = errors.New("overlap must be in (-1, 1)")

	// ErrInvalidFOVSize is returned for non-positive FOV sizes.
	ErrInvalidFOVSize = errors.New("fov size must be positive")

	// ErrInvalidTileCount is returned for negative tile counts.
	ErrInvalidTileCount = errors.New("tile count must not be negative")
)

// FOV is one acquisition tile.
type FOV struct {
	Name      string  `json:"name"`
	CenterX   float64 `json:"centerX"`
	CenterY   float64 `json:"centerY"`
	Size      float64 `json:"size"`
	ScanCount int     `json:"scanCount"`
	SectionID int64   `json:"sectionId"`
	SlideID   int64   `json:"slideId"`
}

// Center returns the FOV centre as a point.
func (f FOV) Center() geometry.Point2D {
	return geometry.Pt(f.CenterX, f.CenterY)
}

// Grid describes a tiling of one region.
type Grid struct {
	Origin   geometry.Point2D `json:"origin"`
	CountX   int              `json:"count_x"`
	CountY   int              `json:"count_y"`
	FOVSize  float64          `json:"fov_size"`
	OverlapX float64          `json:"overlap_x"`
	OverlapY float64          `json:"overlap_y"`
}

// Validate checks overlap, size and count ranges.
func (g Grid) Validate() error {
	if err := ValidateOverlap(g.OverlapX); err != nil {
		return fmt.Errorf("overlap x: %w", err)
	}
	if err := ValidateOverlap(g.OverlapY); err != nil {
		return fmt.Errorf("overlap y: %w", err)
	}
	if !(g.FOVSize > 0) || math.IsInf(g.FOVSize, 0) {
		return fmt.Errorf("%w: got %g", ErrInvalidFOVSize, g.FOVSize)
	}
	if g.CountX < 0 || g.CountY < 0 {
		return fmt.Errorf("%w: got %dx%d", ErrInvalidTileCount, g.CountX, g.CountY)
	}
	if g.CountX > 0 && g.CountY > MaxTiles/g.CountX {
		return fmt.Errorf("%w: %dx%d exceeds %d tiles", ErrInvalidTileCount, g.CountX, g.CountY, MaxTiles)
	}
	return nil
}

// ValidateOverlap rejects overlap fractions outside (-1, 1).
func ValidateOverlap(o float64) error {
	if !(o > -1 && o < 1) {
		return fmt.Errorf("%w: got %g", ErrInvalidOverlap, o)
	}
	return nil
}

// StepX is the stage distance between adjacent columns.
func (g Grid) StepX() float64 {
	return g.FOVSize * (1 - g.OverlapX)
}

// StepY is the stage distance between adjacent rows.
func (g Grid) StepY() float64 {
	return g.FOVSize * (1 - g.OverlapY)
}

// Tile generates the FOVs of g named "{label}_{xi}_{yi}". Slide and section
// ids are left zero for the caller to fill in.
func Tile(g Grid, label string) ([]FOV, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	x0 := math.Trunc(g.Origin.X)
	y0 := math.Trunc(g.Origin.Y)
	stepX, stepY := g.StepX(), g.StepY()

	fovs := make([]FOV, 0, g.CountX*g.CountY)
	for xi := 0; xi < g.CountX; xi++ {
		for yi := 0; yi < g.CountY; yi++ {
			fovs = append(fovs, FOV{
				Name:      fmt.Sprintf("%s_%d_%d", label, xi, yi),
				CenterX:   math.Trunc(x0 + float64(xi)*stepX),
				CenterY:   math.Trunc(y0 - float64(yi)*stepY),
				Size:      g.FOVSize,
				ScanCount: 1,
			})
		}
	}
	return fovs, nil
}

// GridCounts returns the number of tiles per axis for a region spanning min to max
// in stage units: floor(|max - min| / (fovSize · CountFactor)).
func GridCounts(min, max geometry.Point2D, fovSize float64) (int, int, error) {
	if !(fovSize > 0) {
		return 0, 0, fmt.Errorf("%w: got %g", ErrInvalidFOVSize, fovSize)
	}
	unit := fovSize * CountFactor
	span := max.Sub(min)
	cx := math.Floor(math.Abs(span.X) / unit)
	cy := math.Floor(math.Abs(span.Y) / unit)
	if !(cx <= MaxTiles && cy <= MaxTiles) {
		return 0, 0, fmt.Errorf("%w: region spans %gx%g tiles", ErrInvalidTileCount, cx, cy)
	}
	return int(cx), int(cy), nil
}

// Origin returns the centre of the first tile for a region whose top-left
// stage corner is min: half a FOV right of and below the corner.
func Origin(min geometry.Point2D, fovSize float64) geometry.Point2D {
	return min.Add(geometry.Pt(fovSize/2, -fovSize/2))
}
