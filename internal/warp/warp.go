package warp

import (
	"fmt"
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/clone"

	"github.com/ironsheep/he-fov-mcp/internal/geometry"
)

// Background is written to output pixels whose field coordinate falls outside
// the source image.
var Background = color.RGBA{R: 1, G: 1, B: 1, A: 255}

// Warp resamples src through field. The output has the field's dimensions; a
// pixel at (row, col) copies the source pixel at field.At(row, col), or
// Background if that location is outside src.
func Warp(src image.Image, field *Field) *image.RGBA {
	rgba := clone.AsRGBA(src)
	sb := rgba.Bounds()
	srcRows, srcCols := sb.Dy(), sb.Dx()

	out := image.NewRGBA(image.Rect(0, 0, field.Cols, field.Rows))
	for r := 0; r < field.Rows; r++ {
		for c := 0; c < field.Cols; c++ {
			sr, sc := field.At(r, c)
			di := out.PixOffset(c, r)
			if sr < 0 || sr >= srcRows || sc < 0 || sc >= srcCols {
				out.Pix[di+0] = Background.R
				out.Pix[di+1] = Background.G
				out.Pix[di+2] = Background.B
				out.Pix[di+3] = Background.A
				continue
			}
			si := rgba.PixOffset(sc+sb.Min.X, sr+sb.Min.Y)
			copy(out.Pix[di:di+4], rgba.Pix[si:si+4])
		}
	}
	return out
}

// Align deforms src so that the landmarks at cps.Source land on cps.Target.
// The output grid has the same dimensions as src.
func Align(src image.Image, cps geometry.ControlPointSet, opts Options) (*image.RGBA, *Field, error) {
	b := src.Bounds()
	field, err := ComputeField(b.Dy(), b.Dx(), cps, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compute deformation field: %w", err)
	}
	return Warp(src, field), field, nil
}
