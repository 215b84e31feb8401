package warp

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/ironsheep/he-fov-mcp/internal/geometry"
)

// SingularDeterminant is the determinant below which a cell's moment matrix is
// treated as singular.
const SingularDeterminant = 1e-8

// snapTolerance absorbs floating point noise before truncating to an index.
const snapTolerance = 1e-6

// ErrInvalidParameter is returned for out-of-range engine parameters.
var ErrInvalidParameter = errors.New("invalid warp parameter")

// Options configures the MLS engine.
type Options struct {
	// Alpha controls the locality of each control point's influence. Zero
	// weights all points equally; larger values favour the nearest point.
	Alpha float64

	// Eps is added to squared distances to avoid division by zero when a grid
	// cell coincides with a control point.
	Eps float64

	// Workers bounds the number of goroutines. Zero means GOMAXPROCS.
	Workers int
}

// DefaultOptions returns alpha=1 and eps=1e-8.
func DefaultOptions() Options {
	return Options{Alpha: 1, Eps: 1e-8}
}

// Validate checks the parameter ranges.
func (o Options) Validate() error {
	if o.Alpha < 0 || math.IsNaN(o.Alpha) {
		return fmt.Errorf("%w: alpha must be >= 0, got %g", ErrInvalidParameter, o.Alpha)
	}
	if !(o.Eps > 0) {
		return fmt.Errorf("%w: eps must be > 0, got %g", ErrInvalidParameter, o.Eps)
	}
	return nil
}

// Field is a backward deformation field. Cell (row, col) holds the source
// pixel to sample for output pixel (row, col).
type Field struct {
	Rows int
	Cols int

	// SourceRow and SourceCol are row-major, Rows*Cols long.
	SourceRow []int
	SourceCol []int

	// SingularCells counts cells that used the translation fallback.
	SingularCells int

	// ClampedCells counts cells with at least one coordinate replaced by 0.
	ClampedCells int
}

// At returns the source (row, col) for output cell (row, col).
func (f *Field) At(row, col int) (int, int) {
	i := row*f.Cols + col
	return f.SourceRow[i], f.SourceCol[i]
}

// ComputeField evaluates the MLS affine deformation on a rows x cols grid.
func ComputeField(rows, cols int, cps geometry.ControlPointSet, opts Options) (*Field, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: grid %dx%d is empty", ErrInvalidParameter, rows, cols)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := cps.Validate(); err != nil {
		return nil, err
	}

	// The field is a backward map: weights are evaluated in the output
	// layout and the local fit maps towards the image being sampled.
	backward := cps.Swapped()
	n := backward.Len()
	p := make([][2]float64, n)
	q := make([][2]float64, n)
	for i := 0; i < n; i++ {
		p[i] = [2]float64{backward.Source[i].Y, backward.Source[i].X}
		q[i] = [2]float64{backward.Target[i].Y, backward.Target[i].X}
	}

	field := &Field{
		Rows:      rows,
		Cols:      cols,
		SourceRow: make([]int, rows*cols),
		SourceCol: make([]int, rows*cols),
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > rows {
		workers = rows
	}
	band := (rows + workers - 1) / workers

	singular := make([]int, workers)
	clamped := make([]int, workers)

	var wg sync.WaitGroup
	for b := 0; b < workers; b++ {
		start := b * band
		end := min(start+band, rows)
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(b, start, end int) {
			defer wg.Done()
			s := solver{p: p, q: q, alpha: opts.Alpha, eps: opts.Eps, w: make([]float64, n)}
			for r := start; r < end; r++ {
				for c := 0; c < cols; c++ {
					out, isSingular := s.cell(float64(r), float64(c))
					if isSingular {
						singular[b]++
					}
					sr, sc, wasClamped := clampToGrid(out, rows, cols)
					if wasClamped {
						clamped[b]++
					}
					field.SourceRow[r*cols+c] = sr
					field.SourceCol[r*cols+c] = sc
				}
			}
		}(b, start, end)
	}
	wg.Wait()

	for b := 0; b < workers; b++ {
		field.SingularCells += singular[b]
		field.ClampedCells += clamped[b]
	}
	return field, nil
}

// solver holds per-goroutine scratch space for cell evaluation.
type solver struct {
	p, q  [][2]float64
	alpha float64
	eps   float64
	w     []float64
}

// cell returns the mapped (row, col) for grid point v and whether the
// translation fallback was used.
func (s *solver) cell(vr, vc float64) ([2]float64, bool) {
	// Weights are (dmin/d)^alpha, proportional to 1/d^alpha. The nearest
	// point always weighs 1, so neither tail overflows nor underflows to an
	// all-zero sum at large alpha.
	w := s.w
	dmin := math.Inf(1)
	for i, pi := range s.p {
		dr, dc := pi[0]-vr, pi[1]-vc
		w[i] = dr*dr + dc*dc + s.eps
		dmin = math.Min(dmin, w[i])
	}
	for i, d := range w {
		switch s.alpha {
		case 0:
			w[i] = 1
		case 1:
			w[i] = dmin / d
		default:
			w[i] = math.Pow(dmin/d, s.alpha)
		}
	}
	floats.Scale(1/floats.Sum(w), w)

	var pstar, qstar [2]float64
	for i, wi := range w {
		pstar[0] += wi * s.p[i][0]
		pstar[1] += wi * s.p[i][1]
		qstar[0] += wi * s.q[i][0]
		qstar[1] += wi * s.q[i][1]
	}

	var m00, m01, m11 float64
	for i, wi := range w {
		h0, h1 := s.p[i][0]-pstar[0], s.p[i][1]-pstar[1]
		m00 += wi * h0 * h0
		m01 += wi * h0 * h1
		m11 += wi * h1 * h1
	}

	det := m00*m11 - m01*m01
	if det < SingularDeterminant {
		return [2]float64{vr + qstar[0] - pstar[0], vc + qstar[1] - pstar[1]}, true
	}

	// (v - p*)^T M^-1 using the adjoint of the symmetric 2x2 moment matrix
	l0, l1 := vr-pstar[0], vc-pstar[1]
	a0 := (l0*m11 - l1*m01) / det
	a1 := (l1*m00 - l0*m01) / det

	out := qstar
	for i, wi := range w {
		h0, h1 := s.p[i][0]-pstar[0], s.p[i][1]-pstar[1]
		ai := wi * (a0*h0 + a1*h1)
		out[0] += ai * (s.q[i][0] - qstar[0])
		out[1] += ai * (s.q[i][1] - qstar[1])
	}
	return out, false
}

// clampToGrid replaces coordinates below 0 or beyond the last row/column with
// 0 and truncates to integer indices. Near-integer values are snapped before
// the bounds test so rounding noise at the last row or column is not clamped.
//
// TODO: clamp to the nearest border pixel instead once existing slide outputs
// no longer need to be reproduced.
func clampToGrid(v [2]float64, rows, cols int) (int, int, bool) {
	clamped := false
	r, c := snap(v[0]), snap(v[1])
	if !(r >= 0) || r > float64(rows-1) {
		r = 0
		clamped = true
	}
	if !(c >= 0) || c > float64(cols-1) {
		c = 0
		clamped = true
	}
	return toIndex(r), toIndex(c), clamped
}

// snap returns the nearest integer if v is within snapTolerance of it.
func snap(v float64) float64 {
	if r := math.Round(v); math.Abs(v-r) < snapTolerance {
		return r
	}
	return v
}

// toIndex truncates a non-negative coordinate.
func toIndex(v float64) int {
	return int(v)
}
