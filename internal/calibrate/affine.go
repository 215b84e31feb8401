package calibrate

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ironsheep/he-fov-mcp/internal/geometry"
)

// MinPoints is the number of correspondences needed for a determined fit.
const MinPoints = 3

// NonInvertibleDeterminant is the magnitude below which the linear part of a
// transform is considered singular.
const NonInvertibleDeterminant = 1e-12

var (
	// ErrInsufficientCorrespondence is returned when fewer than MinPoints
	// pairs, or only collinear pairs, are supplied.
	ErrInsufficientCorrespondence = errors.New("insufficient point correspondences")

	// ErrPointCountMismatch is returned when the point sets differ in length.
	ErrPointCountMismatch = errors.New("point set lengths differ")

	// ErrNonInvertibleTransform is returned by Invert for singular maps.
	ErrNonInvertibleTransform = errors.New("transform is not invertible")
)

// Transform is an affine map in row-vector form: [x' y'] = [x y 1] · A.
type Transform struct {
	A [3][2]float64 `json:"a"`
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{A: [3][2]float64{{1, 0}, {0, 1}, {0, 0}}}
}

// Apply maps a single point.
func (t Transform) Apply(p geometry.Point2D) geometry.Point2D {
	return geometry.Point2D{
		X: p.X*t.A[0][0] + p.Y*t.A[1][0] + t.A[2][0],
		Y: p.X*t.A[0][1] + p.Y*t.A[1][1] + t.A[2][1],
	}
}

// ApplyAll maps every point into a new slice.
func (t Transform) ApplyAll(points []geometry.Point2D) []geometry.Point2D {
	out := make([]geometry.Point2D, len(points))
	for i, p := range points {
		out[i] = t.Apply(p)
	}
	return out
}

// Det returns the determinant of the linear part.
func (t Transform) Det() float64 {
	return t.A[0][0]*t.A[1][1] - t.A[0][1]*t.A[1][0]
}

// Homogeneous returns the 3x3 matrix with last column (0, 0, 1).
func (t Transform) Homogeneous() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		t.A[0][0], t.A[0][1], 0,
		t.A[1][0], t.A[1][1], 0,
		t.A[2][0], t.A[2][1], 1,
	})
}

func fromHomogeneous(m mat.Matrix) Transform {
	var t Transform
	for r := 0; r < 3; r++ {
		for c := 0; c < 2; c++ {
			t.A[r][c] = m.At(r, c)
		}
	}
	return t
}

// Fit solves argmin_A ||pad(src)·A - dst|| by QR least squares.
func Fit(src, dst []geometry.Point2D) (Transform, error) {
	if len(src) != len(dst) {
		return Transform{}, fmt.Errorf("%w: %d vs %d", ErrPointCountMismatch, len(src), len(dst))
	}
	if len(src) < MinPoints {
		return Transform{}, fmt.Errorf("%w: need at least %d pairs, got %d", ErrInsufficientCorrespondence, MinPoints, len(src))
	}

	n := len(src)
	x := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, src[i].X)
		x.Set(i, 1, src[i].Y)
		x.Set(i, 2, 1)
		y.Set(i, 0, dst[i].X)
		y.Set(i, 1, dst[i].Y)
	}

	var qr mat.QR
	qr.Factorize(x)

	var a mat.Dense
	if err := qr.SolveTo(&a, false, y); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return Transform{}, fmt.Errorf("%w: points are collinear (condition %g)", ErrInsufficientCorrespondence, float64(cond))
		}
		return Transform{}, fmt.Errorf("failed to solve least squares: %w", err)
	}

	var t Transform
	for r := 0; r < 3; r++ {
		for c := 0; c < 2; c++ {
			t.A[r][c] = a.At(r, c)
		}
	}
	return t, nil
}

// Invert returns the inverse map.
func Invert(t Transform) (Transform, error) {
	if det := t.Det(); math.Abs(det) < NonInvertibleDeterminant || math.IsNaN(det) {
		return Transform{}, fmt.Errorf("%w: determinant %g", ErrNonInvertibleTransform, det)
	}

	var inv mat.Dense
	if err := inv.Inverse(t.Homogeneous()); err != nil {
		return Transform{}, fmt.Errorf("%w: %v", ErrNonInvertibleTransform, err)
	}
	return fromHomogeneous(&inv), nil
}

// RMSError is the root-mean-square distance between t(src[i]) and dst[i].
func RMSError(t Transform, src, dst []geometry.Point2D) float64 {
	if len(src) == 0 || len(src) != len(dst) {
		return 0
	}
	var sum float64
	for i := range src {
		d := t.Apply(src[i]).Distance(dst[i])
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(src)))
}

// Compose returns the transform that applies first and then second.
func Compose(first, second Transform) Transform {
	var m mat.Dense
	m.Mul(first.Homogeneous(), second.Homogeneous())
	return fromHomogeneous(&m)
}

// RoundTripError is the largest entry of |Compose(t, inverse) - Identity()|.
// It grows as t approaches singularity.
func RoundTripError(t, inverse Transform) float64 {
	id := Identity()
	got := Compose(t, inverse)
	var worst float64
	for r := range got.A {
		for c := range got.A[r] {
			worst = math.Max(worst, math.Abs(got.A[r][c]-id.A[r][c]))
		}
	}
	return worst
}
