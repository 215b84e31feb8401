// Package geometry provides the basic coordinate types shared by the
// registration packages.
package geometry

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptyControlPoints is returned when a control point set has no pairs.
	ErrEmptyControlPoints = errors.New("control point set is empty")

	// ErrControlPointMismatch is returned when source and target lengths differ.
	ErrControlPointMismatch = errors.New("control point source and target lengths differ")
)

// Point2D is a real-valued 2D coordinate. X is the column axis and Y the row
// axis when the point lives in pixel space.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point2D{X: x, Y: y}.
func Pt(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Add returns the sum of two points.
func (p Point2D) Add(other Point2D) Point2D {
	return Point2D{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the difference of two points.
func (p Point2D) Sub(other Point2D) Point2D {
	return Point2D{X: p.X - other.X, Y: p.Y - other.Y}
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// IsFinite reports whether both coordinates are finite.
func (p Point2D) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// String formats the point as (x, y).
func (p Point2D) String() string {
	return fmt.Sprintf("(%g, %g)", p.X, p.Y)
}

// ControlPointSet holds paired landmark correspondences. Source[i] is the
// location of landmark i in the image being moved, Target[i] is the location of
// the same landmark in the layout the image is moved onto.
type ControlPointSet struct {
	Source []Point2D `json:"source"`
	Target []Point2D `json:"target"`
}

// NewControlPointSet copies the given sequences into a validated set.
func NewControlPointSet(source, target []Point2D) (ControlPointSet, error) {
	cps := ControlPointSet{
		Source: append([]Point2D(nil), source...),
		Target: append([]Point2D(nil), target...),
	}
	if err := cps.Validate(); err != nil {
		return ControlPointSet{}, err
	}
	return cps, nil
}

// Len returns the number of correspondences.
func (c ControlPointSet) Len() int {
	return len(c.Source)
}

// Validate checks that the set is non-empty, both sides have equal length and
// every coordinate is finite.
func (c ControlPointSet) Validate() error {
	if len(c.Source) != len(c.Target) {
		return fmt.Errorf("%w: %d source, %d target", ErrControlPointMismatch, len(c.Source), len(c.Target))
	}
	if len(c.Source) == 0 {
		return ErrEmptyControlPoints
	}
	for i := range c.Source {
		if !c.Source[i].IsFinite() || !c.Target[i].IsFinite() {
			return fmt.Errorf("control point %d is not finite: %v -> %v", i, c.Source[i], c.Target[i])
		}
	}
	return nil
}

// Swapped returns a set with source and target exchanged.
func (c ControlPointSet) Swapped() ControlPointSet {
	return ControlPointSet{Source: c.Target, Target: c.Source}
}
