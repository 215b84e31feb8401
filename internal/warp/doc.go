// Package warp implements moving-least-squares (MLS) affine image deformation
// driven by sparse landmark correspondences.
//
// # Backward Mapping
//
// The engine produces a backward deformation field: for every pixel of the
// output grid it records which pixel of the source image to sample. Control
// points are given as a geometry.ControlPointSet where Source holds landmark
// positions in the image being warped and Target holds the positions of the
// same landmarks in the output layout. Weights and local affine fits are
// evaluated at output pixels against the Target points, and the fitted map is
// applied towards the Source points.
//
// # Coordinate System
//
// The field is indexed by (row, col) with the origin at the top-left corner.
// Control points use X for the column and Y for the row.
//
// # Numerical Edge Cases
//
// Cells whose weighted moment matrix is singular (determinant < 1e-8), which
// happens with a single control point or coincident control points, fall back
// to a pure translation by the weighted centroid difference. Coordinates that
// fall outside the grid are replaced with 0, matching the behaviour of the
// acquisition tool's FOV outputs. Neither case is reported as an error; the
// Field carries SingularCells and ClampedCells counters instead.
//
// # Concurrency
//
// ComputeField splits the grid into row bands processed in parallel. The
// result does not depend on the number of workers.
package warp
