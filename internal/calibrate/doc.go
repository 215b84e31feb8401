// Package calibrate fits and applies affine maps between two 2D coordinate
// systems, typically optical image pixels and instrument stage microns.
//
// Transforms use the row-vector convention of a padded least-squares fit:
//
//	[x' y'] = [x y 1] · A
//
// where A is 3x2. The equivalent homogeneous 3x3 matrix has a fixed last
// column of (0, 0, 1).
package calibrate
