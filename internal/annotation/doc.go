// Package annotation extracts operator-drawn rectangular regions from a
// registered histology image.
//
// Regions are drawn on the slide scan with a marker whose colour is isolated by
// a per-channel threshold (by default R > 160, G > 100, B < 180). Marked pixels
// are grouped into 8-connected components and each component is reduced to its
// bounding box and pixel area.
//
// # Ordering
//
// Noise components are assumed to be smaller than true annotations, so the
// largest components are kept first. The kept regions are then ordered along
// the sequencing axis (by default left to right by (MinCol, MaxCol)) so they can
// be zipped against an ordered list of patient labels.
//
// # Coordinate System
//
// Bounds are (MinRow, MinCol, MaxRow, MaxCol) with all four values inclusive.
package annotation
