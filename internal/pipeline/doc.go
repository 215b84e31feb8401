// Package pipeline registers an H&E histology image to an optical slide image
// and plans microscope acquisition tiles over the annotated regions.
//
// Run sequences the stages:
//
//  1. Resize the histology image to the optical image size.
//  2. Warp it with the MLS engine so the histology landmarks land on the
//     optical landmarks.
//  3. Extract one annotation rectangle per label from the warped image.
//  4. Fit the pixel to stage affine map from the calibration points.
//  5. Map each rectangle to stage space and tile it with FOVs.
//
// A Request is read-only to Run and everything in the Result is freshly
// allocated. Section identifiers must already be resolved (see
// ResolveSections); Run performs no I/O.
package pipeline
