// Package imaging provides the pixel-level primitives of the augmentation
// pipeline.
//
// Images are [H, W, C] tensors of float64 values, normally in [0, 255] as
// produced by FromImage. Instance masks are [N, H, W] tensors sharing the
// spatial grid of their image. Every function returns a new tensor and leaves
// its input untouched.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - Regions are given as (top, left, height, width)
//
// # Geometry
//
// FlipLeftRight, FlipUpDown and Rot90 transform images; the Masks variants
// apply the same pixel mapping to every instance mask. Rot90 rotates
// counter-clockwise: output pixel (i, j) is input pixel (j, W-1-i). Crop and
// Pad move the pixel grid without resampling.
//
// # Photometric Adjustments
//
// AdjustHue and AdjustSaturation expect RGB values in [0, 1] and convert
// through HSV. AdjustBrightness and AdjustContrast work at any scale.
// RGBToGray uses the luma weights (0.2989, 0.5870, 0.1140).
//
// # Resampling
//
// Resize supports bilinear, nearest-neighbour, bicubic and area filters.
// Masks are always resized with nearest neighbour so they stay binary.
//
// # Thread Safety
//
// The Loader type is safe for concurrent use. All other functions are
// stateless and can be called concurrently.
package imaging
