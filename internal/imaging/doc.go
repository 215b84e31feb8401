// Package imaging provides the image I/O and inspection operations for the MCP server.
//
// This package implements image loading and saving (PNG, JPEG, GIF and TIFF),
// resizing to the optical frame, color sampling, PNG preview encoding and
// overlays of annotation boxes, FOV markers and coordinate grids.
// All operations work with standard Go image.Image types and use a coordinate system
// where (0,0) is at the top-left corner, X increases rightward, and Y increases downward.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - Coordinates are inclusive for single points
//   - Overlay boxes are inclusive on both corners, matching annotation regions
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Individual image operations
// are stateless and can be called concurrently on different images. Operations
// on the same image should be synchronized by the caller if the image is mutable.
//
// # Color Representation
//
// Colors are returned in multiple formats for flexibility:
//   - Hex: 6-character format "#RRGGBB" (alpha excluded)
//   - RGB: 8-bit components (0-255)
//   - RGBA: 8-bit components with alpha (0-255)
//   - HSL: Hue (0-360), Saturation (0-100), Lightness (0-100)
//
// # Error Handling
//
// Functions return errors for invalid inputs such as:
//   - Coordinates outside image bounds
//   - Scale factors or target sizes that collapse the image
//   - File I/O errors during image loading and saving
//   - Unsupported output extensions
//
// # Performance Considerations
//
// For repeated operations on the same image, use ImageCache to avoid redundant
// disk reads. Large images may consume significant memory when cached.
// Consider using Evict() to manage memory for long-running processes.
package imaging
