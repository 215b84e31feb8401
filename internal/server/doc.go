// Package server implements the MCP (Model Context Protocol) server for
// histology-to-optical slide registration.
//
// This package provides a JSON-RPC 2.0 server that exposes the registration
// stages through the MCP protocol, so an assistant can place landmarks, check
// the marker annotations and plan microscope fields of view for a slide.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Basic Image Information:
//   - image_load: Load image and get metadata
//   - image_dimensions: Get width and height
//
// Landmark and Marker Inspection:
//   - image_sample_color: Get color at pixel and test it against the marker threshold
//   - image_sample_colors_multi: Sample multiple points
//   - image_grid_overlay: Add coordinate grid for landmark picking
//
// Registration Stages:
//   - mls_warp: Warp an H&E image onto the optical frame
//   - annotation_extract: Find marker rectangles in a warped image
//   - coordinate_calibrate: Fit a pixel-to-stage affine transform
//   - fov_tile: Tile a stage rectangle into fields of view
//   - register_slide: Run every stage and return the FOV plan
//
// # Image Caching
//
// The server maintains an in-memory cache of loaded images. Images are cached
// by path and reused across multiple tool calls. Images written by mls_warp
// and register_slide are stored in the cache under their output path, so a
// follow-up annotation_extract does not reread them from disk.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure), -32603 (result not encodable as
//     JSON) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// # Usage
//
//	cfg, err := config.FromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv := server.New(cfg)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
