package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// pointList is the schema of an array of {x, y} coordinates.
func pointList(description string) map[string]interface{} {
	return map[string]interface{}{
		"type": "array",
		"items": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"x": map[string]interface{}{"type": "number"},
				"y": map[string]interface{}{"type": "number"},
			},
			"required": []string{"x", "y"},
		},
		"description": description,
	}
}

func pathProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image file (PNG, JPEG, GIF or TIFF) and return its dimensions and format. The image stays cached for subsequent operations.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the image file"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the image file"),
				},
				"required": []string{"path"},
			},
		},

		// Landmark and marker inspection
		{
			Name:        "image_sample_color",
			Description: "Get the exact color at a pixel and whether it passes the annotation marker threshold.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the image file"),
					"x": map[string]interface{}{
						"type":        "integer",
						"description": "X coordinate (0-based, from left)",
					},
					"y": map[string]interface{}{
						"type":        "integer",
						"description": "Y coordinate (0-based, from top)",
					},
				},
				"required": []string{"path", "x", "y"},
			},
		},
		{
			Name:        "image_sample_colors_multi",
			Description: "Sample colors at multiple points in one call, e.g. to check candidate landmarks on both slides.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the image file"),
					"points": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"x":     map[string]interface{}{"type": "integer"},
								"y":     map[string]interface{}{"type": "integer"},
								"label": map[string]interface{}{"type": "string"},
							},
							"required": []string{"x", "y"},
						},
						"description": "Array of points to sample",
					},
				},
				"required": []string{"path", "points"},
			},
		},
		{
			Name:        "image_grid_overlay",
			Description: "Overlay a labelled coordinate grid on an image to help read off landmark pixel coordinates.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the image file"),
					"grid_spacing": map[string]interface{}{
						"type":        "integer",
						"description": "Pixels between grid lines (default 50)",
						"default":     50,
					},
					"show_coordinates": map[string]interface{}{
						"type":        "boolean",
						"description": "Label grid intersections with coordinates",
						"default":     true,
					},
					"grid_color": map[string]interface{}{
						"type":        "string",
						"description": "Grid color as #RRGGBB (default #FF0000)",
						"default":     "#FF0000",
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Output scale factor (default 1.0)",
						"default":     1.0,
					},
				},
				"required": []string{"path"},
			},
		},

		// Registration stages
		{
			Name:        "mls_warp",
			Description: "Warp the H&E image onto the optical image with moving least squares affine deformation. The H&E image is first resized to the optical image size; landmarks are given at that size.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":          pathProperty("Absolute path to the H&E image"),
					"optical_path":  pathProperty("Absolute path to the optical image (defines the output size)"),
					"source_points": pointList("Landmarks on the H&E image"),
					"target_points": pointList("Matching landmarks on the optical image, same order"),
					"alpha": map[string]interface{}{
						"type":        "number",
						"description": "Weight falloff exponent (default from config, 1.0)",
					},
					"output_path": pathProperty("Optional path to write the warped image (.png, .jpg or .tiff); it is cached for later tools"),
					"preview_scale": map[string]interface{}{
						"type":        "number",
						"description": "Scale of the returned PNG preview (default 0.5, 0 disables the preview)",
						"default":     0.5,
					},
				},
				"required": []string{"path", "optical_path", "source_points", "target_points"},
			},
		},
		{
			Name:        "annotation_extract",
			Description: "Find the marker-drawn annotation rectangles in an image by color threshold and connected components. Fails, reporting the counts, if fewer than count regions are found.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty("Absolute path to the (warped) image"),
					"count": map[string]interface{}{
						"type":        "integer",
						"description": "Expected number of regions; the largest count components are kept",
					},
					"order_axis": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"column", "row"},
						"description": "Axis used to order regions (default from config, column)",
					},
					"include_overlay": map[string]interface{}{
						"type":        "boolean",
						"description": "Return a PNG with the regions outlined",
						"default":     false,
					},
					"overlay_scale": map[string]interface{}{
						"type":        "number",
						"description": "Overlay scale factor (default 0.5)",
						"default":     0.5,
					},
				},
				"required": []string{"path", "count"},
			},
		},
		{
			Name:        "coordinate_calibrate",
			Description: "Fit the affine map from optical pixels to stage microns from three or more point pairs. Optionally maps extra points forward (pixel to stage) and back (stage to pixel).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"pixel_points": pointList("Calibration points in optical image pixels"),
					"stage_points": pointList("The same points in stage microns"),
					"forward":      pointList("Optional pixel points to map to stage"),
					"inverse":      pointList("Optional stage points to map to pixels"),
				},
				"required": []string{"pixel_points", "stage_points"},
			},
		},
		{
			Name:        "fov_tile",
			Description: "Generate a grid of FOVs from the first tile centre, stepping +x per column and -y per row.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"origin": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"x": map[string]interface{}{"type": "number"},
							"y": map[string]interface{}{"type": "number"},
						},
						"required":    []string{"x", "y"},
						"description": "Centre of the first FOV in stage microns",
					},
					"count_x": map[string]interface{}{"type": "integer", "description": "Number of columns"},
					"count_y": map[string]interface{}{"type": "integer", "description": "Number of rows"},
					"fov_size": map[string]interface{}{
						"type":        "integer",
						"description": "FOV size in microns; must be a configured size (default 400)",
					},
					"overlap_x": map[string]interface{}{"type": "number", "description": "Fractional overlap in x, in (-1, 1) (default 0.1)"},
					"overlap_y": map[string]interface{}{"type": "number", "description": "Fractional overlap in y, in (-1, 1) (default 0.1)"},
					"label":     map[string]interface{}{"type": "string", "description": "Region label used in FOV names"},
					"slide_id":  map[string]interface{}{"type": "integer", "description": "Slide id copied into each FOV"},
					"section_id": map[string]interface{}{
						"type":        "integer",
						"description": "Section id copied into each FOV",
					},
				},
				"required": []string{"origin", "count_x", "count_y", "label"},
			},
		},
		{
			Name:        "register_slide",
			Description: "Run the full registration: resize and warp the H&E image onto the optical image, extract one annotation region per label, calibrate pixels to stage and tile every region with FOVs.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"histology_path": pathProperty("Absolute path to the annotated H&E image"),
					"optical_path":   pathProperty("Absolute path to the optical image"),
					"source_points":  pointList("Landmarks on the H&E image at optical size"),
					"target_points":  pointList("Matching landmarks on the optical image"),
					"labels": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "One label (section position name) per annotated region, in region order",
					},
					"pixel_points": pointList("Calibration points in optical pixels"),
					"stage_points": pointList("The same points in stage microns"),
					"fov_size": map[string]interface{}{
						"type":        "integer",
						"description": "FOV size in microns (default from config)",
					},
					"overlap_x": map[string]interface{}{"type": "number", "description": "Default 0.1"},
					"overlap_y": map[string]interface{}{"type": "number", "description": "Default 0.1"},
					"tracker_id": map[string]interface{}{
						"type":        "string",
						"description": "Slide tracker id; resolves slide and section ids from the configured slide table",
					},
					"slide_id": map[string]interface{}{
						"type":        "integer",
						"description": "Slide id, used with sections when tracker_id is not given",
					},
					"sections": map[string]interface{}{
						"type":                 "object",
						"additionalProperties": map[string]interface{}{"type": "integer"},
						"description":          "Explicit label to section id map",
					},
					"output_path": pathProperty("Optional path to write the warped image"),
					"include_overlay": map[string]interface{}{
						"type":        "boolean",
						"description": "Return a PNG of the warped image with regions and FOVs drawn",
						"default":     true,
					},
					"overlay_scale": map[string]interface{}{
						"type":        "number",
						"description": "Overlay scale factor (default 0.5)",
						"default":     0.5,
					},
				},
				"required": []string{"histology_path", "optical_path", "source_points", "target_points", "labels", "pixel_points", "stage_points"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
