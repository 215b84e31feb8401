package server

import (
	"testing"
)

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	if len(tools) == 0 {
		t.Fatal("GetToolDefinitions returned empty slice")
	}

	expectedTools := []string{
		"image_load",
		"image_dimensions",
		"image_sample_color",
		"image_sample_colors_multi",
		"image_grid_overlay",
		"mls_warp",
		"annotation_extract",
		"coordinate_calibrate",
		"fov_tile",
		"register_slide",
	}

	toolMap := make(map[string]Tool)
	for _, tool := range tools {
		if _, dup := toolMap[tool.Name]; dup {
			t.Errorf("Duplicate tool %s", tool.Name)
		}
		toolMap[tool.Name] = tool
	}

	for _, name := range expectedTools {
		if _, ok := toolMap[name]; !ok {
			t.Errorf("Expected tool %s not found", name)
		}
	}
	if len(tools) != len(expectedTools) {
		t.Errorf("Tool count: got %d, want %d", len(tools), len(expectedTools))
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	tools := GetToolDefinitions()

	for _, tool := range tools {
		t.Run(tool.Name, func(t *testing.T) {
			// Name should not be empty
			if tool.Name == "" {
				t.Error("Tool name is empty")
			}

			// Description should not be empty
			if tool.Description == "" {
				t.Error("Tool description is empty")
			}

			// InputSchema should exist
			if tool.InputSchema == nil {
				t.Error("Tool InputSchema is nil")
			}

			// InputSchema should be an object type
			schemaType, ok := tool.InputSchema["type"]
			if !ok {
				t.Error("InputSchema missing 'type' field")
			}
			if schemaType != "object" {
				t.Errorf("InputSchema type: got %v, want 'object'", schemaType)
			}

			// InputSchema should have properties
			props, ok := tool.InputSchema["properties"]
			if !ok {
				t.Error("InputSchema missing 'properties' field")
			}
			if props == nil {
				t.Error("InputSchema properties is nil")
			}
		})
	}
}

func requiredOf(t *testing.T, name string) []string {
	t.Helper()
	for _, tool := range GetToolDefinitions() {
		if tool.Name == name {
			required, ok := tool.InputSchema["required"].([]string)
			if !ok {
				t.Fatalf("%s: 'required' should be a string slice", name)
			}
			return required
		}
	}
	t.Fatalf("tool %s not found", name)
	return nil
}

func TestToolDefinitions_Required(t *testing.T) {
	tests := map[string][]string{
		"image_load":                {"path"},
		"image_dimensions":          {"path"},
		"image_sample_color":        {"path", "x", "y"},
		"image_sample_colors_multi": {"path", "points"},
		"image_grid_overlay":        {"path"},
		"mls_warp":                  {"path", "optical_path", "source_points", "target_points"},
		"annotation_extract":        {"path", "count"},
		"coordinate_calibrate":      {"pixel_points", "stage_points"},
		"fov_tile":                  {"origin", "count_x", "count_y", "label"},
		"register_slide": {
			"histology_path", "optical_path", "source_points", "target_points",
			"labels", "pixel_points", "stage_points",
		},
	}

	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			required := requiredOf(t, name)
			have := make(map[string]bool, len(required))
			for _, r := range required {
				have[r] = true
			}
			for _, w := range want {
				if !have[w] {
					t.Errorf("%s should require '%s'", name, w)
				}
			}
			if len(required) != len(want) {
				t.Errorf("%s: required got %v, want %v", name, required, want)
			}
		})
	}
}

func TestToolDefinitions_RequiredAreProperties(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		props, ok := tool.InputSchema["properties"].(map[string]interface{})
		if !ok {
			t.Fatalf("%s: properties should be a map", tool.Name)
		}
		for _, r := range requiredOf(t, tool.Name) {
			if _, ok := props[r]; !ok {
				t.Errorf("%s: required '%s' has no property schema", tool.Name, r)
			}
		}
	}
}

func TestToolDefinitions_OrderAxisEnum(t *testing.T) {
	var tool Tool
	for _, tt := range GetToolDefinitions() {
		if tt.Name == "annotation_extract" {
			tool = tt
			break
		}
	}

	props := tool.InputSchema["properties"].(map[string]interface{})
	axis, ok := props["order_axis"].(map[string]interface{})
	if !ok {
		t.Fatal("annotation_extract should have an order_axis property")
	}
	enum, ok := axis["enum"].([]string)
	if !ok {
		t.Fatal("order_axis enum should be a string slice")
	}
	if len(enum) != 2 || enum[0] != "column" || enum[1] != "row" {
		t.Errorf("order_axis enum: got %v, want [column row]", enum)
	}
}

func TestToolDefinitions_OptionalDefaults(t *testing.T) {
	tools := GetToolDefinitions()

	// Tools with optional parameters that should have defaults
	toolDefaults := map[string]map[string]interface{}{
		"image_grid_overlay": {"grid_spacing": 50, "show_coordinates": true, "grid_color": "#FF0000", "scale": 1.0},
		"mls_warp":           {"preview_scale": 0.5},
		"annotation_extract": {"include_overlay": false, "overlay_scale": 0.5},
		"register_slide":     {"include_overlay": true, "overlay_scale": 0.5},
	}

	toolMap := make(map[string]Tool)
	for _, tool := range tools {
		toolMap[tool.Name] = tool
	}

	for toolName, expectedDefaults := range toolDefaults {
		tool, ok := toolMap[toolName]
		if !ok {
			t.Errorf("Tool %s not found", toolName)
			continue
		}

		props, ok := tool.InputSchema["properties"].(map[string]interface{})
		if !ok {
			t.Errorf("%s: properties should be a map", toolName)
			continue
		}

		for paramName, expectedDefault := range expectedDefaults {
			param, ok := props[paramName].(map[string]interface{})
			if !ok {
				t.Errorf("%s.%s: parameter not found or not a map", toolName, paramName)
				continue
			}

			actualDefault, ok := param["default"]
			if !ok {
				t.Errorf("%s.%s: missing default value", toolName, paramName)
				continue
			}

			if actualDefault != expectedDefault {
				t.Errorf("%s.%s: default got %v (%T), want %v (%T)",
					toolName, paramName, actualDefault, actualDefault, expectedDefault, expectedDefault)
			}
		}
	}
}

func TestHandleToolsList(t *testing.T) {
	s := New(nil)
	req := &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
	}

	resp := s.handleToolsList(req)

	if resp == nil {
		t.Fatal("handleToolsList returned nil")
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}

	tools, ok := result["tools"]
	if !ok {
		t.Fatal("Result should contain 'tools' key")
	}

	toolsList, ok := tools.([]Tool)
	if !ok {
		t.Fatal("tools should be a slice of Tool")
	}

	// Should match GetToolDefinitions
	expected := GetToolDefinitions()
	if len(toolsList) != len(expected) {
		t.Errorf("Tool count: got %d, want %d", len(toolsList), len(expected))
	}
}

func TestToolStruct(t *testing.T) {
	tool := Tool{
		Name:        "test_tool",
		Description: "A test tool",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"param1": map[string]interface{}{
					"type":        "string",
					"description": "A test parameter",
				},
			},
			"required": []string{"param1"},
		},
	}

	if tool.Name != "test_tool" {
		t.Errorf("Name: got %s, want test_tool", tool.Name)
	}
	if tool.Description != "A test tool" {
		t.Errorf("Description: got %s, want 'A test tool'", tool.Description)
	}
	if tool.InputSchema == nil {
		t.Error("InputSchema should not be nil")
	}
}
