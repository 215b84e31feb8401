package server

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"math"
	"time"

	"github.com/ironsheep/he-fov-mcp/internal/annotation"
	"github.com/ironsheep/he-fov-mcp/internal/calibrate"
	"github.com/ironsheep/he-fov-mcp/internal/geometry"
	"github.com/ironsheep/he-fov-mcp/internal/imaging"
	"github.com/ironsheep/he-fov-mcp/internal/pipeline"
	"github.com/ironsheep/he-fov-mcp/internal/tiling"
	"github.com/ironsheep/he-fov-mcp/internal/warp"
)

const defaultPreviewScale = 0.5

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "mls_warp", "register_slide").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000; a
// result that cannot be encoded (NaN or Inf values) returns -32603.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}
	text, err := marshalResult(result)
	if err != nil {
		return s.errorResponse(req.ID, -32603, "Internal error", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": text,
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	start := time.Now()
	result, err := s.dispatchTool(name, args)
	if s.debug {
		log.Printf("tool %s finished in %v (error: %v)", name, time.Since(start), err)
	}
	return result, err
}

func (s *Server) dispatchTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)

	// Landmark and marker inspection
	case "image_sample_color":
		return s.handleImageSampleColor(args)
	case "image_sample_colors_multi":
		return s.handleImageSampleColorsMulti(args)
	case "image_grid_overlay":
		return s.handleImageGridOverlay(args)

	// Registration stages
	case "mls_warp":
		return s.handleMLSWarp(args)
	case "annotation_extract":
		return s.handleAnnotationExtract(args)
	case "coordinate_calibrate":
		return s.handleCoordinateCalibrate(args)
	case "fov_tile":
		return s.handleFOVTile(args)
	case "register_slide":
		return s.handleRegisterSlide(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// marshalResult converts a tool result to a pretty-printed JSON string.
func marshalResult(v interface{}) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return string(b), nil
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

// === Landmark and Marker Inspection Handlers ===

type imageSampleColorArgs struct {
	Path string `json:"path"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

type sampleColorResult struct {
	*imaging.ColorResult
	Marker    bool                 `json:"marker"`
	Threshold annotation.Threshold `json:"threshold"`
}

func (s *Server) handleImageSampleColor(args json.RawMessage) (interface{}, error) {
	var a imageSampleColorArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	c, err := imaging.SampleColor(img, a.X, a.Y)
	if err != nil {
		return nil, err
	}

	opts, err := s.cfg.AnnotationOptions()
	if err != nil {
		return nil, err
	}
	return &sampleColorResult{
		ColorResult: c,
		Marker:      opts.Threshold.Marked(c.RGB.R, c.RGB.G, c.RGB.B),
		Threshold:   opts.Threshold,
	}, nil
}

type imageSampleColorsMultiArgs struct {
	Path   string `json:"path"`
	Points []struct {
		X     int    `json:"x"`
		Y     int    `json:"y"`
		Label string `json:"label,omitempty"`
	} `json:"points"`
}

func (s *Server) handleImageSampleColorsMulti(args json.RawMessage) (interface{}, error) {
	var a imageSampleColorsMultiArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	points := make([]imaging.LabeledPoint, len(a.Points))
	for i, p := range a.Points {
		points[i] = imaging.LabeledPoint{X: p.X, Y: p.Y, Label: p.Label}
	}
	return imaging.SampleColorsMulti(img, points)
}

type imageGridOverlayArgs struct {
	Path            string  `json:"path"`
	GridSpacing     int     `json:"grid_spacing"`
	ShowCoordinates *bool   `json:"show_coordinates"`
	GridColor       string  `json:"grid_color"`
	Scale           float64 `json:"scale"`
}

func (s *Server) handleImageGridOverlay(args json.RawMessage) (interface{}, error) {
	var a imageGridOverlayArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.GridSpacing <= 0 {
		a.GridSpacing = 50
	}
	if a.GridColor == "" {
		a.GridColor = imaging.DefaultGridColor
	}
	showCoordinates := true
	if a.ShowCoordinates != nil {
		showCoordinates = *a.ShowCoordinates
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.RenderOverlay(img, imaging.OverlayOptions{
		GridSpacing:     a.GridSpacing,
		GridColor:       a.GridColor,
		ShowCoordinates: showCoordinates,
		Scale:           a.Scale,
	})
}

// === Registration Stage Handlers ===

type mlsWarpArgs struct {
	Path         string             `json:"path"`
	OpticalPath  string             `json:"optical_path"`
	SourcePoints []geometry.Point2D `json:"source_points"`
	TargetPoints []geometry.Point2D `json:"target_points"`
	Alpha        *float64           `json:"alpha"`
	OutputPath   string             `json:"output_path"`
	PreviewScale *float64           `json:"preview_scale"`
}

type mlsWarpResult struct {
	Width         int                   `json:"width"`
	Height        int                   `json:"height"`
	Landmarks     int                   `json:"landmarks"`
	Alpha         float64               `json:"alpha"`
	SingularCells int                   `json:"singular_cells"`
	ClampedCells  int                   `json:"clamped_cells"`
	OutputPath    string                `json:"output_path,omitempty"`
	Preview       *imaging.EncodedImage `json:"preview,omitempty"`
}

func (s *Server) handleMLSWarp(args json.RawMessage) (interface{}, error) {
	var a mlsWarpArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	histology, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	optical, err := s.cache.Load(a.OpticalPath)
	if err != nil {
		return nil, err
	}
	cps, err := geometry.NewControlPointSet(a.SourcePoints, a.TargetPoints)
	if err != nil {
		return nil, err
	}

	size := optical.Bounds().Size()
	resized, err := imaging.ResizeTo(histology, size.X, size.Y)
	if err != nil {
		return nil, err
	}

	opts := s.cfg.WarpOptions()
	if a.Alpha != nil {
		opts.Alpha = *a.Alpha
	}
	warped, field, err := warp.Align(resized, cps, opts)
	if err != nil {
		return nil, err
	}

	result := &mlsWarpResult{
		Width:         field.Cols,
		Height:        field.Rows,
		Landmarks:     cps.Len(),
		Alpha:         opts.Alpha,
		SingularCells: field.SingularCells,
		ClampedCells:  field.ClampedCells,
	}
	if a.OutputPath != "" {
		if err := s.cache.Save(a.OutputPath, warped); err != nil {
			return nil, err
		}
		result.OutputPath = a.OutputPath
	}
	if result.Preview, err = encodePreview(warped, a.PreviewScale); err != nil {
		return nil, err
	}
	return result, nil
}

type annotationExtractArgs struct {
	Path           string   `json:"path"`
	Count          int      `json:"count"`
	OrderAxis      string   `json:"order_axis"`
	IncludeOverlay bool     `json:"include_overlay"`
	OverlayScale   *float64 `json:"overlay_scale"`
}

type annotationExtractResult struct {
	Count   int                    `json:"count"`
	Order   string                 `json:"order"`
	Regions []annotation.Region    `json:"regions"`
	Overlay *imaging.OverlayResult `json:"overlay,omitempty"`
}

func (s *Server) handleAnnotationExtract(args json.RawMessage) (interface{}, error) {
	var a annotationExtractArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	opts, err := s.cfg.AnnotationOptions()
	if err != nil {
		return nil, err
	}
	if a.OrderAxis != "" {
		if opts.Order, err = annotation.ParseOrderAxis(a.OrderAxis); err != nil {
			return nil, err
		}
	}

	regions, err := annotation.Extract(img, a.Count, opts)
	if err != nil {
		return nil, err
	}

	result := &annotationExtractResult{
		Count:   len(regions),
		Order:   opts.Order.String(),
		Regions: regions,
	}
	if a.IncludeOverlay {
		result.Overlay, err = imaging.RenderOverlay(img, imaging.OverlayOptions{
			Boxes: regionBoxes(regions, nil),
			Scale: scaleOr(a.OverlayScale, defaultPreviewScale),
		})
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

type coordinateCalibrateArgs struct {
	PixelPoints []geometry.Point2D `json:"pixel_points"`
	StagePoints []geometry.Point2D `json:"stage_points"`
	Forward     []geometry.Point2D `json:"forward"`
	Inverse     []geometry.Point2D `json:"inverse"`
}

type coordinateCalibrateResult struct {
	Transform      calibrate.Transform  `json:"transform"`
	Inverse        *calibrate.Transform `json:"inverse,omitempty"`
	Determinant    float64              `json:"determinant"`
	MicronsPerPx   float64              `json:"microns_per_pixel"`
	RMSError       float64              `json:"rms_error"`
	RoundTripError float64              `json:"round_trip_error,omitempty"`
	ForwardMapped  []geometry.Point2D   `json:"forward_mapped,omitempty"`
	InverseMapped  []geometry.Point2D   `json:"inverse_mapped,omitempty"`
	CalibrationLen int                  `json:"points"`
}

func (s *Server) handleCoordinateCalibrate(args json.RawMessage) (interface{}, error) {
	var a coordinateCalibrateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	transform, err := calibrate.Fit(a.PixelPoints, a.StagePoints)
	if err != nil {
		return nil, err
	}

	result := &coordinateCalibrateResult{
		Transform:      transform,
		Determinant:    transform.Det(),
		MicronsPerPx:   math.Sqrt(math.Abs(transform.Det())),
		RMSError:       calibrate.RMSError(transform, a.PixelPoints, a.StagePoints),
		ForwardMapped:  transform.ApplyAll(a.Forward),
		CalibrationLen: len(a.PixelPoints),
	}

	inverse, err := calibrate.Invert(transform)
	switch {
	case err == nil:
		result.Inverse = &inverse
		result.RoundTripError = calibrate.RoundTripError(transform, inverse)
		result.InverseMapped = inverse.ApplyAll(a.Inverse)
	case len(a.Inverse) > 0:
		return nil, err
	}
	return result, nil
}

type fovTileArgs struct {
	Origin    geometry.Point2D `json:"origin"`
	CountX    int              `json:"count_x"`
	CountY    int              `json:"count_y"`
	FOVSize   *int             `json:"fov_size"`
	OverlapX  *float64         `json:"overlap_x"`
	OverlapY  *float64         `json:"overlap_y"`
	Label     string           `json:"label"`
	SlideID   int64            `json:"slide_id"`
	SectionID int64            `json:"section_id"`
}

type fovTileResult struct {
	Grid tiling.Grid  `json:"grid"`
	FOVs []tiling.FOV `json:"fovs"`
}

func (s *Server) handleFOVTile(args json.RawMessage) (interface{}, error) {
	var a fovTileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	size, err := s.fovSize(a.FOVSize)
	if err != nil {
		return nil, err
	}

	grid := tiling.Grid{
		Origin:   a.Origin,
		CountX:   a.CountX,
		CountY:   a.CountY,
		FOVSize:  float64(size),
		OverlapX: floatOr(a.OverlapX, s.cfg.Tiling.OverlapX),
		OverlapY: floatOr(a.OverlapY, s.cfg.Tiling.OverlapY),
	}
	fovs, err := tiling.Tile(grid, a.Label)
	if err != nil {
		return nil, err
	}
	for i := range fovs {
		fovs[i].SlideID = a.SlideID
		fovs[i].SectionID = a.SectionID
	}
	return &fovTileResult{Grid: grid, FOVs: fovs}, nil
}

type registerSlideArgs struct {
	HistologyPath  string             `json:"histology_path"`
	OpticalPath    string             `json:"optical_path"`
	SourcePoints   []geometry.Point2D `json:"source_points"`
	TargetPoints   []geometry.Point2D `json:"target_points"`
	Labels         []string           `json:"labels"`
	PixelPoints    []geometry.Point2D `json:"pixel_points"`
	StagePoints    []geometry.Point2D `json:"stage_points"`
	FOVSize        *int               `json:"fov_size"`
	OverlapX       *float64           `json:"overlap_x"`
	OverlapY       *float64           `json:"overlap_y"`
	TrackerID      string             `json:"tracker_id"`
	SlideID        int64              `json:"slide_id"`
	Sections       map[string]int64   `json:"sections"`
	OutputPath     string             `json:"output_path"`
	IncludeOverlay *bool              `json:"include_overlay"`
	OverlayScale   *float64           `json:"overlay_scale"`
}

type regionSummary struct {
	Label     string            `json:"label"`
	SectionID int64             `json:"section_id"`
	Region    annotation.Region `json:"region"`
	StageMin  geometry.Point2D  `json:"stage_min"`
	StageMax  geometry.Point2D  `json:"stage_max"`
	CountX    int               `json:"count_x"`
	CountY    int               `json:"count_y"`
}

type registerSlideResult struct {
	SlideID        int64                  `json:"slide_id"`
	Width          int                    `json:"width"`
	Height         int                    `json:"height"`
	SingularCells  int                    `json:"singular_cells"`
	ClampedCells   int                    `json:"clamped_cells"`
	Transform      calibrate.Transform    `json:"transform"`
	CalibrationRMS float64                `json:"calibration_rms"`
	Regions        []regionSummary        `json:"regions"`
	FOVs           []tiling.FOV           `json:"fovs"`
	FOVPixels      []geometry.Point2D     `json:"fov_pixels"`
	OutputPath     string                 `json:"output_path,omitempty"`
	Overlay        *imaging.OverlayResult `json:"overlay,omitempty"`
}

func (s *Server) handleRegisterSlide(args json.RawMessage) (interface{}, error) {
	var a registerSlideArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	histology, err := s.cache.Load(a.HistologyPath)
	if err != nil {
		return nil, err
	}
	optical, err := s.cache.Load(a.OpticalPath)
	if err != nil {
		return nil, err
	}
	cps, err := geometry.NewControlPointSet(a.SourcePoints, a.TargetPoints)
	if err != nil {
		return nil, err
	}
	size, err := s.fovSize(a.FOVSize)
	if err != nil {
		return nil, err
	}
	slideID, sections, err := s.resolveSlide(a)
	if err != nil {
		return nil, err
	}
	annotationOpts, err := s.cfg.AnnotationOptions()
	if err != nil {
		return nil, err
	}

	req := pipeline.Request{
		Histology:         histology,
		OpticalSize:       optical.Bounds().Size(),
		Landmarks:         cps,
		Warp:              s.cfg.WarpOptions(),
		Annotation:        annotationOpts,
		Labels:            a.Labels,
		CalibrationPixels: a.PixelPoints,
		CalibrationStage:  a.StagePoints,
		FOVSize:           float64(size),
		OverlapX:          floatOr(a.OverlapX, s.cfg.Tiling.OverlapX),
		OverlapY:          floatOr(a.OverlapY, s.cfg.Tiling.OverlapY),
		SlideID:           slideID,
		Sections:          sections,
	}

	var opts pipeline.Options
	if s.debug {
		opts.Logger = log.Default()
	}
	res, err := pipeline.Run(req, opts)
	if err != nil {
		return nil, err
	}

	result := &registerSlideResult{
		SlideID:        slideID,
		Width:          res.Field.Cols,
		Height:         res.Field.Rows,
		SingularCells:  res.Field.SingularCells,
		ClampedCells:   res.Field.ClampedCells,
		Transform:      res.Transform,
		CalibrationRMS: res.CalibrationRMS,
		Regions:        make([]regionSummary, len(res.Plans)),
		FOVs:           res.FOVs,
		FOVPixels:      res.FOVPixels,
	}
	for i, p := range res.Plans {
		result.Regions[i] = regionSummary{
			Label:     p.Label,
			SectionID: p.SectionID,
			Region:    p.Region,
			StageMin:  p.StageMin,
			StageMax:  p.StageMax,
			CountX:    p.Grid.CountX,
			CountY:    p.Grid.CountY,
		}
	}

	if a.OutputPath != "" {
		if err := s.cache.Save(a.OutputPath, res.Warped); err != nil {
			return nil, err
		}
		result.OutputPath = a.OutputPath
	}
	if a.IncludeOverlay == nil || *a.IncludeOverlay {
		half := fovHalfPixels(res.Transform, float64(size))
		result.Overlay, err = imaging.RenderOverlay(res.Warped, imaging.OverlayOptions{
			Boxes:   regionBoxes(res.Regions, a.Labels),
			Markers: fovMarkers(res.FOVPixels, half),
			Scale:   scaleOr(a.OverlayScale, defaultPreviewScale),
		})
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// resolveSlide returns the slide id and section ids for a registration.
// Explicit sections win; otherwise the configured slide table is consulted.
func (s *Server) resolveSlide(a registerSlideArgs) (int64, map[string]int64, error) {
	slideID := a.SlideID
	if a.TrackerID != "" {
		slide, err := s.slides.ByTracker(a.TrackerID)
		if err != nil {
			return 0, nil, err
		}
		slideID = slide.SlideID
	}
	if len(a.Sections) > 0 {
		return slideID, a.Sections, nil
	}
	sections, err := pipeline.ResolveSections(s.slides, slideID, a.Labels)
	if err != nil {
		return 0, nil, err
	}
	return slideID, sections, nil
}

// fovSize returns the requested FOV size, or the configured default, after
// checking it against the configured sizes.
func (s *Server) fovSize(requested *int) (int, error) {
	size := s.cfg.Tiling.DefaultFOVSize
	if requested != nil {
		size = *requested
	}
	if !s.cfg.AllowsFOVSize(size) {
		return 0, fmt.Errorf("%w: %d not in configured sizes %v", tiling.ErrInvalidFOVSize, size, s.cfg.Tiling.FOVSizes)
	}
	return size, nil
}

func regionBoxes(regions []annotation.Region, labels []string) []imaging.Box {
	boxes := make([]imaging.Box, len(regions))
	for i, r := range regions {
		boxes[i] = imaging.Box{MinX: r.MinCol, MinY: r.MinRow, MaxX: r.MaxCol, MaxY: r.MaxRow}
		if i < len(labels) {
			boxes[i].Label = labels[i]
		}
	}
	return boxes
}

func fovMarkers(pixels []geometry.Point2D, half int) []imaging.Marker {
	markers := make([]imaging.Marker, len(pixels))
	for i, p := range pixels {
		markers[i] = imaging.Marker{X: int(math.Round(p.X)), Y: int(math.Round(p.Y)), Half: half}
	}
	return markers
}

// fovHalfPixels converts half a FOV edge from microns to optical pixels.
func fovHalfPixels(t calibrate.Transform, fovSize float64) int {
	micronsPerPixel := math.Sqrt(math.Abs(t.Det()))
	if micronsPerPixel == 0 {
		return 0
	}
	return int(fovSize / micronsPerPixel / 2)
}

func encodePreview(img image.Image, scale *float64) (*imaging.EncodedImage, error) {
	s := scaleOr(scale, defaultPreviewScale)
	if s <= 0 {
		return nil, nil
	}
	return imaging.EncodePNG(img, s)
}

func scaleOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

func floatOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
