package pipeline

import (
	"errors"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/ironsheep/he-fov-mcp/internal/annotation"
	"github.com/ironsheep/he-fov-mcp/internal/calibrate"
	"github.com/ironsheep/he-fov-mcp/internal/geometry"
	"github.com/ironsheep/he-fov-mcp/internal/imaging"
	"github.com/ironsheep/he-fov-mcp/internal/tiling"
	"github.com/ironsheep/he-fov-mcp/internal/warp"
)

var (
	// ErrUnknownSection is returned when a label has no section id.
	ErrUnknownSection = errors.New("no section id for label")

	// ErrLabelMismatch is returned for empty or duplicate labels.
	ErrLabelMismatch = errors.New("invalid region labels")
)

// DefaultOverlap is the tile overlap used when a request leaves it unset.
const DefaultOverlap = 0.1

// SectionLookup resolves a section position name on a slide to its id.
type SectionLookup interface {
	SectionID(slideID int64, position string) (int64, error)
}

// ResolveSections looks up the section id for every label.
func ResolveSections(lookup SectionLookup, slideID int64, labels []string) (map[string]int64, error) {
	sections := make(map[string]int64, len(labels))
	for _, label := range labels {
		id, err := lookup.SectionID(slideID, label)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve section %q: %w", label, err)
		}
		sections[label] = id
	}
	return sections, nil
}

// Request is the complete input of one registration run.
type Request struct {
	// Histology is the H&E image carrying the annotation rectangles.
	Histology image.Image

	// OpticalSize is the optical image size in pixels. Zero means the
	// histology image is already at optical size.
	OpticalSize image.Point

	// Landmarks pairs histology pixels (Source) with optical pixels (Target),
	// both at optical size.
	Landmarks geometry.ControlPointSet

	Warp       warp.Options
	Annotation annotation.Options

	// Labels name the regions in extraction order. Their count is the
	// expected region count.
	Labels []string

	// CalibrationPixels and CalibrationStage are matching optical pixel and
	// stage micron coordinates.
	CalibrationPixels []geometry.Point2D
	CalibrationStage  []geometry.Point2D

	FOVSize  float64
	OverlapX float64
	OverlapY float64

	SlideID  int64
	Sections map[string]int64
}

// WithDefaultOverlap returns a copy of r with both overlaps set to
// DefaultOverlap.
func (r Request) WithDefaultOverlap() Request {
	r.OverlapX = DefaultOverlap
	r.OverlapY = DefaultOverlap
	return r
}

// Validate checks everything that can be checked without running a stage.
func (r Request) Validate() error {
	if r.Histology == nil {
		return errors.New("histology image is required")
	}
	if r.OpticalSize.X < 0 || r.OpticalSize.Y < 0 {
		return fmt.Errorf("invalid optical size %dx%d", r.OpticalSize.X, r.OpticalSize.Y)
	}
	if err := r.Landmarks.Validate(); err != nil {
		return fmt.Errorf("invalid landmarks: %w", err)
	}
	if err := r.Warp.Validate(); err != nil {
		return err
	}
	if len(r.Labels) == 0 {
		return fmt.Errorf("%w: at least one label is required", ErrLabelMismatch)
	}
	seen := make(map[string]bool, len(r.Labels))
	for _, label := range r.Labels {
		if label == "" {
			return fmt.Errorf("%w: empty label", ErrLabelMismatch)
		}
		if seen[label] {
			return fmt.Errorf("%w: duplicate label %q", ErrLabelMismatch, label)
		}
		seen[label] = true
		if _, ok := r.Sections[label]; !ok {
			return fmt.Errorf("%w %q", ErrUnknownSection, label)
		}
	}
	if len(r.CalibrationPixels) != len(r.CalibrationStage) {
		return fmt.Errorf("%w: %d pixel vs %d stage points",
			calibrate.ErrPointCountMismatch, len(r.CalibrationPixels), len(r.CalibrationStage))
	}
	if len(r.CalibrationPixels) < calibrate.MinPoints {
		return fmt.Errorf("%w: need at least %d calibration points, got %d",
			calibrate.ErrInsufficientCorrespondence, calibrate.MinPoints, len(r.CalibrationPixels))
	}
	grid := tiling.Grid{FOVSize: r.FOVSize, OverlapX: r.OverlapX, OverlapY: r.OverlapY}
	return grid.Validate()
}

// RegionPlan is the tiling of one annotated region.
type RegionPlan struct {
	Label     string             `json:"label"`
	SectionID int64              `json:"section_id"`
	Region    annotation.Region  `json:"region"`
	StageMin  geometry.Point2D   `json:"stage_min"`
	StageMax  geometry.Point2D   `json:"stage_max"`
	Grid      tiling.Grid        `json:"grid"`
	FOVs      []tiling.FOV       `json:"fovs"`
	FOVPixels []geometry.Point2D `json:"fov_pixels"`
}

// Result is the output of one registration run.
type Result struct {
	Warped    *image.RGBA
	Field     *warp.Field
	Regions   []annotation.Region
	Transform calibrate.Transform
	Inverse   calibrate.Transform

	// CalibrationRMS is the fit residual in stage microns.
	CalibrationRMS float64

	Plans []RegionPlan

	// FOVs concatenates every plan's tiles in region order. FOVPixels holds
	// their centres mapped back to optical pixels.
	FOVs      []tiling.FOV
	FOVPixels []geometry.Point2D
}

// Options configures a run.
type Options struct {
	// Logger receives stage summaries. Nil disables logging.
	Logger *log.Logger
}

// Run executes every stage of the registration. Structural failures stop the
// run and are returned wrapped with the failing stage.
func Run(req Request, opts Options) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	logf := func(format string, args ...interface{}) {
		if opts.Logger != nil {
			opts.Logger.Printf(format, args...)
		}
	}

	size := req.OpticalSize
	if size.X == 0 || size.Y == 0 {
		size = req.Histology.Bounds().Size()
	}
	histology, err := imaging.ResizeTo(req.Histology, size.X, size.Y)
	if err != nil {
		return nil, fmt.Errorf("resize: %w", err)
	}

	start := time.Now()
	warped, field, err := warp.Align(histology, req.Landmarks, req.Warp)
	if err != nil {
		return nil, fmt.Errorf("warp: %w", err)
	}
	logf("warp: %dx%d grid, %d landmarks, %d singular, %d clamped, %v",
		field.Cols, field.Rows, req.Landmarks.Len(), field.SingularCells, field.ClampedCells, time.Since(start))

	regions, err := annotation.Extract(warped, len(req.Labels), req.Annotation)
	if err != nil {
		return nil, fmt.Errorf("annotation: %w", err)
	}
	logf("annotation: %d regions ordered by %s", len(regions), req.Annotation.Order)

	transform, err := calibrate.Fit(req.CalibrationPixels, req.CalibrationStage)
	if err != nil {
		return nil, fmt.Errorf("calibrate: %w", err)
	}
	inverse, err := calibrate.Invert(transform)
	if err != nil {
		return nil, fmt.Errorf("calibrate: %w", err)
	}
	rms := calibrate.RMSError(transform, req.CalibrationPixels, req.CalibrationStage)
	logf("calibrate: %d points, rms %.3f, round trip %.2g", len(req.CalibrationPixels), rms,
		calibrate.RoundTripError(transform, inverse))

	result := &Result{
		Warped:         warped,
		Field:          field,
		Regions:        regions,
		Transform:      transform,
		Inverse:        inverse,
		CalibrationRMS: rms,
		Plans:          make([]RegionPlan, 0, len(regions)),
	}

	for i, region := range regions {
		plan, err := planRegion(req, req.Labels[i], region, transform, inverse)
		if err != nil {
			return nil, fmt.Errorf("tile %q: %w", req.Labels[i], err)
		}
		logf("tile %s: %dx%d fovs of %g", plan.Label, plan.Grid.CountX, plan.Grid.CountY, plan.Grid.FOVSize)
		result.Plans = append(result.Plans, plan)
		result.FOVs = append(result.FOVs, plan.FOVs...)
		result.FOVPixels = append(result.FOVPixels, plan.FOVPixels...)
	}

	return result, nil
}

func planRegion(req Request, label string, region annotation.Region, transform, inverse calibrate.Transform) (RegionPlan, error) {
	stageMin := transform.Apply(region.MinCorner())
	stageMax := transform.Apply(region.MaxCorner())

	countX, countY, err := tiling.GridCounts(stageMin, stageMax, req.FOVSize)
	if err != nil {
		return RegionPlan{}, err
	}

	grid := tiling.Grid{
		Origin:   tiling.Origin(stageMin, req.FOVSize),
		CountX:   countX,
		CountY:   countY,
		FOVSize:  req.FOVSize,
		OverlapX: req.OverlapX,
		OverlapY: req.OverlapY,
	}
	fovs, err := tiling.Tile(grid, label)
	if err != nil {
		return RegionPlan{}, err
	}

	sectionID := req.Sections[label]
	pixels := make([]geometry.Point2D, len(fovs))
	for i := range fovs {
		fovs[i].SectionID = sectionID
		fovs[i].SlideID = req.SlideID
		pixels[i] = inverse.Apply(fovs[i].Center())
	}

	return RegionPlan{
		Label:     label,
		SectionID: sectionID,
		Region:    region,
		StageMin:  stageMin,
		StageMax:  stageMax,
		Grid:      grid,
		FOVs:      fovs,
		FOVPixels: pixels,
	}, nil
}
