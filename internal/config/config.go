// Package config loads server settings from a TOML file with environment
// overrides.
//
// A missing file is not an error: every key has a default matching the
// acquisition setup (alpha 1, 400/800 micron FOVs, 10% overlap). Slides are
// listed as [[slides]] tables and serve as the section lookup for
// registration runs.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"github.com/ironsheep/he-fov-mcp/internal/annotation"
	"github.com/ironsheep/he-fov-mcp/internal/tiling"
	"github.com/ironsheep/he-fov-mcp/internal/warp"
)

// Environment variables read by FromEnv.
const (
	EnvConfigPath = "HE_FOV_CONFIG"
	EnvAlpha      = "HE_FOV_ALPHA"
	EnvFOVSize    = "HE_FOV_FOV_SIZE"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full server configuration.
type Config struct {
	Warp       WarpConfig       `toml:"warp"`
	Annotation AnnotationConfig `toml:"annotation"`
	Tiling     TilingConfig     `toml:"tiling"`
	Slides     []Slide          `toml:"slides"`
}

// WarpConfig holds MLS engine parameters.
type WarpConfig struct {
	Alpha   float64 `toml:"alpha"`
	Eps     float64 `toml:"eps"`
	Workers int     `toml:"workers"`
}

// AnnotationConfig holds the marker threshold and region order.
type AnnotationConfig struct {
	RedMin    uint8  `toml:"red_min"`
	GreenMin  uint8  `toml:"green_min"`
	BlueMax   uint8  `toml:"blue_max"`
	OrderAxis string `toml:"order_axis"`
}

// TilingConfig holds FOV sizes in microns and overlap fractions.
type TilingConfig struct {
	FOVSizes       []int   `toml:"fov_sizes"`
	DefaultFOVSize int     `toml:"default_fov_size"`
	OverlapX       float64 `toml:"overlap_x"`
	OverlapY       float64 `toml:"overlap_y"`
}

// Slide maps one tracker slide to its id and section ids by position name.
type Slide struct {
	TrackerID string           `toml:"tracker_id"`
	SlideID   int64            `toml:"slide_id"`
	Sections  map[string]int64 `toml:"sections"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Warp: WarpConfig{Alpha: 1.0, Eps: 1e-8},
		Annotation: AnnotationConfig{
			RedMin:    annotation.DefaultThreshold.RedMin,
			GreenMin:  annotation.DefaultThreshold.GreenMin,
			BlueMax:   annotation.DefaultThreshold.BlueMax,
			OrderAxis: annotation.OrderByColumn.String(),
		},
		Tiling: TilingConfig{
			FOVSizes:       []int{400, 800},
			DefaultFOVSize: 400,
			OverlapX:       0.1,
			OverlapY:       0.1,
		},
	}
}

// DefaultPath returns ~/.he-fov/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".he-fov", "config.toml"), nil
}

// Load reads the file at path over the defaults. An empty path uses
// DefaultPath. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path: %w", err)
		}
		path = p
	}

	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	if err := Decode(f, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads TOML from r into cfg. Unknown keys are rejected so typos
// surface instead of silently keeping the default.
func Decode(r io.Reader, cfg *Config) error {
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

// Write encodes cfg as TOML.
func (c *Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// FromEnv loads the file named by HE_FOV_CONFIG, applies the environment
// overrides and validates the result.
func FromEnv() (*Config, error) {
	cfg, err := Load(os.Getenv(EnvConfigPath))
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides the MLS alpha and default FOV size from the
// environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAlpha); ok && v != "" {
		alpha, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvAlpha, v, err)
		}
		c.Warp.Alpha = alpha
	}
	if v, ok := lookup(EnvFOVSize); ok && v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvFOVSize, v, err)
		}
		c.Tiling.DefaultFOVSize = size
	}
	return nil
}

// Validate checks parameter ranges and slide table consistency.
func (c *Config) Validate() error {
	if err := c.WarpOptions().Validate(); err != nil {
		return fmt.Errorf("%w: warp: %v", ErrInvalidConfig, err)
	}
	if c.Warp.Workers < 0 {
		return fmt.Errorf("%w: warp workers must not be negative", ErrInvalidConfig)
	}
	if _, err := annotation.ParseOrderAxis(c.Annotation.OrderAxis); err != nil {
		return fmt.Errorf("%w: annotation: %v", ErrInvalidConfig, err)
	}
	if err := tiling.ValidateOverlap(c.Tiling.OverlapX); err != nil {
		return fmt.Errorf("%w: tiling overlap_x: %v", ErrInvalidConfig, err)
	}
	if err := tiling.ValidateOverlap(c.Tiling.OverlapY); err != nil {
		return fmt.Errorf("%w: tiling overlap_y: %v", ErrInvalidConfig, err)
	}
	if len(c.Tiling.FOVSizes) == 0 {
		return fmt.Errorf("%w: tiling fov_sizes is empty", ErrInvalidConfig)
	}
	for _, s := range c.Tiling.FOVSizes {
		if s <= 0 {
			return fmt.Errorf("%w: tiling fov size %d must be positive", ErrInvalidConfig, s)
		}
	}
	if !c.AllowsFOVSize(c.Tiling.DefaultFOVSize) {
		return fmt.Errorf("%w: default fov size %d not in %v", ErrInvalidConfig, c.Tiling.DefaultFOVSize, c.Tiling.FOVSizes)
	}

	trackers := make(map[string]bool, len(c.Slides))
	ids := make(map[int64]bool, len(c.Slides))
	for _, s := range c.Slides {
		if s.TrackerID == "" {
			return fmt.Errorf("%w: slide %d has no tracker_id", ErrInvalidConfig, s.SlideID)
		}
		if trackers[s.TrackerID] {
			return fmt.Errorf("%w: duplicate tracker_id %q", ErrInvalidConfig, s.TrackerID)
		}
		if ids[s.SlideID] {
			return fmt.Errorf("%w: duplicate slide_id %d", ErrInvalidConfig, s.SlideID)
		}
		trackers[s.TrackerID] = true
		ids[s.SlideID] = true
	}
	return nil
}

// AllowsFOVSize reports whether size is one of the configured FOV sizes.
func (c *Config) AllowsFOVSize(size int) bool {
	for _, s := range c.Tiling.FOVSizes {
		if s == size {
			return true
		}
	}
	return false
}

// WarpOptions converts the warp section to engine options.
func (c *Config) WarpOptions() warp.Options {
	return warp.Options{Alpha: c.Warp.Alpha, Eps: c.Warp.Eps, Workers: c.Warp.Workers}
}

// AnnotationOptions converts the annotation section to extractor options.
func (c *Config) AnnotationOptions() (annotation.Options, error) {
	axis, err := annotation.ParseOrderAxis(c.Annotation.OrderAxis)
	if err != nil {
		return annotation.Options{}, err
	}
	return annotation.Options{
		Threshold: annotation.Threshold{
			RedMin:   c.Annotation.RedMin,
			GreenMin: c.Annotation.GreenMin,
			BlueMax:  c.Annotation.BlueMax,
		},
		Order: axis,
	}, nil
}
