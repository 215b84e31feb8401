package config

import (
	"errors"
	"fmt"

	"github.com/ironsheep/he-fov-mcp/internal/pipeline"
)

// Ensure SlideTable implements the section lookup.
var _ pipeline.SectionLookup = (*SlideTable)(nil)

// ErrUnknownSlide is returned when no slide matches an id or tracker id.
var ErrUnknownSlide = errors.New("unknown slide")

// SlideTable indexes the configured slides. It is read-only after
// construction and safe for concurrent use.
type SlideTable struct {
	byID      map[int64]Slide
	byTracker map[string]Slide
}

// NewSlideTable indexes slides by slide id and tracker id.
func NewSlideTable(slides []Slide) *SlideTable {
	t := &SlideTable{
		byID:      make(map[int64]Slide, len(slides)),
		byTracker: make(map[string]Slide, len(slides)),
	}
	for _, s := range slides {
		t.byID[s.SlideID] = s
		t.byTracker[s.TrackerID] = s
	}
	return t
}

// Len returns the number of slides.
func (t *SlideTable) Len() int {
	return len(t.byID)
}

// ByTracker returns the slide registered under a tracker id.
func (t *SlideTable) ByTracker(trackerID string) (Slide, error) {
	s, ok := t.byTracker[trackerID]
	if !ok {
		return Slide{}, fmt.Errorf("%w: tracker id %q", ErrUnknownSlide, trackerID)
	}
	return s, nil
}

// SectionID returns the id of the section at position on the slide.
func (t *SlideTable) SectionID(slideID int64, position string) (int64, error) {
	s, ok := t.byID[slideID]
	if !ok {
		return 0, fmt.Errorf("%w: slide id %d", ErrUnknownSlide, slideID)
	}
	id, ok := s.Sections[position]
	if !ok {
		return 0, fmt.Errorf("%w %q on slide %d", pipeline.ErrUnknownSection, position, slideID)
	}
	return id, nil
}
