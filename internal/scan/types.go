/**
 * Scan Types - Shared data structures for the page scan pipeline
 *
 * Common types used by the region builder, retry controller, result
 * aggregator and scan orchestrator.
 */

package scan

import (
	"image"
	"time"
)

// CodeType identifies the kind of machine-readable code
type CodeType string

const (
	CodeTypeQR      CodeType = "QR"
	CodeTypeBarcode CodeType = "BARCODE"
)

// Phase identifies which stage of the pipeline produced an attempt
type Phase string

const (
	PhaseDetect   Phase = "detect"
	PhaseROI      Phase = "roi"
	PhaseFallback Phase = "fallback"
)

// BoundingBox represents coordinates of a code or region on a page,
// expressed in pixels at the scale the image was rendered at
type BoundingBox struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Right returns the exclusive right edge of the box
func (b BoundingBox) Right() int { return b.X + b.Width }

// Bottom returns the exclusive bottom edge of the box
func (b BoundingBox) Bottom() int { return b.Y + b.Height }

// Intersects reports whether two boxes share a non-zero intersection area
func (b BoundingBox) Intersects(o BoundingBox) bool {
	return b.X < o.Right() && o.X < b.Right() && b.Y < o.Bottom() && o.Y < b.Bottom()
}

// Union returns the smallest box containing both boxes
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	x := minInt(b.X, o.X)
	y := minInt(b.Y, o.Y)
	r := maxInt(b.Right(), o.Right())
	bt := maxInt(b.Bottom(), o.Bottom())
	return BoundingBox{X: x, Y: y, Width: r - x, Height: bt - y}
}

// Scaled returns the box mapped from one render scale to another
func (b BoundingBox) Scaled(from, to float64) BoundingBox {
	if from == to || from == 0 {
		return b
	}
	f := to / from
	return BoundingBox{
		X:      int(float64(b.X) * f),
		Y:      int(float64(b.Y) * f),
		Width:  int(float64(b.Width) * f),
		Height: int(float64(b.Height) * f),
	}
}

// PageImage is an immutable rasterized page plus the render scale it was
// produced at. The pipeline never retains one past a single decode attempt.
type PageImage struct {
	Image   image.Image
	Width   int
	Height  int
	Scale   float64
	Rotated bool
}

// DetectionHit is one located (and possibly decoded) code.
// Value is empty for position-only hits from the detection pass.
type DetectionHit struct {
	Type  CodeType
	Value string
	Box   BoundingBox
}

// HasValue reports whether the hit carries a decoded value
func (h DetectionHit) HasValue() bool { return h.Value != "" }

// Region is a padded, merged search rectangle likely to contain one code.
// Regions are transient: rebuilt per page and never persisted.
type Region struct {
	Box      BoundingBox
	TypeHint CodeType
	Priority int
}

// ScaleAttempt is one point in the retry sequence
type ScaleAttempt struct {
	Scale   float64
	Rotated bool
	Phase   Phase
}

// CodeHit is a deduplicated (type, value) pair in a finished page result
type CodeHit struct {
	Type  CodeType
	Value string
	Box   BoundingBox
}

// PageResult is the aggregate outcome for one page
type PageResult struct {
	PageNumber  int
	Codes       []CodeHit
	Complete    bool
	Attempts    []ScaleAttempt
	Expectation PageExpectation
	Duration    time.Duration
}

// FoundCount returns the number of distinct values found for a code type
func (r *PageResult) FoundCount(t CodeType) int {
	n := 0
	for _, c := range r.Codes {
		if c.Type == t {
			n++
		}
	}
	return n
}

// PageExpectation describes which code types (and how many distinct values
// of each) must be present for a page to be considered complete.
// A zero count means "at least one" (presence only).
type PageExpectation struct {
	Counts map[CodeType]int
}

// Empty reports whether the expectation demands nothing
func (e PageExpectation) Empty() bool { return len(e.Counts) == 0 }

// Required returns the number of distinct values required for a type
func (e PageExpectation) Required(t CodeType) int {
	n, ok := e.Counts[t]
	if !ok {
		return 0
	}
	if n <= 0 {
		return 1
	}
	return n
}

// TotalRequired returns the sum of required distinct values across all types
func (e PageExpectation) TotalRequired() int {
	total := 0
	for t := range e.Counts {
		total += e.Required(t)
	}
	return total
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
