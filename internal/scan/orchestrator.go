/**
 * Scan Orchestrator - Drives the per-page phase state machine
 *
 * Phases: detection pass -> ROI construction -> ROI decode ladder ->
 * full-page fallback ladder. Transitions are strictly forward; phases
 * 2-4 are skippable only by completeness. The orchestrator owns no state
 * beyond one page's lifetime and performs no I/O beyond the two
 * capability calls.
 */

package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"log"
	"time"
)

// ErrNoCodesFound marks a page whose terminal phase ended with zero hits
// while the expectation demanded at least one. The PageResult is still
// returned alongside it.
var ErrNoCodesFound = errors.New("scan: no codes found on page")

// PageRenderer is the rasterization capability the pipeline consumes.
// Page numbers are 1-based. A failed render for one attempt is treated
// like a failed decode: the ladder advances.
type PageRenderer interface {
	RenderPage(ctx context.Context, pageNumber int, scale float64, rotated bool) (*PageImage, error)
}

// Decoder is the raw decode capability. "Nothing found" is an empty
// slice, never an error; an error signals a malformed or unreadable
// image buffer and is recovered per-attempt. Hit boxes are reported
// relative to the top-left of the image regardless of its Bounds origin.
type Decoder interface {
	Decode(ctx context.Context, img image.Image) ([]DetectionHit, error)
}

// Scanner scans single pages. Safe for concurrent use across pages as
// long as the renderer and decoder are; all per-page state is local to
// one ScanPage call.
type Scanner struct {
	renderer PageRenderer
	decoder  Decoder
	cfg      LadderConfig
}

// NewScanner creates a scanner over the two capabilities
func NewScanner(renderer PageRenderer, decoder Decoder, cfg LadderConfig) (*Scanner, error) {
	if renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if decoder == nil {
		return nil, fmt.Errorf("decoder is required")
	}
	if cfg.MaxScale <= 0 {
		cfg = DefaultLadderConfig()
	}
	return &Scanner{renderer: renderer, decoder: decoder, cfg: cfg}, nil
}

// ScanPage runs the four-phase pipeline for one page and returns its
// aggregate result. The result is always returned; ErrNoCodesFound
// accompanies it when the terminal phase produced zero hits against a
// non-empty expectation.
func (s *Scanner) ScanPage(ctx context.Context, pageNumber int, expected PageExpectation) (*PageResult, error) {
	startTime := time.Now()
	agg := NewAggregator(pageNumber, expected)

	// Phase 1: detection pass at a fixed low magnification. Its purpose
	// is to locate candidate positions; decoded values are merged
	// opportunistically.
	log.Printf("[Page %d] Phase 1: detection pass at scale %.2f", pageNumber, s.cfg.DetectScale)
	detectAttempt := ScaleAttempt{Scale: s.cfg.DetectScale, Phase: PhaseDetect}
	agg.RecordAttempt(detectAttempt)

	hits := s.decodeFullPage(ctx, pageNumber, detectAttempt, agg)
	log.Printf("[Page %d] Detection pass found %d candidate(s)", pageNumber, len(hits))

	if ShouldStop(agg.IsComplete()) {
		return s.finish(pageNumber, agg, startTime)
	}

	// Phase 2: ROI construction from all detection-phase hits
	regions := BuildRegions(hits)
	log.Printf("[Page %d] Phase 2: built %d region(s) from %d hit(s)", pageNumber, len(regions), len(hits))

	// Phase 3: ROI decode ladder, ascending magnification, regions in
	// descending priority. Skipped entirely when detection produced no
	// regions; the orchestrator proceeds directly to fallback.
	if len(regions) > 0 {
		if s.decodeRegions(ctx, pageNumber, regions, agg) {
			return s.finish(pageNumber, agg, startTime)
		}
	}

	// Phase 4: full-page fallback ladder, entered only without
	// completeness
	log.Printf("[Page %d] Phase 4: fallback full-page ladder (rotation=%v)", pageNumber, s.cfg.Rotation)
	ladder := NewFallbackLadder(s.cfg)
	for {
		attempt, ok := ladder.Next()
		if !ok {
			break
		}
		agg.RecordAttempt(attempt)
		s.decodeFullPage(ctx, pageNumber, attempt, agg)
		if ShouldStop(agg.IsComplete()) {
			break
		}
	}

	return s.finish(pageNumber, agg, startTime)
}

// decodeRegions runs the ROI ladder over the region list. Returns true
// when completeness was reached. The page is re-rendered once per scale
// level; regions are cropped from that single render.
func (s *Scanner) decodeRegions(ctx context.Context, pageNumber int, regions []Region, agg *Aggregator) bool {
	ladder := NewROILadder(s.cfg)
	for {
		attempt, ok := ladder.Next()
		if !ok {
			return false
		}
		agg.RecordAttempt(attempt)

		page, err := s.renderer.RenderPage(ctx, pageNumber, attempt.Scale, false)
		if err != nil {
			// Non-fatal: rasterization failure for one scale advances
			// the ladder.
			log.Printf("[Page %d] WARNING: render failed at ROI scale %.2f: %v", pageNumber, attempt.Scale, err)
			continue
		}

		for _, region := range regions {
			box := region.Box.Scaled(s.cfg.DetectScale, attempt.Scale)
			crop, cropRect := cropImage(page.Image, box)
			if crop == nil {
				continue
			}

			hits, err := s.decoder.Decode(ctx, crop)
			if err != nil {
				log.Printf("[Page %d] WARNING: decode failed for region %d at scale %.2f: %v",
					pageNumber, region.Priority, attempt.Scale, err)
				continue
			}

			for _, hit := range hits {
				// Hit positions are crop-local at the attempt scale;
				// normalize back to detection-scale page coordinates.
				hit.Box.X += cropRect.Min.X
				hit.Box.Y += cropRect.Min.Y
				hit.Box = hit.Box.Scaled(attempt.Scale, s.cfg.DetectScale)
				if agg.Merge(hit) {
					log.Printf("[Page %d] ROI hit: type=%s value=%q scale=%.2f", pageNumber, hit.Type, hit.Value, attempt.Scale)
				}
				// Re-check after every merge so a mid-ladder match
				// short-circuits the remaining regions at this scale.
				if ShouldStop(agg.IsComplete()) {
					return true
				}
			}
		}

		if ShouldStop(agg.IsComplete()) {
			return true
		}
	}
}

// decodeFullPage renders and decodes the whole page for one attempt,
// merging every hit. Returns the raw hit list (including position-only
// hits) for the detection phase to seed the region builder.
func (s *Scanner) decodeFullPage(ctx context.Context, pageNumber int, attempt ScaleAttempt, agg *Aggregator) []DetectionHit {
	page, err := s.renderer.RenderPage(ctx, pageNumber, attempt.Scale, attempt.Rotated)
	if err != nil {
		log.Printf("[Page %d] WARNING: render failed (scale=%.2f rotated=%v): %v",
			pageNumber, attempt.Scale, attempt.Rotated, err)
		return nil
	}

	hits, err := s.decoder.Decode(ctx, page.Image)
	if err != nil {
		log.Printf("[Page %d] WARNING: decode failed (scale=%.2f rotated=%v): %v",
			pageNumber, attempt.Scale, attempt.Rotated, err)
		return nil
	}

	for i := range hits {
		if attempt.Rotated {
			hits[i].Box = unrotateBox(hits[i].Box, page.Width, page.Height)
		}
		hits[i].Box = hits[i].Box.Scaled(attempt.Scale, s.cfg.DetectScale)
		if agg.Merge(hits[i]) {
			log.Printf("[Page %d] %s hit: type=%s value=%q scale=%.2f rotated=%v",
				pageNumber, attempt.Phase, hits[i].Type, hits[i].Value, attempt.Scale, attempt.Rotated)
		}
		if ShouldStop(agg.IsComplete()) {
			break
		}
	}

	return hits
}

// finish freezes the aggregate into the terminal page result
func (s *Scanner) finish(pageNumber int, agg *Aggregator, startTime time.Time) (*PageResult, error) {
	result := agg.Finalize()
	result.Duration = time.Since(startTime)

	log.Printf("[Page %d] Scan finished: codes=%d complete=%v attempts=%d in %v",
		pageNumber, len(result.Codes), result.Complete, len(result.Attempts), result.Duration)

	if len(result.Codes) == 0 && !agg.expected.Empty() {
		return result, ErrNoCodesFound
	}
	return result, nil
}

// unrotateBox maps a box found on a 180-degree rotated image back to
// upright page coordinates
func unrotateBox(box BoundingBox, width, height int) BoundingBox {
	return BoundingBox{
		X:      width - box.X - box.Width,
		Y:      height - box.Y - box.Height,
		Width:  box.Width,
		Height: box.Height,
	}
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// cropImage extracts a region from a rendered page, clamped to the image
// bounds. The returned rectangle is the clamped region actually cropped;
// the image is nil when the clamped region is empty.
func cropImage(img image.Image, box BoundingBox) (image.Image, image.Rectangle) {
	rect := image.Rect(box.X, box.Y, box.Right(), box.Bottom()).Intersect(img.Bounds())
	if rect.Empty() {
		return nil, rect
	}
	if si, ok := img.(subImager); ok {
		return si.SubImage(rect), rect
	}
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out, rect
}
