/**
 * Region Builder - Converts detection hits into search regions
 *
 * Each hit's bounding box is padded by a type-specific percentage,
 * overlapping boxes of the same type are merged, and the resulting
 * regions are ordered by decode priority.
 */

package scan

import (
	"sort"
)

// Padding percentages per code type, applied to every side of the hit box.
// QR codes localize well so they get tight margins; linear barcodes need
// extra horizontal slack to preserve the quiet zone.
const (
	qrPaddingPct              = 0.15
	barcodePaddingPctVertical = 0.25
	barcodePaddingPctHorizon  = 0.50
)

// BuildRegions converts detection-phase hits into padded, merged,
// priority-ordered search regions. Pure and deterministic for a given
// input ordering; an empty hit list yields an empty region list.
func BuildRegions(hits []DetectionHit) []Region {
	if len(hits) == 0 {
		return []Region{}
	}

	type candidate struct {
		box      BoundingBox // padded
		origin   BoundingBox // original hit box, for ordering
		typeHint CodeType
		decoded  bool
	}

	candidates := make([]candidate, 0, len(hits))
	for _, hit := range hits {
		candidates = append(candidates, candidate{
			box:      padBox(hit.Box, hit.Type),
			origin:   hit.Box,
			typeHint: hit.Type,
			decoded:  hit.HasValue(),
		})
	}

	// Merge overlapping padded boxes of the same type hint. Boxes of
	// different types are never merged even when overlapping: they will
	// be decoded with different expectations. Merging is run to a fixed
	// point so chains of pairwise overlaps collapse into one region.
	merged := true
	for merged {
		merged = false
		for i := 0; i < len(candidates); i++ {
			for j := i + 1; j < len(candidates); j++ {
				if candidates[i].typeHint != candidates[j].typeHint {
					continue
				}
				if !candidates[i].box.Intersects(candidates[j].box) {
					continue
				}
				candidates[i].box = candidates[i].box.Union(candidates[j].box)
				candidates[i].decoded = candidates[i].decoded || candidates[j].decoded
				// Keep the earliest origin in reading order as the
				// merged region's anchor.
				if readingOrderLess(candidates[j].origin, candidates[i].origin) {
					candidates[i].origin = candidates[j].origin
				}
				candidates = append(candidates[:j], candidates[j+1:]...)
				merged = true
				j--
			}
		}
	}

	// Priority ordering: regions derived from an already-decoded hit are
	// more likely to be true positives and go first; ties break by
	// reading order (top-to-bottom, left-to-right) of the original box.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].decoded != candidates[j].decoded {
			return candidates[i].decoded
		}
		return readingOrderLess(candidates[i].origin, candidates[j].origin)
	})

	regions := make([]Region, 0, len(candidates))
	for i, c := range candidates {
		regions = append(regions, Region{
			Box:      c.box,
			TypeHint: c.typeHint,
			Priority: i,
		})
	}

	return regions
}

// padBox expands a hit box by the type-specific percentage on every side,
// clamping negative origins to zero
func padBox(box BoundingBox, t CodeType) BoundingBox {
	var padX, padY int
	switch t {
	case CodeTypeBarcode:
		padX = pct(box.Width, barcodePaddingPctHorizon)
		padY = pct(box.Height, barcodePaddingPctVertical)
	default:
		padX = pct(box.Width, qrPaddingPct)
		padY = pct(box.Height, qrPaddingPct)
	}

	padded := BoundingBox{
		X:      box.X - padX,
		Y:      box.Y - padY,
		Width:  box.Width + 2*padX,
		Height: box.Height + 2*padY,
	}
	if padded.X < 0 {
		padded.Width += padded.X
		padded.X = 0
	}
	if padded.Y < 0 {
		padded.Height += padded.Y
		padded.Y = 0
	}
	return padded
}

func pct(v int, p float64) int {
	padded := int(float64(v) * p)
	if padded < 1 {
		padded = 1
	}
	return padded
}

// readingOrderLess orders boxes top-to-bottom then left-to-right. Boxes
// whose vertical centers fall within one another's height are treated as
// the same line so that small vertical jitter does not reorder a row.
func readingOrderLess(a, b BoundingBox) bool {
	aCenter := a.Y + a.Height/2
	bCenter := b.Y + b.Height/2
	if aCenter >= b.Y && aCenter < b.Bottom() || bCenter >= a.Y && bCenter < a.Bottom() {
		if a.X != b.X {
			return a.X < b.X
		}
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}
