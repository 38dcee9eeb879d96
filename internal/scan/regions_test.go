package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRegionsEmptyInput(t *testing.T) {
	assert.Empty(t, BuildRegions(nil))
	assert.Empty(t, BuildRegions([]DetectionHit{}))
}

func TestBuildRegionsDeterministic(t *testing.T) {
	hits := []DetectionHit{
		{Type: CodeTypeQR, Box: BoundingBox{X: 400, Y: 50, Width: 80, Height: 80}},
		{Type: CodeTypeBarcode, Value: "4006381333931", Box: BoundingBox{X: 60, Y: 700, Width: 200, Height: 60}},
		{Type: CodeTypeQR, Value: "ticket-0317", Box: BoundingBox{X: 40, Y: 40, Width: 90, Height: 90}},
	}

	first := BuildRegions(hits)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, BuildRegions(hits))
	}
}

func TestBuildRegionsPadding(t *testing.T) {
	testCases := []struct {
		name string
		hit  DetectionHit
		want BoundingBox
	}{
		{
			name: "qr pads 15 percent each side",
			hit:  DetectionHit{Type: CodeTypeQR, Box: BoundingBox{X: 100, Y: 100, Width: 100, Height: 100}},
			want: BoundingBox{X: 85, Y: 85, Width: 130, Height: 130},
		},
		{
			name: "barcode pads wider horizontally for the quiet zone",
			hit:  DetectionHit{Type: CodeTypeBarcode, Box: BoundingBox{X: 200, Y: 200, Width: 100, Height: 40}},
			want: BoundingBox{X: 150, Y: 190, Width: 200, Height: 60},
		},
		{
			name: "padding clamps at the page origin",
			hit:  DetectionHit{Type: CodeTypeQR, Box: BoundingBox{X: 5, Y: 5, Width: 100, Height: 100}},
			want: BoundingBox{X: 0, Y: 0, Width: 120, Height: 120},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			regions := BuildRegions([]DetectionHit{tc.hit})
			require.Len(t, regions, 1)
			assert.Equal(t, tc.want, regions[0].Box)
			assert.Equal(t, tc.hit.Type, regions[0].TypeHint)
		})
	}
}

func TestBuildRegionsMergesSameTypeOverlap(t *testing.T) {
	// Padded boxes overlap by well over one pixel.
	hits := []DetectionHit{
		{Type: CodeTypeQR, Box: BoundingBox{X: 100, Y: 100, Width: 100, Height: 100}},
		{Type: CodeTypeQR, Box: BoundingBox{X: 180, Y: 100, Width: 100, Height: 100}},
	}

	regions := BuildRegions(hits)
	require.Len(t, regions, 1)
	assert.Equal(t, BoundingBox{X: 85, Y: 85, Width: 210, Height: 130}, regions[0].Box)
}

func TestBuildRegionsMinimalOverlapMerges(t *testing.T) {
	// After padding (15 pixels each side) the first box ends at x=215
	// and the second starts at x=214: a single pixel of overlap.
	hits := []DetectionHit{
		{Type: CodeTypeQR, Box: BoundingBox{X: 100, Y: 100, Width: 100, Height: 100}},
		{Type: CodeTypeQR, Box: BoundingBox{X: 229, Y: 100, Width: 100, Height: 100}},
	}

	regions := BuildRegions(hits)
	assert.Len(t, regions, 1)
}

func TestBuildRegionsNeverMergesAcrossTypes(t *testing.T) {
	// Identical boxes, different type hints: decoded with different
	// expectations, so they must stay separate.
	hits := []DetectionHit{
		{Type: CodeTypeQR, Box: BoundingBox{X: 100, Y: 100, Width: 100, Height: 100}},
		{Type: CodeTypeBarcode, Box: BoundingBox{X: 100, Y: 100, Width: 100, Height: 100}},
	}

	regions := BuildRegions(hits)
	assert.Len(t, regions, 2)
}

func TestBuildRegionsMergeChainCollapses(t *testing.T) {
	// a overlaps b, b overlaps c, a does not overlap c directly. All
	// three must still end up in a single region.
	hits := []DetectionHit{
		{Type: CodeTypeQR, Box: BoundingBox{X: 100, Y: 100, Width: 100, Height: 100}},
		{Type: CodeTypeQR, Box: BoundingBox{X: 190, Y: 100, Width: 100, Height: 100}},
		{Type: CodeTypeQR, Box: BoundingBox{X: 280, Y: 100, Width: 100, Height: 100}},
	}

	regions := BuildRegions(hits)
	assert.Len(t, regions, 1)
}

func TestBuildRegionsPriorityOrdering(t *testing.T) {
	hits := []DetectionHit{
		// Position-only hit in the top-left corner.
		{Type: CodeTypeQR, Box: BoundingBox{X: 10, Y: 10, Width: 50, Height: 50}},
		// Decoded hit far down the page: still first, a decoded value
		// marks a likely true positive.
		{Type: CodeTypeBarcode, Value: "73513537", Box: BoundingBox{X: 10, Y: 900, Width: 200, Height: 50}},
		// Second position-only hit to the right of the first, same row.
		{Type: CodeTypeBarcode, Box: BoundingBox{X: 600, Y: 10, Width: 200, Height: 50}},
	}

	regions := BuildRegions(hits)
	require.Len(t, regions, 3)

	assert.Equal(t, CodeTypeBarcode, regions[0].TypeHint)
	assert.Equal(t, 900-pct(50, barcodePaddingPctVertical), regions[0].Box.Y, "decoded hit ordered first")
	assert.Less(t, regions[1].Box.X, regions[2].Box.X, "position-only hits follow reading order")

	for i, region := range regions {
		assert.Equal(t, i, region.Priority)
	}
}
