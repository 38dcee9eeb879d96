package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorDedupIdempotence(t *testing.T) {
	agg := NewAggregator(1, PageExpectation{Counts: map[CodeType]int{CodeTypeQR: 1}})

	hit := DetectionHit{Type: CodeTypeQR, Value: "ticket-42", Box: BoundingBox{X: 10, Y: 10, Width: 50, Height: 50}}
	assert.True(t, agg.Merge(hit))

	// Merging the same (type, value) N more times changes nothing.
	for i := 0; i < 5; i++ {
		assert.False(t, agg.Merge(hit))
	}
	assert.Equal(t, 1, agg.FoundCount(CodeTypeQR))
}

func TestAggregatorFirstSeenWins(t *testing.T) {
	agg := NewAggregator(1, PageExpectation{})

	agg.Merge(DetectionHit{Type: CodeTypeQR, Value: "v", Box: BoundingBox{X: 10, Y: 10, Width: 50, Height: 50}})
	agg.Merge(DetectionHit{Type: CodeTypeQR, Value: "v", Box: BoundingBox{X: 999, Y: 999, Width: 1, Height: 1}})

	result := agg.Finalize()
	require.Len(t, result.Codes, 1)
	assert.Equal(t, BoundingBox{X: 10, Y: 10, Width: 50, Height: 50}, result.Codes[0].Box, "position must not be overwritten")
}

func TestAggregatorIgnoresPositionOnlyHits(t *testing.T) {
	agg := NewAggregator(1, PageExpectation{Counts: map[CodeType]int{CodeTypeQR: 1}})
	assert.False(t, agg.Merge(DetectionHit{Type: CodeTypeQR, Box: BoundingBox{X: 1, Y: 1, Width: 10, Height: 10}}))
	assert.Equal(t, 0, agg.FoundCount(CodeTypeQR))
	assert.False(t, agg.IsComplete())
}

func TestAggregatorSameValueDifferentTypesAreDistinct(t *testing.T) {
	agg := NewAggregator(1, PageExpectation{})
	assert.True(t, agg.Merge(DetectionHit{Type: CodeTypeQR, Value: "12345"}))
	assert.True(t, agg.Merge(DetectionHit{Type: CodeTypeBarcode, Value: "12345"}))
	assert.Equal(t, 2, agg.HitCount())
}

func TestAggregatorCompleteness(t *testing.T) {
	testCases := []struct {
		name     string
		expected PageExpectation
		merges   []DetectionHit
		complete bool
	}{
		{
			name:     "empty expectation is trivially complete",
			expected: PageExpectation{},
			complete: true,
		},
		{
			name:     "presence-only satisfied by one value",
			expected: PageExpectation{Counts: map[CodeType]int{CodeTypeQR: 0}},
			merges:   []DetectionHit{{Type: CodeTypeQR, Value: "a"}},
			complete: true,
		},
		{
			name:     "exact count needs distinct values",
			expected: PageExpectation{Counts: map[CodeType]int{CodeTypeBarcode: 2}},
			merges: []DetectionHit{
				{Type: CodeTypeBarcode, Value: "a"},
				{Type: CodeTypeBarcode, Value: "a"},
			},
			complete: false,
		},
		{
			name:     "exact count met",
			expected: PageExpectation{Counts: map[CodeType]int{CodeTypeBarcode: 2}},
			merges: []DetectionHit{
				{Type: CodeTypeBarcode, Value: "a"},
				{Type: CodeTypeBarcode, Value: "b"},
			},
			complete: true,
		},
		{
			name:     "all types must be satisfied",
			expected: PageExpectation{Counts: map[CodeType]int{CodeTypeQR: 1, CodeTypeBarcode: 1}},
			merges:   []DetectionHit{{Type: CodeTypeQR, Value: "a"}},
			complete: false,
		},
		{
			name:     "exceeding the expected count is complete",
			expected: PageExpectation{Counts: map[CodeType]int{CodeTypeQR: 1}},
			merges: []DetectionHit{
				{Type: CodeTypeQR, Value: "a"},
				{Type: CodeTypeQR, Value: "b"},
			},
			complete: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			agg := NewAggregator(1, tc.expected)
			for _, hit := range tc.merges {
				agg.Merge(hit)
			}
			assert.Equal(t, tc.complete, agg.IsComplete())
		})
	}
}

func TestAggregatorMonotonicNonDecrease(t *testing.T) {
	agg := NewAggregator(1, PageExpectation{})

	values := []string{"a", "b", "a", "c", "b", "d"}
	prev := 0
	for _, v := range values {
		agg.Merge(DetectionHit{Type: CodeTypeQR, Value: v})
		assert.GreaterOrEqual(t, agg.HitCount(), prev, "found set must never shrink")
		prev = agg.HitCount()
	}
	assert.Equal(t, 4, agg.HitCount())
}

func TestAggregatorFinalizeIdempotent(t *testing.T) {
	agg := NewAggregator(3, PageExpectation{Counts: map[CodeType]int{CodeTypeQR: 1}})
	agg.Merge(DetectionHit{Type: CodeTypeQR, Value: "a", Box: BoundingBox{X: 5, Y: 5, Width: 20, Height: 20}})
	agg.RecordAttempt(ScaleAttempt{Scale: 1.0, Phase: PhaseDetect})
	agg.RecordAttempt(ScaleAttempt{Scale: 2.0, Phase: PhaseROI})

	first := agg.Finalize()
	second := agg.Finalize()
	assert.Equal(t, first, second)

	// Snapshots are isolated from each other.
	first.Attempts[0].Scale = 99.0
	assert.Equal(t, 1.0, second.Attempts[0].Scale)

	assert.Equal(t, 3, first.PageNumber)
	assert.True(t, first.Complete)
	assert.Len(t, first.Attempts, 2)
}

func TestPageExpectationRequired(t *testing.T) {
	e := PageExpectation{Counts: map[CodeType]int{CodeTypeQR: 0, CodeTypeBarcode: 3}}
	assert.Equal(t, 1, e.Required(CodeTypeQR), "zero count means presence only")
	assert.Equal(t, 3, e.Required(CodeTypeBarcode))
	assert.Equal(t, 0, e.Required("OTHER"))
	assert.Equal(t, 4, e.TotalRequired())
	assert.False(t, e.Empty())
	assert.True(t, PageExpectation{}.Empty())
}
