package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLadderConfig(rotation bool) LadderConfig {
	return LadderConfig{
		MinScale:     1.0,
		InitialScale: 2.0,
		MaxScale:     5.0,
		ScaleStep:    1.5,
		DetectScale:  1.0,
		Rotation:     rotation,
	}
}

func drain(l *Ladder) []ScaleAttempt {
	attempts := []ScaleAttempt{}
	for {
		a, ok := l.Next()
		if !ok {
			return attempts
		}
		attempts = append(attempts, a)
	}
}

func TestROILadderAscendingAndBounded(t *testing.T) {
	attempts := drain(NewROILadder(testLadderConfig(true)))
	require.NotEmpty(t, attempts)

	prev := 0.0
	for _, a := range attempts {
		assert.Greater(t, a.Scale, prev, "ladder must be monotonically increasing")
		assert.LessOrEqual(t, a.Scale, 5.0, "maxScale is a hard ceiling")
		assert.Equal(t, PhaseROI, a.Phase)
		assert.False(t, a.Rotated, "ROI attempts are never rotated")
		prev = a.Scale
	}
	assert.Equal(t, []float64{2.0, 3.5, 5.0}, scalesOf(attempts))
}

func TestFallbackLadderRotationDoubling(t *testing.T) {
	attempts := drain(NewFallbackLadder(testLadderConfig(true)))
	require.Len(t, attempts, 6)

	// Ordering decision: each scale doubles into original then rotated
	// before the ladder advances to the next scale.
	for i := 0; i < len(attempts); i += 2 {
		assert.Equal(t, attempts[i].Scale, attempts[i+1].Scale)
		assert.False(t, attempts[i].Rotated)
		assert.True(t, attempts[i+1].Rotated)
		assert.Equal(t, PhaseFallback, attempts[i].Phase)
	}
}

func TestFallbackLadderWithoutRotation(t *testing.T) {
	attempts := drain(NewFallbackLadder(testLadderConfig(false)))
	require.Len(t, attempts, 3)
	for _, a := range attempts {
		assert.False(t, a.Rotated)
	}
}

func TestLadderCursorNeverRepeats(t *testing.T) {
	ladder := NewFallbackLadder(testLadderConfig(true))
	seen := map[ScaleAttempt]bool{}
	for {
		a, ok := ladder.Next()
		if !ok {
			break
		}
		assert.False(t, seen[a], "attempt %v consumed twice", a)
		seen[a] = true
	}

	assert.True(t, ladder.Exhausted())
	_, ok := ladder.Next()
	assert.False(t, ok, "exhausted ladder must stay exhausted")
}

func TestLadderInitialBelowMinClamps(t *testing.T) {
	cfg := testLadderConfig(false)
	cfg.InitialScale = 0.5
	attempts := drain(NewROILadder(cfg))
	require.NotEmpty(t, attempts)
	assert.Equal(t, cfg.MinScale, attempts[0].Scale)
}

func TestLadderMaxScaleInclusive(t *testing.T) {
	cfg := testLadderConfig(false)
	cfg.InitialScale = 1.0
	cfg.MaxScale = 3.0
	cfg.ScaleStep = 1.0
	attempts := drain(NewROILadder(cfg))
	assert.Equal(t, []float64{1.0, 2.0, 3.0}, scalesOf(attempts))
}

func TestShouldStop(t *testing.T) {
	assert.True(t, ShouldStop(true))
	assert.False(t, ShouldStop(false))
}

func scalesOf(attempts []ScaleAttempt) []float64 {
	scales := make([]float64, 0, len(attempts))
	for _, a := range attempts {
		scales = append(scales, a.Scale)
	}
	return scales
}
