/**
 * Retry Controller - Scale ladders and the stop/continue decision
 *
 * Owns the two retry sequences (ROI ladder, fallback ladder) as ordered,
 * monotonically increasing scale attempts bounded by the configured
 * min/initial/max scale, and the single early-exit predicate.
 */

package scan

// LadderConfig bounds the retry sequences. Scales are positive rational
// magnification factors; MaxScale is a hard ceiling.
type LadderConfig struct {
	MinScale     float64 // lower bound, also used to sanity-check InitialScale
	InitialScale float64 // first ROI/fallback magnification
	MaxScale     float64 // hard ceiling: exceeding it is exhaustion, not an error
	ScaleStep    float64 // additive step between ladder entries
	DetectScale  float64 // fixed low magnification for the detection pass
	Rotation     bool    // fallback ladder doubles into 180-degree variants
}

// DefaultLadderConfig matches the tuned production ladder
func DefaultLadderConfig() LadderConfig {
	return LadderConfig{
		MinScale:     1.0,
		InitialScale: 2.0,
		MaxScale:     9.0,
		ScaleStep:    1.5,
		DetectScale:  1.0,
		Rotation:     true,
	}
}

// Ladder is an ordered sequence of scale attempts consumed through a
// cursor; no attempt is ever repeated.
type Ladder struct {
	attempts []ScaleAttempt
	cursor   int
}

// NewROILadder builds the ascending ladder used for cropped-region
// decoding. ROI attempts are never rotated: rotation only pays off on
// full pages where the decoder sees the whole quiet zone.
func NewROILadder(cfg LadderConfig) *Ladder {
	attempts := make([]ScaleAttempt, 0)
	for _, s := range ladderScales(cfg) {
		attempts = append(attempts, ScaleAttempt{Scale: s, Phase: PhaseROI})
	}
	return &Ladder{attempts: attempts}
}

// NewFallbackLadder builds the ascending full-page ladder. When rotation
// is enabled each scale doubles into original-then-rotated, in that
// order, before the ladder moves to the next scale.
func NewFallbackLadder(cfg LadderConfig) *Ladder {
	attempts := make([]ScaleAttempt, 0)
	for _, s := range ladderScales(cfg) {
		attempts = append(attempts, ScaleAttempt{Scale: s, Phase: PhaseFallback})
		if cfg.Rotation {
			attempts = append(attempts, ScaleAttempt{Scale: s, Rotated: true, Phase: PhaseFallback})
		}
	}
	return &Ladder{attempts: attempts}
}

// ladderScales produces the monotonically increasing scale sequence from
// InitialScale to MaxScale inclusive
func ladderScales(cfg LadderConfig) []float64 {
	start := cfg.InitialScale
	if start < cfg.MinScale {
		start = cfg.MinScale
	}
	step := cfg.ScaleStep
	if step <= 0 {
		step = 1.0
	}

	scales := make([]float64, 0)
	for s := start; s <= cfg.MaxScale+1e-9; s += step {
		scales = append(scales, s)
	}
	return scales
}

// Next advances the cursor and returns the next attempt. The second
// return value is false once the ladder is exhausted.
func (l *Ladder) Next() (ScaleAttempt, bool) {
	if l.cursor >= len(l.attempts) {
		return ScaleAttempt{}, false
	}
	attempt := l.attempts[l.cursor]
	l.cursor++
	return attempt, true
}

// Exhausted reports whether every attempt has been consumed
func (l *Ladder) Exhausted() bool { return l.cursor >= len(l.attempts) }

// Len returns the total number of attempts in the ladder
func (l *Ladder) Len() int { return len(l.attempts) }

// ShouldStop is the single early-exit predicate: true iff the aggregator
// reports full completeness for the page's expectation. It is re-evaluated
// after every individual merge, not only at ladder boundaries, so a
// mid-ladder match exits immediately.
func ShouldStop(complete bool) bool { return complete }
