/**
 * Result Aggregator - Deduplicates and merges hits across phases/scales
 *
 * Builds one per-page result incrementally, tracking completeness against
 * the page's expected-codes structure. The dedup key is (type, value);
 * first-seen wins and found-counts count distinct values, never attempts.
 */

package scan

type hitKey struct {
	t CodeType
	v string
}

// Aggregator accumulates decode hits for a single page. Not safe for
// concurrent use; each page owns its own instance.
type Aggregator struct {
	expected PageExpectation
	seen     map[hitKey]DetectionHit
	order    []hitKey
	attempts []ScaleAttempt
	page     int
}

// NewAggregator creates an aggregator for one page against its expectation
func NewAggregator(page int, expected PageExpectation) *Aggregator {
	return &Aggregator{
		expected: expected,
		seen:     make(map[hitKey]DetectionHit),
		page:     page,
	}
}

// Merge records a decoded hit. A hit without a value, or with an
// already-seen (type, value) key, is a no-op: it does not increment the
// found-count and does not overwrite the first-seen position. Returns
// true when the hit was new.
func (a *Aggregator) Merge(hit DetectionHit) bool {
	if !hit.HasValue() {
		return false
	}
	key := hitKey{t: hit.Type, v: hit.Value}
	if _, dup := a.seen[key]; dup {
		return false
	}
	a.seen[key] = hit
	a.order = append(a.order, key)
	return true
}

// RecordAttempt appends a consumed scale attempt to the page's log
func (a *Aggregator) RecordAttempt(attempt ScaleAttempt) {
	a.attempts = append(a.attempts, attempt)
}

// FoundCount returns the number of distinct values seen for a type
func (a *Aggregator) FoundCount(t CodeType) int {
	n := 0
	for key := range a.seen {
		if key.t == t {
			n++
		}
	}
	return n
}

// HitCount returns the total number of distinct hits merged so far
func (a *Aggregator) HitCount() int { return len(a.seen) }

// IsComplete reports whether, for every expected code type, the number of
// distinct values found meets or exceeds the expected count. An empty
// expectation is trivially complete.
func (a *Aggregator) IsComplete() bool {
	for t := range a.expected.Counts {
		if a.FoundCount(t) < a.expected.Required(t) {
			return false
		}
	}
	return true
}

// Finalize returns a snapshot of the aggregate state. Idempotent and
// side-effect-free: repeated calls return equivalent results.
func (a *Aggregator) Finalize() *PageResult {
	codes := make([]CodeHit, 0, len(a.order))
	for _, key := range a.order {
		hit := a.seen[key]
		codes = append(codes, CodeHit{Type: hit.Type, Value: hit.Value, Box: hit.Box})
	}

	attempts := make([]ScaleAttempt, len(a.attempts))
	copy(attempts, a.attempts)

	return &PageResult{
		PageNumber:  a.page,
		Codes:       codes,
		Complete:    a.IsComplete(),
		Attempts:    attempts,
		Expectation: a.expected,
	}
}
