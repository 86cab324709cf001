package health

// AdaptiveProportionTest counts, per window, how often the window's first
// value recurs.
//
// The first feed of a window records the reference value. The test fails on
// the feed that brings the recurrence count to cutoff, so at most once per
// window. Counters reset every window feeds whatever the outcome.
type AdaptiveProportionTest struct {
	window  int
	cutoff  int
	first   uint8
	matches int
	pos     int
}

// NewAdaptiveProportionTest creates an adaptive proportion test
func NewAdaptiveProportionTest(window, cutoff int) *AdaptiveProportionTest {
	return &AdaptiveProportionTest{window: window, cutoff: cutoff}
}

// Test feeds one sample
func (t *AdaptiveProportionTest) Test(v uint8) error {
	failed := false
	if t.pos == 0 {
		t.first = v
		t.matches = 0
	} else if v == t.first {
		t.matches++
		failed = t.matches == t.cutoff
	}

	t.pos++
	if t.pos == t.window {
		t.pos = 0
		t.matches = 0
	}

	if failed {
		return ErrAdaptiveProportion
	}
	return nil
}

// Position returns how many samples of the current window were fed
func (t *AdaptiveProportionTest) Position() int {
	return t.pos
}

// Reset starts a fresh window
func (t *AdaptiveProportionTest) Reset() {
	t.pos = 0
	t.matches = 0
}
