package health

// RepetitionTest fails when the same value repeats cutoff times in a row
type RepetitionTest struct {
	cutoff int
	prev   uint8
	count  int
}

// NewRepetitionTest creates a repetition count test
func NewRepetitionTest(cutoff int) *RepetitionTest {
	return &RepetitionTest{cutoff: cutoff}
}

// Test feeds one sample. A run of length L passes while L < cutoff.
func (t *RepetitionTest) Test(v uint8) error {
	if t.count > 0 && v == t.prev {
		t.count++
	} else {
		t.prev = v
		t.count = 1
	}
	if t.count >= t.cutoff {
		return ErrRepetition
	}
	return nil
}

// Run returns the length of the current run
func (t *RepetitionTest) Run() int {
	return t.count
}

// Reset forgets the current run
func (t *RepetitionTest) Reset() {
	t.count = 0
}
