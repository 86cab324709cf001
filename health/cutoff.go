package health

import "math"

// RepetitionCutoff returns C = 1 + ceil(alphaLog2 / h): the run length a
// source with min-entropy h per sample reaches with probability at most
// 2^-alphaLog2.
func RepetitionCutoff(h float64, alphaLog2 int) int {
	if h <= 0 {
		return math.MaxInt32
	}
	// The epsilon keeps exact quotients such as 20/0.1 from rounding up.
	return 1 + int(math.Ceil(float64(alphaLog2)/h-1e-9))
}

// AdaptiveProportionCutoff returns C = 1 + CRITBINOM(window, 2^-h, 1-2^-alphaLog2),
// the smallest count the most likely value exceeds within a window with
// probability at most 2^-alphaLog2.
func AdaptiveProportionCutoff(window int, h float64, alphaLog2 int) int {
	p := math.Exp2(-h)
	alpha := math.Exp2(-float64(alphaLog2))
	if p >= 1 {
		return window
	}

	lw, _ := math.Lgamma(float64(window + 1))
	lp := math.Log(p)
	lq := math.Log1p(-p)

	// Walk down from the top, tail = P(X > k). Summing the small terms
	// first keeps the tail accurate near alpha.
	tail := 0.0
	for k := window; k >= 0; k-- {
		if tail > alpha {
			return k + 2
		}
		lk, _ := math.Lgamma(float64(k + 1))
		lnk, _ := math.Lgamma(float64(window - k + 1))
		tail += math.Exp(lw - lk - lnk + float64(k)*lp + float64(window-k)*lq)
	}
	return 1
}
