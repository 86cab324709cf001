package noise

import (
	"math"
	"math/bits"
)

// Histogram counts raw sample values
type Histogram [256]uint32

// Add counts one value
func (h *Histogram) Add(v uint8) {
	h[v]++
}

// Total returns the number of values counted
func (h *Histogram) Total() uint64 {
	var t uint64
	for _, c := range h {
		t += uint64(c)
	}
	return t
}

// Max returns the largest bucket count
func (h *Histogram) Max() uint32 {
	var m uint32
	for _, c := range h {
		if c > m {
			m = c
		}
	}
	return m
}

// Mode returns the most frequent value, the smallest one on ties
func (h *Histogram) Mode() uint8 {
	var (
		m    uint32
		mode uint8
	)
	for v, c := range h {
		if c > m {
			m = c
			mode = uint8(v)
		}
	}
	return mode
}

// MinEntropy estimates -log2(max probability) in bits per sample.
// An empty histogram reports 0.
func (h *Histogram) MinEntropy() float64 {
	total := h.Total()
	if total == 0 {
		return 0
	}
	return -math.Log2(float64(h.Max()) / float64(total))
}

// ChiSquare returns the chi-square statistic of the counts against a uniform
// distribution over all 256 values (255 degrees of freedom)
func (h *Histogram) ChiSquare() float64 {
	total := h.Total()
	if total == 0 {
		return 0
	}
	expected := float64(total) / 256
	var chi float64
	for _, c := range h {
		d := float64(c) - expected
		chi += d * d / expected
	}
	return chi
}

// AddBytes counts every byte of p
func (h *Histogram) AddBytes(p []byte) {
	for _, b := range p {
		h[b]++
	}
}

// LsbHistogram counts the position of the lowest set bit of timer values.
// Bucket 32 counts zero.
type LsbHistogram [33]uint32

// Add counts one value
func (h *LsbHistogram) Add(v uint32) {
	h[bits.TrailingZeros32(v)]++
}
