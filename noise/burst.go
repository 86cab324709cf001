package noise

import (
	"math/bits"

	"caprand/core"
)

// Combine folds a burst into a mask whose bit i is set when read i saw the
// pin high. Every read is rotated by its position and OR-ed in, then the
// result is rotated back by the pin index, so the work does not depend on
// the data.
func Combine(b core.Burst, pin core.GPIOPin) uint8 {
	mask := uint32(1) << (pin & 31)
	var acc uint32
	for i := 0; i < core.BurstLen; i++ {
		acc |= bits.RotateLeft32(b[i]&mask, i)
	}
	return uint8(bits.RotateLeft32(acc, -int(pin&31)))
}

// Position returns the burst position: the index of the earliest read that
// saw the pin high, or BurstLen when none did.
func Position(m uint8) int {
	p := bits.TrailingZeros8(m)
	if p > core.BurstLen {
		return core.BurstLen
	}
	return p
}
