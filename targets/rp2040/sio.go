//go:build rp2040

package main

/*
#include <stdint.h>

#define SIO_GPIO_IN      0xd0000004u
#define SIO_GPIO_OUT_CLR 0xd0000018u
#define SIO_GPIO_OE_SET  0xd0000024u
#define SIO_GPIO_OE_CLR  0xd0000028u

// SIO stores and loads take one cycle, so the pin is low from the OE_SET
// store to the OE_CLR store for exactly the planned number of cycles.
#define PULSE_LOOP(fill)                                   \
	__asm__ volatile(                                      \
		"str %[mask], [%[set]]\n"                          \
		"1: subs %[k], #1\n"                               \
		"bne 1b\n"                                         \
		fill                                               \
		"str %[mask], [%[clr]]\n"                          \
		: [k] "+l" (k)                                     \
		: [mask] "l" (mask), [set] "l" (set), [clr] "l" (clr) \
		: "cc", "memory")

#define PULSE_FLAT(fill)                                   \
	__asm__ volatile(                                      \
		"str %[mask], [%[set]]\n"                          \
		fill                                               \
		"str %[mask], [%[clr]]\n"                          \
		:                                                  \
		: [mask] "l" (mask), [set] "l" (set), [clr] "l" (clr) \
		: "memory")

static void caprand_pulse_low(uint32_t mask, uint32_t loops, uint32_t fill) {
	volatile uint32_t *set = (volatile uint32_t *)SIO_GPIO_OE_SET;
	volatile uint32_t *clr = (volatile uint32_t *)SIO_GPIO_OE_CLR;
	uint32_t k = loops;

	if (loops == 0) {
		if (fill == 0) {
			PULSE_FLAT("");
		} else {
			PULSE_FLAT("nop\n");
		}
		return;
	}
	switch (fill) {
	case 0:
		PULSE_LOOP("");
		break;
	case 1:
		PULSE_LOOP("nop\n");
		break;
	default:
		PULSE_LOOP("nop\nnop\n");
		break;
	}
}

// Five back-to-back loads, then test the last one. One iteration is 8
// cycles with the loads at offsets 0 to 4.
static void caprand_read_rise(uint32_t mask, uint32_t *out) {
	volatile uint32_t *in = (volatile uint32_t *)SIO_GPIO_IN;
	uint32_t x0, x1, x2, x3, x4;

	__asm__ volatile(
		"1: ldr %[x0], [%[in]]\n"
		"ldr %[x1], [%[in]]\n"
		"ldr %[x2], [%[in]]\n"
		"ldr %[x3], [%[in]]\n"
		"ldr %[x4], [%[in]]\n"
		"tst %[x4], %[mask]\n"
		"beq 1b\n"
		: [x0] "=&l" (x0), [x1] "=&l" (x1), [x2] "=&l" (x2),
		  [x3] "=&l" (x3), [x4] "=&l" (x4)
		: [in] "l" (in), [mask] "l" (mask)
		: "cc", "memory");

	out[0] = x0;
	out[1] = x1;
	out[2] = x2;
	out[3] = x3;
	out[4] = x4;
}
*/
import "C"

import (
	"runtime/volatile"
	"unsafe"

	"caprand/core"
)

const sioBase = 0xd0000000

var sioOutClr = (*volatile.Register32)(unsafe.Pointer(uintptr(sioBase + 0x018)))

// PulseLow implements core.SampleDriver. The output latch is cleared first
// so enabling the output driver pulls the pin low.
func (d *RPSampleDriver) PulseLow(pin core.GPIOPin, cycles uint32) {
	mask := uint32(1) << pin
	sioOutClr.Set(mask)
	p := core.PlanPulse(cycles)
	C.caprand_pulse_low(C.uint32_t(mask), C.uint32_t(p.Loops), C.uint32_t(p.Fill))
}

// ReadRise implements core.SampleDriver
func (d *RPSampleDriver) ReadRise(pin core.GPIOPin) core.Burst {
	var raw [core.BurstLen]C.uint32_t
	C.caprand_read_rise(C.uint32_t(uint32(1)<<pin), &raw[0])

	var b core.Burst
	for i, v := range raw {
		b[i] = uint32(v)
	}
	return b
}
