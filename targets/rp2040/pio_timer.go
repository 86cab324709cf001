//go:build rp2040

package main

import (
	"machine"

	"caprand/core"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// PIO edge timer program. The host pushes a loop budget; the state machine
// counts it down two cycles per iteration until the jmp pin reads high and
// pushes what is left. A budget that runs out pushes 0xffffffff.
//
//	0: pull block
//	1: out x, 32
//	2: jmp pin 4
//	3: jmp x-- 2
//	4: mov isr, x
//	5: push block
func buildEdgeTimerProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),                      // 0: pull block
		asm.Out(rp2pio.OutDestX, 32).Encode(),               // 1: out x, 32
		asm.Jmp(4, rp2pio.JmpPinInput).Encode(),             // 2: jmp pin 4
		asm.Jmp(2, rp2pio.JmpXNZeroDec).Encode(),            // 3: jmp x-- 2
		asm.Mov(rp2pio.MovDestISR, rp2pio.MovSrcX).Encode(), // 4: mov isr, x
		asm.Push(false, true).Encode(),                      // 5: push block
		// .wrap
	}
}

const (
	edgeTimerOrigin = 0 // Jump targets above are absolute
	edgeTimerBudget = 1 << 23
	edgeTimerWrap   = 0xffffffff
)

// PIOEdgeTimer is a core.CycleTimer that measures the time until the
// capacitor pin reads high. It runs beside the SIO read loop and does not
// claim the pin, so the pad stays on the SIO function.
type PIOEdgeTimer struct {
	pio *rp2pio.PIO
	sm  rp2pio.StateMachine
}

// NewPIOEdgeTimer loads the program on PIO0 state machine 0 and points its
// jmp pin at pin
func NewPIOEdgeTimer(pin core.GPIOPin) (*PIOEdgeTimer, error) {
	t := &PIOEdgeTimer{pio: rp2pio.PIO0}
	t.sm = t.pio.StateMachine(0)
	t.sm.TryClaim()

	program := buildEdgeTimerProgram()
	offset, err := t.pio.AddProgram(program, edgeTimerOrigin)
	if err != nil {
		return nil, err
	}

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetJmpPin(machine.Pin(pin))
	cfg.SetOutShift(true, false, 32)
	cfg.SetInShift(false, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	cfg.SetClkDivIntFrac(1, 0) // Core clock

	t.sm.Init(offset, cfg)
	t.sm.SetEnabled(true)
	return t, nil
}

// Start hands the state machine a fresh budget
func (t *PIOEdgeTimer) Start() {
	t.sm.TxPut(edgeTimerBudget)
}

// Elapsed blocks until the state machine reports and returns core clock
// cycles since Start
func (t *PIOEdgeTimer) Elapsed() (uint32, error) {
	for t.sm.IsRxFIFOEmpty() {
	}
	left := t.sm.RxGet()
	if left == edgeTimerWrap {
		return 2 * edgeTimerBudget, core.ErrTimingOverflow
	}
	return 2 * (edgeTimerBudget - left), nil
}
