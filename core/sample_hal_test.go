package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanPulseExact(t *testing.T) {
	for cycles := uint32(1); cycles <= 5000; cycles++ {
		p := PlanPulse(cycles)
		if p.Cycles() != cycles {
			t.Fatalf("PlanPulse(%d) = %+v lasts %d cycles", cycles, p, p.Cycles())
		}
		if p.Fill > 2 {
			t.Fatalf("PlanPulse(%d) uses %d filler instructions", cycles, p.Fill)
		}
	}
}

func TestPlanPulseShortForms(t *testing.T) {
	assert.Equal(t, Pulse{}, PlanPulse(1), "one cycle is back-to-back set/clear")
	assert.Equal(t, Pulse{Fill: 1}, PlanPulse(2))
	assert.Equal(t, Pulse{Loops: 1}, PlanPulse(3))
	assert.Equal(t, Pulse{Loops: 1, Fill: 1}, PlanPulse(4))
	assert.Equal(t, Pulse{Loops: 33, Fill: 1}, PlanPulse(100))
}

func TestPlanPulseZero(t *testing.T) {
	p := PlanPulse(0)
	assert.Equal(t, uint32(1), p.Cycles())
}
