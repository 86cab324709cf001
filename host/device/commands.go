package device

import (
	"caprand/core"
	"caprand/protocol"
)

// Status is the device's view of its generator
type Status struct {
	Seeded    bool
	Pin       uint32
	LowCycles uint32
	Validated uint32
	Hashed    uint32
	Failures  uint32
	Err       error // Last seeding failure
}

// Calibration is the outcome of a calibrate command
type Calibration struct {
	LowCycles  uint32
	MaxBucket  uint32
	MinEntropy float64 // Bits per sample
}

func statusFrom(args []byte) (Status, error) {
	v, _, err := decodeUints(args, 7)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Seeded:    v[0] != 0,
		Pin:       v[1],
		LowCycles: v[2],
		Validated: v[3],
		Hashed:    v[4],
		Failures:  v[5],
		Err:       CodeError(v[6]),
	}, nil
}

// Status reads the generator status
func (c *Client) Status() (Status, error) {
	args, err := c.call("get_status", "status", c.timeout, nil)
	if err != nil {
		return Status{}, err
	}
	return statusFrom(args)
}

// dataCall reads one error=%c data=%*s response
func (c *Client) dataCall(name, respName string, args func(protocol.OutputBuffer)) ([]byte, error) {
	resp, err := c.call(name, respName, c.timeout, args)
	if err != nil {
		return nil, err
	}
	code, err := protocol.DecodeVLQUint(&resp)
	if err != nil {
		return nil, err
	}
	data, err := protocol.DecodeVLQBytes(&resp)
	if err != nil {
		return nil, err
	}
	return data, CodeError(code)
}

// Random reads n bytes from the device generator, one chunk per command
func (c *Client) Random(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		want := min(n-len(out), c.maxChunk)
		data, err := c.dataCall("get_random", "random_data", func(o protocol.OutputBuffer) {
			protocol.EncodeVLQUint(o, uint32(want))
		})
		if err != nil {
			return out, err
		}
		out = append(out, data...)
	}
	return out, nil
}

// Raw reads n raw samples taken with lowCycles. The first sample after a
// parameter change is the source's warm-up sample.
func (c *Client) Raw(lowCycles uint32, n int, timer bool) ([]byte, error) {
	t := uint32(0)
	if timer {
		t = 1
	}
	out := make([]byte, 0, n)
	for len(out) < n {
		want := min(n-len(out), c.maxChunk)
		data, err := c.dataCall("get_raw", "raw_data", func(o protocol.OutputBuffer) {
			protocol.EncodeVLQUint(o, lowCycles)
			protocol.EncodeVLQUint(o, uint32(want))
			protocol.EncodeVLQUint(o, t)
		})
		out = append(out, data...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// Calibrate sweeps lo..hi in step and returns the best forced-low time
func (c *Client) Calibrate(lo, hi, step uint32) (Calibration, error) {
	args, err := c.call("calibrate", "calibration", c.slowTimeout, func(o protocol.OutputBuffer) {
		protocol.EncodeVLQUint(o, lo)
		protocol.EncodeVLQUint(o, hi)
		protocol.EncodeVLQUint(o, step)
	})
	if err != nil {
		return Calibration{}, err
	}
	v, _, err := decodeUints(args, 4)
	if err != nil {
		return Calibration{}, err
	}
	res := Calibration{
		LowCycles:  v[1],
		MaxBucket:  v[2],
		MinEntropy: float64(v[3]) / 1000,
	}
	return res, CodeError(v[0])
}

// Reseed rebuilds the device generator. lowCycles 0 keeps the board
// default. A failed reseed leaves the previous generator in place and is
// reported in Status.Err.
func (c *Client) Reseed(lowCycles uint32, calibrate bool) (Status, error) {
	cal := uint32(0)
	if calibrate {
		cal = 1
	}
	args, err := c.call("reseed", "status", c.slowTimeout, func(o protocol.OutputBuffer) {
		protocol.EncodeVLQUint(o, lowCycles)
		protocol.EncodeVLQUint(o, cal)
	})
	if err != nil {
		return Status{}, err
	}
	return statusFrom(args)
}

// CheckCapacitor times a full recharge of the capacitor
func (c *Client) CheckCapacitor() (uint32, error) {
	args, err := c.call("check_capacitor", "capacitor", c.timeout, nil)
	if err != nil {
		return 0, err
	}
	v, _, err := decodeUints(args, 2)
	if err != nil {
		return 0, err
	}
	return v[1], CodeError(v[0])
}

// Events reads the device event ring, oldest first
func (c *Client) Events() ([]core.Event, error) {
	var events []core.Event
	for i := uint32(0); ; i++ {
		args, err := c.call("get_event", "event", c.timeout, func(o protocol.OutputBuffer) {
			protocol.EncodeVLQUint(o, i)
		})
		if err != nil {
			return events, err
		}
		v, _, err := decodeUints(args, 7)
		if err != nil {
			return events, err
		}
		if i >= v[1] {
			return events, nil
		}
		events = append(events, core.Event{
			Type:   uint8(v[2]),
			Pin:    uint8(v[3]),
			Clock:  v[4],
			Value1: v[5],
			Value2: v[6],
		})
	}
}

// Reset reboots the device; the port goes away with it
func (c *Client) Reset() error {
	return c.send("reset", nil)
}
