package core

import "sync"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// Event captures an entropy source event for post-mortem analysis
type Event struct {
	Type   uint8  // Event type code
	Pin    uint8  // Sampled pin
	Clock  uint32 // System clock at event
	Value1 uint32 // Context-dependent value
	Value2 uint32 // Context-dependent value
}

// Event type codes
const (
	EvtCalibrationCandidate = 1 // v1=low_cycles v2=max bucket
	EvtCalibrated           = 2 // v1=low_cycles v2=max bucket
	EvtHealthFailure        = 3 // v1=failures so far v2=validated samples discarded
	EvtHealthExhausted      = 4 // v1=failures v2=samples hashed
	EvtTimingOverflow       = 5 // v1=low_cycles
	EvtCapacitorRange       = 6 // v1=measurement v2=0 too small, 1 too large
	EvtSeeded               = 7 // v1=validated samples v2=samples hashed
	EvtNotSeeded            = 8
)

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Event ring buffer (non-blocking, for post-mortem)
	eventMu       sync.Mutex
	eventRing     [EventRingSize]Event
	eventRingHead uint8
	eventSink     func(Event)

	// Async debug output channel
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// SetEventSink registers a callback invoked for every recorded event.
// Pass nil to remove it.
func SetEventSink(sink func(Event)) {
	eventMu.Lock()
	eventSink = sink
	eventMu.Unlock()
}

// InitAsyncDebug starts the async debug output goroutine
// Call this from main() after SetDebugWriter
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go debugOutputWorker()
}

// debugOutputWorker runs in background, drains debug channel
func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if !debugEnabled || debugPrintln == nil {
		return
	}
	if debugChan != nil {
		DebugAsync(msg)
		return
	}
	debugPrintln(msg)
}

// DebugAsync queues a debug message for async output (non-blocking)
// Returns immediately even if channel is full (drops message)
func DebugAsync(msg string) {
	if debugChan != nil {
		select {
		case debugChan <- msg:
		default:
		}
	}
}

// RecordEvent stores an event in the ring, hands it to the sink and logs it
func RecordEvent(eventType uint8, pin GPIOPin, value1, value2 uint32) {
	evt := Event{
		Type:   eventType,
		Pin:    uint8(pin),
		Clock:  GetTime(),
		Value1: value1,
		Value2: value2,
	}

	eventMu.Lock()
	idx := eventRingHead
	eventRing[idx] = evt
	eventRingHead = (idx + 1) % EventRingSize
	sink := eventSink
	eventMu.Unlock()

	if sink != nil {
		sink(evt)
	}
	DebugPrintln(FormatEvent(evt))
}

// Events returns the recorded events, oldest first
func Events() []Event {
	eventMu.Lock()
	defer eventMu.Unlock()

	out := make([]Event, 0, EventRingSize)
	start := eventRingHead
	for i := uint8(0); i < EventRingSize; i++ {
		evt := eventRing[(start+i)%EventRingSize]
		if evt.Type == 0 {
			continue // Empty slot
		}
		out = append(out, evt)
	}
	return out
}

// EventName returns the log tag of an event type
func EventName(eventType uint8) string {
	switch eventType {
	case EvtCalibrationCandidate:
		return "CAL_CANDIDATE"
	case EvtCalibrated:
		return "CALIBRATED"
	case EvtHealthFailure:
		return "HEALTH_FAIL"
	case EvtHealthExhausted:
		return "HEALTH_EXHAUSTED!"
	case EvtTimingOverflow:
		return "TIMING_OVERFLOW!"
	case EvtCapacitorRange:
		return "CAP_RANGE!"
	case EvtSeeded:
		return "SEEDED"
	case EvtNotSeeded:
		return "NOT_SEEDED"
	}
	return "UNKNOWN"
}

// FormatEvent renders an event as a single log line
func FormatEvent(evt Event) string {
	return "[CAPRAND] " + EventName(evt.Type) +
		" pin=" + Itoa(int(evt.Pin)) +
		" clock=" + Utoa(evt.Clock) +
		" v1=" + Utoa(evt.Value1) +
		" v2=" + Utoa(evt.Value2)
}

// DumpEvents outputs the event ring (call on shutdown/error)
func DumpEvents() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[CAPRAND] === Event Ring Dump ===")
	for _, evt := range Events() {
		debugPrintln(FormatEvent(evt))
	}
	debugPrintln("[CAPRAND] === End Dump ===")
}

// ClearEvents clears the event ring
func ClearEvents() {
	eventMu.Lock()
	defer eventMu.Unlock()
	for i := range eventRing {
		eventRing[i] = Event{}
	}
	eventRingHead = 0
}
