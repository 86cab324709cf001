package core

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// FuncSIO is the function-select value routing a pad to single-cycle IO
const FuncSIO uint8 = 5

// PadConfig is a snapshot of the electrical configuration of one IO pad
type PadConfig struct {
	Schmitt     bool  // Schmitt trigger on the input buffer
	InputEnable bool  // Input buffer enabled
	PullDown    bool  // Pull-down resistor enabled
	PullUp      bool  // Pull-up resistor enabled
	Function    uint8 // Function select (FuncSIO for software IO)
	SyncBypass  bool  // Input synchronizer bypassed
}

// PadDriver reads and writes pad configuration.
// Register read-modify-write is treated as infallible, so neither method
// returns an error.
type PadDriver interface {
	// ReadPad returns the live configuration of the pin's pad
	ReadPad(pin GPIOPin) PadConfig

	// WritePad replaces the live configuration of the pin's pad
	WritePad(pin GPIOPin, cfg PadConfig)
}
