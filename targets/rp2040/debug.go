//go:build rp2040

package main

import (
	"machine"

	"caprand/core"
)

var debugPort *machine.UART

// InitDebugUART routes core debug output to UART1 on GPIO4 (TX) and
// GPIO5 (RX) at 115200 baud
func InitDebugUART() {
	debugPort = machine.UART1
	err := debugPort.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GPIO4,
		RX:       machine.GPIO5,
	})
	if err != nil {
		debugPort = nil
		return
	}

	core.SetDebugWriter(func(s string) {
		debugPort.Write([]byte(s))
		debugPort.Write([]byte("\r\n"))
	})
	core.SetDebugEnabled(true)
	core.DebugPrintln("=== caprand debug UART ===")
}
