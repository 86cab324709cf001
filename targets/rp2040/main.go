//go:build rp2040

package main

import (
	"machine"
	"time"

	"caprand/core"
	"caprand/firmware"
	"caprand/noise"
	"caprand/protocol"
)

var (
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport
	service      *firmware.Service

	msgerrors uint32

	usbWasDisconnected       bool
	consecutiveWriteFailures uint32
)

func main() {
	// Clear any watchdog state left by a previous reset
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()
	if debugUART {
		InitDebugUART()
	}
	UpdateSystemTime()

	service = firmware.NewService(boardConfig())

	// Seed before the host can ask for output. A failure is reported in
	// get_status and the host may retry with reseed.
	service.Seed()

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()

	transport = protocol.NewTransport(outputBuffer, service.Dispatch)
	transport.SetResetCallback(func() {
		inputBuffer.Reset()
		outputBuffer.Reset()
	})
	// ACKs go out before a handler's response
	transport.SetFlushCallback(func() {
		writeUSB()
	})
	service.SetSender(transport)

	service.SetResetHandler(func() {
		err = machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1})
		if err != nil {
			return
		}
		err = machine.Watchdog.Start()
		if err != nil {
			return
		}
		for {
			time.Sleep(1 * time.Millisecond)
		}
	})

	go usbReaderLoop()

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			UpdateSystemTime()

			if inputBuffer.Available() > 0 {
				data := inputBuffer.Data()
				originalLen := len(data)
				inputBuf := protocol.NewSliceInputBuffer(data)

				transport.Receive(inputBuf)

				consumed := originalLen - inputBuf.Available()
				if consumed > 0 {
					inputBuffer.Pop(consumed)
				}
			}

			if len(outputBuffer.Result()) > 0 {
				writeUSB()
			}

			// Only after the ACK of a reset command is out
			service.CheckPendingReset()
		}()

		time.Sleep(10 * time.Microsecond)
	}
}

// boardConfig builds the service configuration from config.go
func boardConfig() firmware.Config {
	drv := NewRPSampleDriver()
	cfg := firmware.Config{
		Driver:    drv,
		Pin:       capPin,
		LowCycles: lowCycles,
		MCU:       "rp2040",
	}
	if calibrateAtBoot {
		cfg.Candidates = noise.Candidates(sweepLow, sweepHigh, sweepStep)
	}
	cfg.CheckTimer = NewSysTickTimer()
	cfg.SkipSeedCheck = !checkCapacitor
	if timerMode {
		t, err := NewPIOEdgeTimer(capPin)
		if err != nil {
			core.DebugPrintln("[PIO] edge timer unavailable: " + err.Error())
		} else {
			cfg.Timer = t
		}
	}
	return cfg
}

// usbReaderLoop moves USB bytes into the input FIFO
func usbReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		if USBAvailable() > 0 {
			data, err := USBRead()
			if err != nil {
				msgerrors++
				time.Sleep(1 * time.Millisecond)
				continue
			}

			// Fresh host connection after a disconnect
			if usbWasDisconnected {
				usbWasDisconnected = false
				inputBuffer.Reset()
				outputBuffer.Reset()
				transport.Reset()
				consecutiveWriteFailures = 0
			}

			if inputBuffer.Write([]byte{data}) == 0 {
				msgerrors++
				time.Sleep(10 * time.Millisecond)
			}
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// writeUSB drains the output buffer to USB
func writeUSB() {
	result := outputBuffer.Result()
	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			// Likely a disconnect; drop stale data after repeated failures
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				usbWasDisconnected = true
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
				inputBuffer.Reset()
			}
			return
		}
		written += n
	}
	consecutiveWriteFailures = 0
	outputBuffer.Reset()
}
