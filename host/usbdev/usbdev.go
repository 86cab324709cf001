// Package usbdev checks for a caprand board on the USB bus through libusb,
// independent of whether the OS created a serial port for it.
package usbdev

import (
	"fmt"

	"github.com/google/gousb"
)

// Raspberry Pi vendor id and the TinyGo Pico product id
const (
	VendorID  gousb.ID = 0x2e8a
	ProductID gousb.ID = 0x000a
)

// Device describes one matching USB device
type Device struct {
	Bus     int
	Address int
	Vendor  gousb.ID
	Product gousb.ID
	Speed   gousb.Speed
}

func (d Device) String() string {
	return fmt.Sprintf("bus %03d addr %03d %s:%s (%s)", d.Bus, d.Address, d.Vendor, d.Product, d.Speed)
}

// Matcher selects descriptors
type Matcher func(desc *gousb.DeviceDesc) bool

// Pico matches the TinyGo Pico ids
func Pico(desc *gousb.DeviceDesc) bool {
	return desc.Vendor == VendorID && desc.Product == ProductID
}

// FromDesc converts a descriptor
func FromDesc(desc *gousb.DeviceDesc) Device {
	return Device{
		Bus:     desc.Bus,
		Address: desc.Address,
		Vendor:  desc.Vendor,
		Product: desc.Product,
		Speed:   desc.Speed,
	}
}

// Probe lists devices accepted by match. Nothing is opened; the descriptor
// walk is enough to tell whether the board enumerated.
func Probe(match Matcher) ([]Device, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	var found []Device
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if match(desc) {
			found = append(found, FromDesc(desc))
		}
		return false
	})
	for _, d := range devs {
		d.Close()
	}
	if err != nil {
		return found, fmt.Errorf("usb probe: %w", err)
	}
	return found, nil
}
