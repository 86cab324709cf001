package serial

import (
	"errors"
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

// USB ids TinyGo uses for the Raspberry Pi Pico
const (
	PicoVID = "2E8A"
	PicoPID = "000A"
)

var ErrNoDevice = errors.New("serial: no caprand device found")

// PortInfo describes one candidate port
type PortInfo struct {
	Name         string
	VID          string
	PID          string
	Product      string
	SerialNumber string
}

// Matches reports whether the port carries the given USB ids. Empty ids
// match anything.
func (p PortInfo) Matches(vid, pid string) bool {
	return (vid == "" || strings.EqualFold(p.VID, vid)) &&
		(pid == "" || strings.EqualFold(p.PID, pid))
}

// Discover lists USB serial ports whose ids match vid and pid
func Discover(vid, pid string) ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerating ports: %w", err)
	}
	return filterPorts(ports, vid, pid), nil
}

func filterPorts(ports []*enumerator.PortDetails, vid, pid string) []PortInfo {
	var found []PortInfo
	for _, p := range ports {
		if p == nil || !p.IsUSB || p.Name == "" {
			continue
		}
		info := PortInfo{
			Name:         p.Name,
			VID:          p.VID,
			PID:          p.PID,
			Product:      p.Product,
			SerialNumber: p.SerialNumber,
		}
		if info.Matches(vid, pid) {
			found = append(found, info)
		}
	}
	return found
}

// FindPort returns the first Pico port
func FindPort() (string, error) {
	ports, err := Discover(PicoVID, PicoPID)
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", ErrNoDevice
	}
	return ports[0].Name, nil
}
