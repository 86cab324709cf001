package device

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Dictionary is the parsed firmware data dictionary
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]string         `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`
}

// ParseDictionary inflates and decodes the bytes served by identify
func ParseDictionary(data []byte) (*Dictionary, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("dictionary: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("dictionary: inflate: %w", err)
	}

	dict := &Dictionary{}
	if err := json.Unmarshal(raw, dict); err != nil {
		return nil, fmt.Errorf("dictionary: unmarshal: %w", err)
	}
	return dict, nil
}

// CommandID finds a command by name; the dictionary keys it by name and
// format
func (d *Dictionary) CommandID(name string) (uint16, bool) {
	return lookupName(d.Commands, name)
}

// ResponseID finds a response by name
func (d *Dictionary) ResponseID(name string) (uint16, bool) {
	return lookupName(d.Responses, name)
}

// ConstantUint returns a numeric config constant or def when absent
func (d *Dictionary) ConstantUint(name string, def uint32) uint32 {
	s, ok := d.Config[name]
	if !ok {
		return def
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return def
	}
	return uint32(v)
}

// EnumName returns the name of value in enumeration enum
func (d *Dictionary) EnumName(enum string, value int) string {
	for name, v := range d.Enumerations[enum] {
		if v == value {
			return name
		}
	}
	return strconv.Itoa(value)
}

func lookupName(msgs map[string]int, name string) (uint16, bool) {
	for sig, id := range msgs {
		if n, _, _ := strings.Cut(sig, " "); n == name {
			return uint16(id), true
		}
	}
	return 0, false
}
