package firmware

import (
	"sort"
	"sync"

	"caprand/core"
	"caprand/tinycompress"
)

// Dictionary describes the firmware to the host: version, constants,
// message ids and enumerations, as zlib-wrapped JSON served in chunks by
// the identify command
type Dictionary struct {
	mu            sync.RWMutex
	reg           *Registry
	version       string
	buildVersions string
	constants     map[string]string
	enumerations  map[string][]string
	cached        []byte
}

// NewDictionary returns a dictionary listing the messages of reg
func NewDictionary(reg *Registry) *Dictionary {
	return &Dictionary{
		reg:           reg,
		version:       "caprand-unknown",
		buildVersions: "go-tinygo",
		constants:     make(map[string]string),
		enumerations:  make(map[string][]string),
	}
}

// SetVersion sets the firmware version string
func (d *Dictionary) SetVersion(v string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version = v
	d.cached = nil
}

// SetBuildVersions sets the toolchain description
func (d *Dictionary) SetBuildVersions(v string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buildVersions = v
	d.cached = nil
}

// AddConstant publishes a string or integer constant
func (d *Dictionary) AddConstant(name string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = valueToString(value)
	d.cached = nil
}

// AddEnumeration publishes names for the values 0..len(values)-1. Empty
// names are left out.
func (d *Dictionary) AddEnumeration(name string, values []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v := make([]string, len(values))
	copy(v, values)
	d.enumerations[name] = v
	d.cached = nil
}

// Build caches the compressed dictionary. Call after every message and
// constant is registered.
func (d *Dictionary) Build() {
	msgs := d.reg.Messages()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.cached = tinycompress.Store(d.jsonLocked(msgs))
	core.DebugPrintln("[DICT] built, " + core.Itoa(len(d.cached)) + " bytes")
}

// Data returns the compressed dictionary, building it if needed
func (d *Dictionary) Data() []byte {
	d.mu.RLock()
	c := d.cached
	d.mu.RUnlock()
	if c == nil {
		d.Build()
		d.mu.RLock()
		c = d.cached
		d.mu.RUnlock()
	}
	return c
}

// JSON returns the uncompressed dictionary
func (d *Dictionary) JSON() []byte {
	msgs := d.reg.Messages()
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.jsonLocked(msgs)
}

// Chunk returns up to count bytes of the compressed dictionary from offset
func (d *Dictionary) Chunk(offset uint32, count uint8) []byte {
	data := d.Data()
	if offset >= uint32(len(data)) {
		return nil
	}
	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}
	out := make([]byte, end-offset)
	copy(out, data[offset:end])
	return out
}

func (d *Dictionary) jsonLocked(msgs []*Command) []byte {
	b := make([]byte, 0, 1024)
	b = append(b, `{"version":`...)
	b = appendQuoted(b, d.version)
	b = append(b, `,"build_versions":`...)
	b = appendQuoted(b, d.buildVersions)

	b = append(b, `,"config":{`...)
	for i, name := range sortedKeys(d.constants) {
		if i > 0 {
			b = append(b, ',')
		}
		b = appendQuoted(b, name)
		b = append(b, ':')
		b = appendQuoted(b, d.constants[name])
	}

	b = append(b, `},"commands":{`...)
	b = appendMessages(b, msgs, false)
	b = append(b, `},"responses":{`...)
	b = appendMessages(b, msgs, true)
	b = append(b, '}')

	if len(d.enumerations) > 0 {
		b = append(b, `,"enumerations":{`...)
		names := make([]string, 0, len(d.enumerations))
		for name := range d.enumerations {
			names = append(names, name)
		}
		sort.Strings(names)
		for i, name := range names {
			if i > 0 {
				b = append(b, ',')
			}
			b = appendQuoted(b, name)
			b = append(b, ":{"...)
			first := true
			for v, s := range d.enumerations[name] {
				if s == "" {
					continue
				}
				if !first {
					b = append(b, ',')
				}
				first = false
				b = appendQuoted(b, s)
				b = append(b, ':')
				b = append(b, core.Itoa(v)...)
			}
			b = append(b, '}')
		}
		b = append(b, '}')
	}
	return append(b, '}')
}

// appendMessages writes "signature":id pairs in id order
func appendMessages(b []byte, msgs []*Command, responses bool) []byte {
	first := true
	for _, c := range msgs {
		if c.IsResponse() != responses {
			continue
		}
		if !first {
			b = append(b, ',')
		}
		first = false
		b = appendQuoted(b, c.Signature())
		b = append(b, ':')
		b = append(b, core.Itoa(int(c.ID))...)
	}
	return b
}

func appendQuoted(b []byte, s string) []byte {
	b = append(b, '"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '"' || c == '\\':
			b = append(b, '\\', c)
		case c < 0x20:
			b = append(b, `\u00`...)
			b = append(b, "0123456789abcdef"[c>>4], "0123456789abcdef"[c&0xF])
		default:
			b = append(b, c)
		}
	}
	return append(b, '"')
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func valueToString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return core.Itoa(x)
	case int32:
		return core.Itoa(int(x))
	case uint8:
		return core.Utoa(uint32(x))
	case uint16:
		return core.Utoa(uint32(x))
	case uint32:
		return core.Utoa(x)
	case bool:
		if x {
			return "1"
		}
		return "0"
	}
	return ""
}
