// Package capture records device output to disk: raw sample or random byte
// streams in .bin/.csv pairs, and histogram reports for offline analysis.
package capture

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mode is what a capture reads from the device
type Mode string

const (
	ModeRaw    Mode = "raw"
	ModeRandom Mode = "rand"
)

// Validate checks whether m is a known mode
func (m Mode) Validate() error {
	if m == ModeRaw || m == ModeRandom {
		return nil
	}
	return fmt.Errorf("invalid mode: %q (allowed: raw, rand)", string(m))
}

// Session identifies one capture run
type Session struct {
	ID        uuid.UUID
	Started   time.Time
	Mode      Mode
	LowCycles uint32 // Raw captures only
	Interval  time.Duration
}

// NewSession validates the parameters and assigns a fresh id
func NewSession(now time.Time, mode Mode, lowCycles uint32, interval time.Duration) (*Session, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	return &Session{
		ID:        uuid.New(),
		Started:   now,
		Mode:      mode,
		LowCycles: lowCycles,
		Interval:  interval,
	}, nil
}

// BaseName builds the file name stem:
//
//	YYYYMMDDTHHMMSS_{mode}[_l{lowCycles}]_i{interval ms}_{id prefix}
func (s *Session) BaseName() string {
	var b strings.Builder
	b.WriteString(s.Started.Format("20060102T150405"))
	b.WriteString("_" + string(s.Mode))
	if s.Mode == ModeRaw {
		fmt.Fprintf(&b, "_l%d", s.LowCycles)
	}
	fmt.Fprintf(&b, "_i%d_%s", s.Interval.Milliseconds(), s.ID.String()[:8])
	return b.String()
}

// Path joins dir, the base name and ext
func (s *Session) Path(dir, ext string) string {
	name := s.BaseName() + "." + strings.TrimPrefix(ext, ".")
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}
