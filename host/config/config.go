// Package config loads the host tool settings from YAML
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/inhies/go-bytesize"
	"gopkg.in/yaml.v2"
)

// Size is a byte count written as "4096", "4KB" or "1.5MB"
type Size int64

// ParseSize parses a byte count with an optional binary unit suffix
func ParseSize(s string) (Size, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Size(n), nil
	}
	b, err := bytesize.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("size %q: %w", s, err)
	}
	return Size(b), nil
}

// UnmarshalYAML accepts integers and unit strings
func (s *Size) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var str string
	if err := unmarshal(&str); err != nil {
		return err
	}
	v, err := ParseSize(str)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s Size) String() string {
	return bytesize.New(float64(s)).String()
}

// Config is the host tool configuration
type Config struct {
	Device      string        `yaml:"device"` // Empty: first Pico port found
	LockDir     string        `yaml:"lock_dir"`
	Timeout     time.Duration `yaml:"timeout"`
	SlowTimeout time.Duration `yaml:"slow_timeout"` // reseed and calibrate
	Capture     Capture       `yaml:"capture"`
	Calibrate   Sweep         `yaml:"calibrate"`
}

// Capture configures raw and random captures
type Capture struct {
	OutDir    string        `yaml:"out_dir"`
	LowCycles uint32        `yaml:"low_cycles"`
	Timer     bool          `yaml:"timer"`
	Batch     Size          `yaml:"batch"`
	Total     Size          `yaml:"total"`
	Interval  time.Duration `yaml:"interval"`
	XLSX      bool          `yaml:"xlsx"`
}

// Sweep is a calibration range
type Sweep struct {
	Low  uint32 `yaml:"low"`
	High uint32 `yaml:"high"`
	Step uint32 `yaml:"step"`
}

// LoadConfig parses YAML and fills in defaults
func LoadConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Load reads a config file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration used without a file
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills in missing configuration values
func applyDefaults(cfg *Config) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.SlowTimeout == 0 {
		cfg.SlowTimeout = 60 * time.Second
	}

	c := &cfg.Capture
	if c.OutDir == "" {
		c.OutDir = "data"
	}
	if c.LowCycles == 0 {
		c.LowCycles = 1
	}
	if c.Batch == 0 {
		c.Batch = 4 * 1024
	}
	if c.Interval == 0 {
		c.Interval = time.Second
	}

	s := &cfg.Calibrate
	if s.Low == 0 {
		s.Low = 1
	}
	if s.High == 0 {
		s.High = 50
	}
	if s.Step == 0 {
		s.Step = 1
	}
}
