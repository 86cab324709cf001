// Package rng seeds a ChaCha20 generator from health-tested capacitor
// samples and holds the installed generator behind a registry.
package rng

import (
	"crypto/sha256"
	"errors"

	"caprand/core"
	"caprand/health"
	"caprand/noise"
)

// Seeding defaults. At an assumed 0.01 bit of min-entropy per validated
// sample, 25600 samples carry the 256 bits the digest needs.
const (
	DefaultSeedSamples = 256 * 100
	DefaultMaxFailures = 3
	DefaultLowCycles   = 1
)

// ErrBadSeedTarget is returned when a seeding run asks for no validated samples
var ErrBadSeedTarget = errors.New("rng: seed sample target must be at least 1")

// Config controls one seeding run
type Config struct {
	Pin         core.GPIOPin // Tags events only
	SeedSamples int
	MaxFailures int
	Health      health.Config
}

// DefaultConfig returns the configuration used by Registry.Setup
func DefaultConfig() Config {
	return Config{
		SeedSamples: DefaultSeedSamples,
		MaxFailures: DefaultMaxFailures,
		Health:      health.DefaultConfig(),
	}
}

// Stats describes a finished (or aborted) seeding run
type Stats struct {
	Validated int // Validated samples since the last health failure
	Hashed    int // Every sample fed to the hash, invalid ones included
	Failures  int // Health test failures
}

// extract hashes samples until cfg.SeedSamples consecutive validated samples
// passed the health tests. Every sample byte is hashed, valid or not, and a
// failure keeps the running hash but restarts the count.
func extract(src noise.Sampler, cfg Config) ([sha256.Size]byte, Stats, error) {
	var (
		seed [sha256.Size]byte
		st   Stats
		b    [1]byte
	)
	if err := cfg.Health.Validate(); err != nil {
		return seed, st, err
	}
	if cfg.SeedSamples < 1 {
		return seed, st, ErrBadSeedTarget
	}

	mon := health.New(cfg.Health)
	h := sha256.New()
	for st.Validated < cfg.SeedSamples {
		smp, err := src.Next()
		if err != nil {
			return seed, st, err
		}

		b[0] = byte(smp.Value)
		h.Write(b[:])
		st.Hashed++
		if !smp.Valid {
			continue
		}

		st.Validated++
		if mon.Test(b[0]) == nil {
			continue
		}
		st.Failures++
		core.RecordEvent(core.EvtHealthFailure, cfg.Pin, uint32(st.Failures), uint32(st.Validated))
		st.Validated = 0
		if st.Failures > cfg.MaxFailures {
			core.RecordEvent(core.EvtHealthExhausted, cfg.Pin, uint32(st.Failures), uint32(st.Hashed))
			return seed, st, core.ErrHealthTestExhausted
		}
	}

	h.Sum(seed[:0])
	core.RecordEvent(core.EvtSeeded, cfg.Pin, uint32(st.Validated), uint32(st.Hashed))
	return seed, st, nil
}
