package rng

import (
	"encoding/binary"

	"golang.org/x/crypto/chacha20"

	"caprand/noise"
)

// rekeyAfter bounds the keystream drawn under one key, well below the
// 2^32 block counter limit of the cipher
const rekeyAfter = 1 << 36

// CapRng is a ChaCha20 keystream generator keyed by a capacitor-derived seed
type CapRng struct {
	cipher     *chacha20.Cipher
	seed       [32]byte
	stats      Stats
	used       uint64
	rekeyAfter uint64
}

// NewCapRng draws samples from src until the seed is complete and returns
// the keyed generator. No generator is returned on failure.
func NewCapRng(src noise.Sampler, cfg Config) (*CapRng, error) {
	seed, st, err := extract(src, cfg)
	if err != nil {
		return nil, err
	}
	r := newFromSeed(seed)
	r.stats = st
	return r, nil
}

// newFromSeed keys a generator directly
func newFromSeed(seed [32]byte) *CapRng {
	r := &CapRng{seed: seed, rekeyAfter: rekeyAfter}
	r.key(seed[:])
	return r
}

func (r *CapRng) key(k []byte) {
	var nonce [chacha20.NonceSize]byte
	c, err := chacha20.NewUnauthenticatedCipher(k, nonce[:])
	if err != nil {
		// Only reachable with a key or nonce of the wrong size
		panic("rng: " + err.Error())
	}
	r.cipher = c
	r.used = 0
}

// rekey replaces the key with the next 32 bytes of keystream
func (r *CapRng) rekey() {
	var k [32]byte
	r.cipher.XORKeyStream(k[:], k[:])
	r.key(k[:])
}

// Fill overwrites p with keystream
func (r *CapRng) Fill(p []byte) {
	for len(p) > 0 {
		if r.used >= r.rekeyAfter {
			r.rekey()
		}
		n := uint64(len(p))
		if rem := r.rekeyAfter - r.used; n > rem {
			n = rem
		}
		chunk := p[:n]
		for i := range chunk {
			chunk[i] = 0
		}
		r.cipher.XORKeyStream(chunk, chunk)
		r.used += n
		p = p[n:]
	}
}

// Read fills p and never fails, so CapRng is an io.Reader
func (r *CapRng) Read(p []byte) (int, error) {
	r.Fill(p)
	return len(p), nil
}

// Uint64 returns 8 bytes of keystream, which makes CapRng a math/rand/v2 Source
func (r *CapRng) Uint64() uint64 {
	var b [8]byte
	r.Fill(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

// Stats returns the seeding statistics
func (r *CapRng) Stats() Stats {
	return r.stats
}
