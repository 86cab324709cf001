package rng

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20"

	"caprand/core"
	"caprand/noise"
	"caprand/sim"
)

// cycleValues returns a leading invalid byte followed by n values that
// count through 0..255, which never trips either health test
func cycleValues(n int) []uint8 {
	v := make([]uint8, n+1)
	for i := 1; i <= n; i++ {
		v[i] = uint8(i)
	}
	return v
}

func smallConfig(samples int) Config {
	cfg := DefaultConfig()
	cfg.SeedSamples = samples
	return cfg
}

func keystream(key []byte, n int) []byte {
	var nonce [chacha20.NonceSize]byte
	c, err := chacha20.NewUnauthenticatedCipher(key, nonce[:])
	if err != nil {
		panic(err)
	}
	out := make([]byte, n)
	c.XORKeyStream(out, out)
	return out
}

func TestSeedIsDigestOfEveryHashedByte(t *testing.T) {
	values := cycleValues(1000)
	r, err := NewCapRng(sim.NewSequence(values), smallConfig(1000))
	require.NoError(t, err)

	st := r.Stats()
	assert.Equal(t, 1000, st.Validated)
	assert.Equal(t, 1001, st.Hashed, "the invalid first sample is hashed too")
	assert.Zero(t, st.Failures)

	want := sha256.Sum256(values)
	assert.Equal(t, want, r.seed)

	got := make([]byte, 100)
	r.Fill(got)
	assert.Equal(t, keystream(want[:], 100), got)
}

func TestSameSamplesSameOutput(t *testing.T) {
	a, err := NewCapRng(sim.NewSequence(cycleValues(600)), smallConfig(600))
	require.NoError(t, err)
	b, err := NewCapRng(sim.NewSequence(cycleValues(600)), smallConfig(600))
	require.NoError(t, err)

	pa := make([]byte, 4096)
	pb := make([]byte, 4096)
	a.Fill(pa)
	b.Fill(pb)
	assert.Equal(t, pa, pb)
}

func TestFillSplitsLikeOneFill(t *testing.T) {
	seed := sha256.Sum256([]byte("split"))
	whole := make([]byte, 1000)
	newFromSeed(seed).Fill(whole)

	for _, cut := range []int{0, 1, 7, 63, 64, 65, 999, 1000} {
		r := newFromSeed(seed)
		parts := make([]byte, 1000)
		r.Fill(parts[:cut])
		r.Fill(parts[cut:])
		assert.Equal(t, whole, parts, "cut at %d", cut)
	}
}

func TestFillLengths(t *testing.T) {
	r := newFromSeed(sha256.Sum256([]byte("lengths")))
	for n := 0; n <= 300; n++ {
		p := make([]byte, n)
		for i := range p {
			p[i] = 0xAA
		}
		r.Fill(p)
		if n >= 32 {
			assert.NotEqual(t, make([]byte, n), p, "length %d", n)
		}
	}
}

func TestConsecutiveFillsDiffer(t *testing.T) {
	r := newFromSeed(sha256.Sum256([]byte("consecutive")))
	a := make([]byte, 64)
	b := make([]byte, 64)
	r.Fill(a)
	r.Fill(b)
	assert.NotEqual(t, a, b)
}

func TestOutputLooksUniform(t *testing.T) {
	r := newFromSeed(sha256.Sum256([]byte("uniform")))
	p := make([]byte, 1<<18)
	r.Fill(p)

	var h noise.Histogram
	h.AddBytes(p)
	// 255 degrees of freedom; the 0.99999 quantile is about 360
	assert.Less(t, h.ChiSquare(), 400.0)
	assert.Greater(t, h.MinEntropy(), 7.7)
}

func TestRekey(t *testing.T) {
	seed := sha256.Sum256([]byte("rekey"))
	r := newFromSeed(seed)
	r.rekeyAfter = 64

	got := make([]byte, 160)
	r.Fill(got)

	first := keystream(seed[:], 96)
	key2 := first[64:96]
	second := keystream(key2, 96)
	key3 := second[64:96]
	third := keystream(key3, 32)

	assert.Equal(t, first[:64], got[:64])
	assert.Equal(t, second[:64], got[64:128])
	assert.Equal(t, third, got[128:])
}

func TestHealthFailureRestartsCount(t *testing.T) {
	values := []uint8{0}
	for i := 0; i < 201; i++ {
		values = append(values, 7)
	}
	for i := 0; i < 1024; i++ {
		values = append(values, uint8(i))
	}

	core.ClearEvents()
	defer core.ClearEvents()

	r, err := NewCapRng(sim.NewSequence(values), smallConfig(1000))
	require.NoError(t, err)

	st := r.Stats()
	assert.Equal(t, 1, st.Failures)
	assert.Equal(t, 1000, st.Validated)
	assert.Equal(t, 1+201+1000, st.Hashed)

	want := sha256.Sum256(values[:st.Hashed])
	assert.Equal(t, want, r.seed, "bytes before the failure stay in the hash")

	var failures int
	for _, e := range core.Events() {
		if e.Type == core.EvtHealthFailure {
			failures++
			assert.Equal(t, uint32(201), e.Value2)
		}
	}
	assert.Equal(t, 1, failures)
}

func TestHealthExhausted(t *testing.T) {
	stuck := make([]uint8, 1000)
	_, err := NewCapRng(sim.NewSequence(stuck), smallConfig(1000))
	assert.ErrorIs(t, err, core.ErrHealthTestExhausted)
}

func TestMaxFailuresZero(t *testing.T) {
	values := []uint8{0}
	for i := 0; i < 201; i++ {
		values = append(values, 7)
	}
	values = append(values, cycleValues(600)[1:]...)

	cfg := smallConfig(500)
	cfg.MaxFailures = 0
	_, err := NewCapRng(sim.NewSequence(values), cfg)
	assert.ErrorIs(t, err, core.ErrHealthTestExhausted)
}

func TestSourceErrorAborts(t *testing.T) {
	src := &sim.Failing{Sampler: sim.NewSequence(cycleValues(100)), After: 50, Err: core.ErrTimingOverflow}
	r, err := NewCapRng(src, smallConfig(1000))
	assert.Nil(t, r)
	assert.ErrorIs(t, err, core.ErrTimingOverflow)
}

func TestBadHealthConfig(t *testing.T) {
	cfg := smallConfig(10)
	cfg.Health.Window = 0
	_, err := NewCapRng(sim.NewSequence(cycleValues(10)), cfg)
	assert.Error(t, err)
}

func TestUint64(t *testing.T) {
	r := newFromSeed(sha256.Sum256([]byte("u64")))
	seen := make(map[uint64]bool)
	for i := 0; i < 1000; i++ {
		seen[r.Uint64()] = true
	}
	assert.Len(t, seen, 1000)
}
