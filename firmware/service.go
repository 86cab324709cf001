package firmware

import (
	"errors"

	"caprand/core"
	"caprand/noise"
	"caprand/protocol"
	"caprand/rng"
)

// MaxDataChunk is the largest byte string carried by one response; it keeps
// every response inside a single protocol frame
const MaxDataChunk = 48

var ErrNoTimer = errors.New("firmware: no cycle timer on this board")

// Sender frames responses. *protocol.Transport implements it.
type Sender interface {
	SendCommand(cmdID uint16, args func(output protocol.OutputBuffer))
}

// Config describes the board the service runs on
type Config struct {
	Driver        core.SampleDriver
	Pin           core.GPIOPin
	Timer         core.CycleTimer // Timer-augmented sampling; nil samples plain bursts
	CheckTimer    core.CycleTimer // Capacitor check before seeding; nil skips it
	SkipSeedCheck bool            // Keep check_capacitor but seed without the check
	LowCycles     uint32
	Candidates    []uint32 // Calibrate at seed time when set
	SeedSamples   int      // Zero keeps the default
	MCU           string
}

// Service owns the generator registry and answers host commands
type Service struct {
	cfg  Config
	reg  *Registry
	dict *Dictionary
	rng  *rng.Registry
	out  Sender

	raw      *noise.Source
	rawTimer bool

	onReset      func()
	resetPending bool

	idIdentifyResponse uint16
	idStatus           uint16
	idRandomData       uint16
	idRawData          uint16
	idCalibration      uint16
	idCapacitor        uint16
	idEvent            uint16
}

// NewService registers every command and builds the dictionary
func NewService(cfg Config) *Service {
	if cfg.LowCycles == 0 {
		cfg.LowCycles = rng.DefaultLowCycles
	}
	s := &Service{
		cfg: cfg,
		reg: NewRegistry(),
		rng: rng.NewRegistry(),
	}
	s.dict = NewDictionary(s.reg)

	// identify_response and identify keep ids 0 and 1 so a host can read
	// the dictionary before it knows anything else
	s.idIdentifyResponse = s.reg.RegisterResponse("identify_response", "offset=%u data=%*s")
	s.reg.Register("identify", "offset=%u count=%c", s.handleIdentify)

	s.reg.Register("get_status", "", s.handleGetStatus)
	s.idStatus = s.reg.RegisterResponse("status",
		"seeded=%c pin=%c low_cycles=%u validated=%u hashed=%u failures=%u error=%c")
	s.reg.Register("get_random", "count=%c", s.handleGetRandom)
	s.idRandomData = s.reg.RegisterResponse("random_data", "error=%c data=%*s")
	s.reg.Register("get_raw", "low_cycles=%u count=%c timer=%c", s.handleGetRaw)
	s.idRawData = s.reg.RegisterResponse("raw_data", "error=%c data=%*s")
	s.reg.Register("calibrate", "lo=%u hi=%u step=%u", s.handleCalibrate)
	s.idCalibration = s.reg.RegisterResponse("calibration",
		"error=%c low_cycles=%u max_bucket=%u entropy_milli=%u")
	s.reg.Register("reseed", "low_cycles=%u calibrate=%c", s.handleReseed)
	s.reg.Register("check_capacitor", "", s.handleCheckCapacitor)
	s.idCapacitor = s.reg.RegisterResponse("capacitor", "error=%c ticks=%u")
	s.reg.Register("get_event", "index=%c", s.handleGetEvent)
	s.idEvent = s.reg.RegisterResponse("event",
		"index=%c count=%c type=%c pin=%c clock=%u v1=%u v2=%u")
	s.reg.Register("reset", "", s.handleReset)

	s.dict.SetVersion("caprand-" + protocol.Version)
	s.dict.AddConstant("MCU", cfg.MCU)
	s.dict.AddConstant("CLOCK_FREQ", uint32(core.CPUFreq))
	s.dict.AddConstant("CAPRAND_PIN", uint32(cfg.Pin))
	s.dict.AddConstant("BURST_LEN", core.BurstLen)
	s.dict.AddConstant("MAX_LOW_CYCLES", noise.MaxLowCycles)
	s.dict.AddConstant("MAX_DATA_CHUNK", MaxDataChunk)
	s.dict.AddConstant("RAND_ERROR_BASE", core.RandErrorBase)
	s.dict.AddConstant("TIMER_MODE", cfg.Timer != nil)
	s.dict.AddEnumeration("error", errorNames())
	s.dict.Build()
	return s
}

// errorNames indexes error names by code
func errorNames() []string {
	names := make([]string, int(core.CodeUnknown)+1)
	for _, c := range []core.Code{
		core.CodeNone, core.CodeTimingOverflow, core.CodeCapacitorOutOfRange,
		core.CodeHealthTestExhausted, core.CodeNotSeeded, core.CodeUnknown,
	} {
		names[c] = c.Name()
	}
	return names
}

// SetSender routes responses to out
func (s *Service) SetSender(out Sender) {
	s.out = out
}

// Registry returns the command registry
func (s *Service) Registry() *Registry {
	return s.reg
}

// Dictionary returns the data dictionary
func (s *Service) Dictionary() *Dictionary {
	return s.dict
}

// Rng returns the generator registry
func (s *Service) Rng() *rng.Registry {
	return s.rng
}

// Seed runs the configured seeding pipeline
func (s *Service) Seed() error {
	return s.seed(s.cfg.LowCycles, len(s.cfg.Candidates) > 0)
}

func (s *Service) seed(lowCycles uint32, calibrate bool) error {
	opts := []rng.Option{rng.WithLowCycles(lowCycles)}
	if calibrate {
		candidates := s.cfg.Candidates
		if len(candidates) == 0 {
			candidates = noise.DefaultCandidates()
		}
		opts = append(opts, rng.WithCalibration(candidates))
	}
	if s.cfg.Timer != nil {
		opts = append(opts, rng.WithTimer(s.cfg.Timer))
	}
	if s.cfg.CheckTimer != nil && !s.cfg.SkipSeedCheck {
		opts = append(opts, rng.WithCapacitorCheck(s.cfg.CheckTimer))
	}
	if s.cfg.SeedSamples > 0 {
		opts = append(opts, rng.WithSeedSamples(s.cfg.SeedSamples))
	}

	err := s.rng.Setup(s.cfg.Driver, s.cfg.Pin, opts...)
	if err != nil {
		core.DebugPrintln("[SEED] failed: " + err.Error())
	} else {
		core.DebugPrintln("[SEED] seeded")
	}
	return err
}

// Dispatch is the protocol.CommandHandler of the service
func (s *Service) Dispatch(cmdID uint16, data *[]byte) error {
	return s.reg.Dispatch(cmdID, data)
}

// SetResetHandler sets the function that reboots the board
func (s *Service) SetResetHandler(fn func()) {
	s.onReset = fn
}

// CheckPendingReset reboots if a reset command arrived. Call it after the
// ACK for that command has been flushed.
func (s *Service) CheckPendingReset() {
	if s.resetPending && s.onReset != nil {
		s.onReset()
	}
}

func (s *Service) send(id uint16, args func(protocol.OutputBuffer)) {
	if s.out != nil {
		s.out.SendCommand(id, args)
	}
}

func decodeArgs(data *[]byte, args ...*uint32) error {
	for _, a := range args {
		v, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		*a = v
	}
	return nil
}

func clampCount(n uint32) int {
	if n > MaxDataChunk {
		return MaxDataChunk
	}
	return int(n)
}

func (s *Service) handleIdentify(data *[]byte) error {
	var offset, count uint32
	if err := decodeArgs(data, &offset, &count); err != nil {
		return err
	}

	chunk := s.dict.Chunk(offset, uint8(clampCount(count)))
	s.send(s.idIdentifyResponse, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, offset)
		protocol.EncodeVLQBytes(out, chunk)
	})
	return nil
}

func (s *Service) handleGetStatus(data *[]byte) error {
	s.sendStatus()
	return nil
}

func (s *Service) sendStatus() {
	st := s.rng.Status()
	s.send(s.idStatus, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, boolArg(st.Seeded))
		protocol.EncodeVLQUint(out, uint32(st.Pin))
		protocol.EncodeVLQUint(out, st.LowCycles)
		protocol.EncodeVLQUint(out, uint32(st.Stats.Validated))
		protocol.EncodeVLQUint(out, uint32(st.Stats.Hashed))
		protocol.EncodeVLQUint(out, uint32(st.Stats.Failures))
		protocol.EncodeVLQUint(out, uint32(st.LastError))
	})
}

func (s *Service) handleGetRandom(data *[]byte) error {
	var count uint32
	if err := decodeArgs(data, &count); err != nil {
		return err
	}

	buf := make([]byte, clampCount(count))
	err := s.rng.Fill(buf)
	if err != nil {
		buf = nil
	}
	s.sendData(s.idRandomData, err, buf)
	return nil
}

func (s *Service) sendData(id uint16, err error, buf []byte) {
	s.send(id, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(core.CodeOf(err)))
		protocol.EncodeVLQBytes(out, buf)
	})
}

// handleGetRaw streams raw samples for offline analysis. The source is kept
// between requests so only the first sample after a parameter change is
// the invalid warm-up sample.
func (s *Service) handleGetRaw(data *[]byte) error {
	var lowCycles, count, timer uint32
	if err := decodeArgs(data, &lowCycles, &count, &timer); err != nil {
		return err
	}

	src, err := s.rawSource(lowCycles, timer != 0)
	if err != nil {
		s.sendData(s.idRawData, err, nil)
		return nil
	}

	buf := make([]byte, clampCount(count))
	for i := range buf {
		smp, err := src.Next()
		if err != nil {
			s.raw = nil
			s.sendData(s.idRawData, err, buf[:i])
			return nil
		}
		buf[i] = byte(smp.Value)
	}
	s.sendData(s.idRawData, nil, buf)
	return nil
}

func (s *Service) rawSource(lowCycles uint32, timer bool) (*noise.Source, error) {
	if s.raw != nil && s.raw.LowCycles() == lowCycles && s.rawTimer == timer {
		return s.raw, nil
	}
	s.raw = nil

	var opts []noise.SourceOption
	if timer {
		if s.cfg.Timer == nil {
			return nil, ErrNoTimer
		}
		opts = append(opts, noise.WithTimer(s.cfg.Timer))
	}
	src, err := noise.NewSource(s.cfg.Driver, s.cfg.Pin, lowCycles, opts...)
	if err != nil {
		return nil, err
	}
	s.raw, s.rawTimer = src, timer
	return src, nil
}

func (s *Service) handleCalibrate(data *[]byte) error {
	var lo, hi, step uint32
	if err := decodeArgs(data, &lo, &hi, &step); err != nil {
		return err
	}

	var opts []noise.SourceOption
	if s.cfg.Timer != nil {
		opts = append(opts, noise.WithTimer(s.cfg.Timer))
	}
	res, err := noise.NewCalibrator(s.cfg.Driver, s.cfg.Pin, opts...).Best(noise.Candidates(lo, hi, step))
	s.send(s.idCalibration, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(core.CodeOf(err)))
		protocol.EncodeVLQUint(out, res.LowCycles)
		protocol.EncodeVLQUint(out, res.MaxBucket)
		protocol.EncodeVLQUint(out, uint32(res.MinEntropy*1000))
	})
	return nil
}

// handleReseed replaces the generator and reports the new status. A failed
// reseed keeps the previous generator; the status carries the error.
func (s *Service) handleReseed(data *[]byte) error {
	var lowCycles, calibrate uint32
	if err := decodeArgs(data, &lowCycles, &calibrate); err != nil {
		return err
	}
	if lowCycles == 0 {
		lowCycles = s.cfg.LowCycles
	}
	// seed logs a failure and the status below carries its code
	_ = s.seed(lowCycles, calibrate != 0)
	s.sendStatus()
	return nil
}

func (s *Service) handleCheckCapacitor(data *[]byte) error {
	var (
		ticks uint32
		err   = ErrNoTimer
	)
	if s.cfg.CheckTimer != nil {
		ticks, err = noise.CheckCapacitor(s.cfg.Driver, s.cfg.Pin, s.cfg.CheckTimer)
	}
	s.send(s.idCapacitor, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(core.CodeOf(err)))
		protocol.EncodeVLQUint(out, ticks)
	})
	return nil
}

func (s *Service) handleGetEvent(data *[]byte) error {
	var index uint32
	if err := decodeArgs(data, &index); err != nil {
		return err
	}

	events := core.Events()
	var e core.Event
	if int(index) < len(events) {
		e = events[index]
	}
	s.send(s.idEvent, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, index)
		protocol.EncodeVLQUint(out, uint32(len(events)))
		protocol.EncodeVLQUint(out, uint32(e.Type))
		protocol.EncodeVLQUint(out, uint32(e.Pin))
		protocol.EncodeVLQUint(out, e.Clock)
		protocol.EncodeVLQUint(out, e.Value1)
		protocol.EncodeVLQUint(out, e.Value2)
	})
	return nil
}

// handleReset only marks the reset; the main loop performs it once the ACK
// is out
func (s *Service) handleReset(data *[]byte) error {
	s.resetPending = true
	return nil
}

func boolArg(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
