package capture

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
)

// ReadFunc reads one batch of n bytes from the device
type ReadFunc func(n int) ([]byte, error)

// Sink receives every batch with its capture time
type Sink interface {
	WriteBatch(t time.Time, data []byte) error
}

// Collector reads a batch every interval until it has Total bytes or the
// context ends
type Collector struct {
	Read     ReadFunc
	Sink     Sink
	Batch    int
	Interval time.Duration
	Total    int // Zero runs until cancelled
	Clock    clockwork.Clock
}

// Run collects and returns the number of bytes written. A cancelled
// context is a normal stop and returns nil.
func (c *Collector) Run(ctx context.Context) (int, error) {
	if c.Batch <= 0 || c.Interval <= 0 {
		return 0, errors.New("capture: batch and interval must be > 0")
	}
	clock := c.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ticker := clock.NewTicker(c.Interval)
	defer ticker.Stop()

	written := 0
	for {
		n := c.Batch
		if c.Total > 0 && c.Total-written < n {
			n = c.Total - written
		}
		data, err := c.Read(n)
		if len(data) > 0 {
			if werr := c.Sink.WriteBatch(clock.Now(), data); werr != nil {
				return written, werr
			}
			written += len(data)
		}
		if err != nil {
			return written, err
		}
		if c.Total > 0 && written >= c.Total {
			return written, nil
		}

		select {
		case <-ctx.Done():
			return written, nil
		case <-ticker.Chan():
		}
	}
}
