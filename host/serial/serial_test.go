package serial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
)

func TestFilterPorts(t *testing.T) {
	ports := []*enumerator.PortDetails{
		nil,
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyACM0", IsUSB: true, VID: "2e8a", PID: "000a", Product: "Pico"},
		{Name: "/dev/ttyACM1", IsUSB: true, VID: "16D0", PID: "0AA0"},
		{Name: "", IsUSB: true, VID: "2E8A", PID: "000A"},
	}

	found := filterPorts(ports, PicoVID, PicoPID)
	require.Len(t, found, 1)
	assert.Equal(t, "/dev/ttyACM0", found[0].Name)
	assert.Equal(t, "Pico", found[0].Product)

	assert.Len(t, filterPorts(ports, "", ""), 2)
}

func TestLockPath(t *testing.T) {
	assert.Equal(t, "/tmp/x/caprand_dev_ttyACM0.lock", LockPath("/tmp/x", "/dev/ttyACM0"))
	assert.Equal(t, "/tmp/x/capranda_b.lock", LockPath("/tmp/x", "a:b"))
}

func TestAcquireLock(t *testing.T) {
	dir := t.TempDir()

	l, err := AcquireLock(dir, "/dev/ttyACM0")
	require.NoError(t, err)

	_, err = AcquireLock(dir, "/dev/ttyACM0")
	assert.ErrorIs(t, err, ErrPortBusy)

	other, err := AcquireLock(dir, "/dev/ttyACM1")
	require.NoError(t, err)
	require.NoError(t, other.Release())

	require.NoError(t, l.Release())
	l, err = AcquireLock(dir, "/dev/ttyACM0")
	require.NoError(t, err)
	require.NoError(t, l.Release())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("COM3")
	assert.Equal(t, "COM3", cfg.Device)
	assert.Equal(t, 115200, cfg.Baud)
}
