package serial

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

var ErrPortBusy = errors.New("serial: port in use by another caprand process")

// Lock is an advisory lock on a port so two captures cannot interleave
// commands on one device
type Lock struct {
	fl *flock.Flock
}

// LockPath returns the lock file used for device
func LockPath(dir, device string) string {
	if dir == "" {
		dir = os.TempDir()
	}
	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(device)
	return filepath.Join(dir, "caprand"+name+".lock")
}

// AcquireLock takes the lock for device without blocking
func AcquireLock(dir, device string) (*Lock, error) {
	fl := flock.New(LockPath(dir, device))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", device, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPortBusy, device)
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock
func (l *Lock) Release() error {
	return l.fl.Unlock()
}
