package capture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// ErrDeviceBusy indicates another process holds the device lock.
var ErrDeviceBusy = errors.New("capture device busy")

// DeviceLock is an advisory per-device lock shared across leadcast processes.
type DeviceLock struct {
	path string
	lock *flock.Flock
}

// LockDevice takes the lock for device without blocking.
func LockDevice(lockDir, device string) (*DeviceLock, error) {
	if strings.TrimSpace(lockDir) == "" {
		lockDir = os.TempDir()
	}
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure lock directory: %w", err)
	}
	path := filepath.Join(lockDir, lockFileName(device))
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire device lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceBusy, device)
	}
	return &DeviceLock{path: path, lock: lock}, nil
}

// Path returns the lock file location.
func (l *DeviceLock) Path() string { return l.path }

// Release drops the lock.
func (l *DeviceLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release device lock: %w", err)
	}
	return nil
}

func lockFileName(device string) string {
	device = strings.Trim(strings.TrimSpace(device), "/")
	if device == "" {
		device = "default"
	}
	var b strings.Builder
	for _, r := range device {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String() + ".lock"
}
