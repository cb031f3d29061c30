package capture

import (
	"errors"
	"testing"
)

func TestLockDeviceIsExclusive(t *testing.T) {
	dir := t.TempDir()
	first, err := LockDevice(dir, "/dev/video0")
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if _, err := LockDevice(dir, "/dev/video0"); !errors.Is(err, ErrDeviceBusy) {
		t.Fatalf("second lock err = %v, want ErrDeviceBusy", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	again, err := LockDevice(dir, "/dev/video0")
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	_ = again.Release()
}

func TestLockFileName(t *testing.T) {
	tests := map[string]string{
		"/dev/video0":        "dev-video0.lock",
		"":                   "default.lock",
		"FaceTime HD Camera": "FaceTime-HD-Camera.lock",
	}
	for input, want := range tests {
		if got := lockFileName(input); got != want {
			t.Fatalf("lockFileName(%q) = %q, want %q", input, got, want)
		}
	}
}
