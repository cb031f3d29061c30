package devicewatch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Device is one video4linux node.
type Device struct {
	Path string
	Name string
}

// Lister finds video capture nodes. Zero values use /dev and
// /sys/class/video4linux.
type Lister struct {
	DevDir   string
	ClassDir string
}

// List returns the video nodes sorted by path.
func (l Lister) List() ([]Device, error) {
	devDir := l.DevDir
	if devDir == "" {
		devDir = "/dev"
	}
	classDir := l.ClassDir
	if classDir == "" {
		classDir = "/sys/class/video4linux"
	}

	matches, err := filepath.Glob(filepath.Join(devDir, "video*"))
	if err != nil {
		return nil, fmt.Errorf("list video devices: %w", err)
	}
	sort.Strings(matches)

	devices := make([]Device, 0, len(matches))
	for _, path := range matches {
		base := filepath.Base(path)
		name := base
		if data, err := os.ReadFile(filepath.Join(classDir, base, "name")); err == nil {
			if trimmed := strings.TrimSpace(string(data)); trimmed != "" {
				name = trimmed
			}
		}
		devices = append(devices, Device{Path: path, Name: name})
	}
	return devices, nil
}
