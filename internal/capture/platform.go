package capture

import "strings"

// Platform identifies the host family used to tune constraints and pick an
// ffmpeg input device.
type Platform string

const (
	PlatformLinux   Platform = "linux"
	PlatformDarwin  Platform = "darwin"
	PlatformWindows Platform = "windows"
	PlatformMobile  Platform = "mobile"
)

// IsMobile reports whether the platform belongs to the handheld family.
func (p Platform) IsMobile() bool {
	return p == PlatformMobile
}

// DetectPlatform classifies the host from its GOOS value and environment.
// Android userlands (Termux or a bare ANDROID_ROOT) are treated as mobile
// regardless of GOOS.
func DetectPlatform(goos string, getenv func(string) string) Platform {
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	if getenv("TERMUX_VERSION") != "" || getenv("ANDROID_ROOT") != "" {
		return PlatformMobile
	}
	switch strings.ToLower(strings.TrimSpace(goos)) {
	case "android", "ios":
		return PlatformMobile
	case "darwin":
		return PlatformDarwin
	case "windows":
		return PlatformWindows
	default:
		return PlatformLinux
	}
}

// ResolvePlatform honors an explicit override before falling back to detection.
func ResolvePlatform(override, goos string, getenv func(string) string) Platform {
	switch Platform(strings.ToLower(strings.TrimSpace(override))) {
	case PlatformLinux:
		return PlatformLinux
	case PlatformDarwin:
		return PlatformDarwin
	case PlatformWindows:
		return PlatformWindows
	case PlatformMobile:
		return PlatformMobile
	}
	return DetectPlatform(goos, getenv)
}
