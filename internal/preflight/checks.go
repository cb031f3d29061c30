package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"leadcast/internal/capture"
	"leadcast/internal/config"
	"leadcast/internal/deps"
	"leadcast/internal/services/telegram"
)

const (
	botCheckTimeout    = 10 * time.Second
	ffmpegProbeTimeout = 10 * time.Second
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckVideoDevice verifies the camera node exists and is accessible.
// Non-device names (platform input identifiers) pass without a check.
func CheckVideoDevice(path string) Result {
	const name = "Camera"
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/dev/") {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (not a device node, not checked)", path)}
	}
	if _, err := os.Stat(path); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not present)", path)}
	}
	if err := capture.CheckDeviceAccess(path); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v; add the user to the video group)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFFmpeg verifies the ffmpeg binary runs.
func CheckFFmpeg(ctx context.Context, binary string) Result {
	status := deps.CheckFFmpeg(ctx, binary)
	if !status.Available {
		return Result{Name: "FFmpeg", Detail: status.Detail}
	}
	return Result{Name: "FFmpeg", Passed: true, Detail: fmt.Sprintf("%s (version %s)", status.Path, status.Detail)}
}

// CheckCaptureFormat reports which container the local ffmpeg build would
// record.
func CheckCaptureFormat(ctx context.Context, binary string) Result {
	const name = "Capture format"
	probeCtx, cancel := context.WithTimeout(ctx, ffmpegProbeTimeout)
	defer cancel()
	caps, err := capture.ProbeCapabilities(probeCtx, binary)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("probe failed (%v)", err)}
	}
	format := capture.SelectContainerFormat(nil, caps.Supports)
	if !caps.Supports(format) {
		return Result{Name: name, Detail: fmt.Sprintf("no supported encoder set; fallback %s needs libvpx and libopus", format)}
	}
	return Result{Name: name, Passed: true, Detail: string(format)}
}

// CheckShareCommand verifies the share facility command is installed.
func CheckShareCommand(command []string) Result {
	const name = "Share command"
	if len(command) == 0 {
		return Result{Name: name, Detail: "share.command not configured (local save only)"}
	}
	path, err := exec.LookPath(command[0])
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("binary %q not found", command[0])}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckBot verifies a route's bot token with getMe.
func CheckBot(ctx context.Context, bots BotChecker, outcome string, route config.Route) Result {
	name := fmt.Sprintf("Bot (%s)", outcome)
	if strings.TrimSpace(route.BotToken) == "" {
		return Result{Name: name, Detail: "bot token missing"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, botCheckTimeout)
	defer cancel()
	user, err := bots.GetMe(checkCtx, route.BotToken)
	if err != nil {
		return Result{Name: name, Detail: summarizeBotError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("@%s → chat %s", user.Username, route.ChatID)}
}

// CheckSystemDeps evaluates the external programs the config needs.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}

// summarizeBotError produces a human-readable summary for bot check failures.
func summarizeBotError(err error) string {
	var apiErr *telegram.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case telegram.KindUnauthorized:
			return "token rejected (unauthorized)"
		case telegram.KindTimeout:
			return "check timed out (Bot API unreachable)"
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (Bot API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (Bot API unreachable)"
	}
	return err.Error()
}
