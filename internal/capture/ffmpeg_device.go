package capture

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"leadcast/internal/config"
	"leadcast/internal/logging"
)

// FFmpegInput is implemented by streams the FFmpegRecorder can encode.
type FFmpegInput interface {
	InputArgs() []string
	FilterArgs() []string
	HasAudio() bool
}

// FFmpegDevice maps constraints onto an ffmpeg input device for the
// platform and guards the device node with an advisory lock.
type FFmpegDevice struct {
	platform     Platform
	videoDevice  string
	audioDevice  string
	audioBackend string
	lockDir      string
	logger       *slog.Logger
}

// NewFFmpegDevice builds a device from capture configuration.
func NewFFmpegDevice(cfg config.Capture, platform Platform, lockDir string, logger *slog.Logger) *FFmpegDevice {
	return &FFmpegDevice{
		platform:     platform,
		videoDevice:  strings.TrimSpace(cfg.VideoDevice),
		audioDevice:  strings.TrimSpace(cfg.AudioDevice),
		audioBackend: strings.ToLower(strings.TrimSpace(cfg.AudioBackend)),
		lockDir:      lockDir,
		logger:       logging.NewComponentLogger(logger, "capture-device"),
	}
}

// Acquire checks the device node, takes the device lock and returns a stream
// describing the ffmpeg inputs.
func (d *FFmpegDevice) Acquire(ctx context.Context, constraints Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.platform == PlatformLinux && strings.HasPrefix(d.videoDevice, "/dev/") {
		if err := CheckDeviceAccess(d.videoDevice); err != nil {
			return nil, err
		}
	}
	lock, err := LockDevice(d.lockDir, d.videoDevice)
	if err != nil {
		return nil, err
	}
	if constraints.Audio.EchoCancellation {
		d.logger.Debug("echo cancellation requested but not available in the ffmpeg backend")
	}
	return &ffmpegStream{
		name:    d.videoDevice,
		inputs:  d.inputArgs(constraints),
		filters: filterArgs(constraints),
		audio:   d.audioEnabled(),
		lock:    lock,
	}, nil
}

// CheckDeviceAccess verifies the device node is readable and writable.
func CheckDeviceAccess(path string) error {
	if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
		return fmt.Errorf("device %s not accessible: %w", path, err)
	}
	return nil
}

func (d *FFmpegDevice) audioEnabled() bool {
	return d.audioBackend != "none" && d.audioDevice != ""
}

func (d *FFmpegDevice) inputArgs(c Constraints) []string {
	width, height := c.Video.FrameSize()
	size := fmt.Sprintf("%dx%d", width, height)
	framerate := strconv.Itoa(int(c.Video.FrameRate.Ideal))

	switch d.platform {
	case PlatformDarwin:
		video := d.videoDevice
		if video == "" || strings.HasPrefix(video, "/dev/") {
			video = "0"
		}
		audio := "none"
		if d.audioEnabled() {
			audio = d.audioDevice
			if audio == "default" {
				audio = "0"
			}
		}
		return []string{"-f", "avfoundation", "-framerate", framerate, "-video_size", size, "-i", video + ":" + audio}
	case PlatformWindows:
		input := "video=" + d.videoDevice
		if d.audioEnabled() {
			input += ":audio=" + d.audioDevice
		}
		return []string{"-f", "dshow", "-framerate", framerate, "-video_size", size, "-i", input}
	}

	var args []string
	if d.platform == PlatformMobile {
		// Index 0 is the rear camera on Android devices.
		cameraIndex := "0"
		if c.Video.FacingMode != FacingEnvironment {
			cameraIndex = "1"
		}
		args = []string{"-f", "android_camera", "-camera_index", cameraIndex, "-framerate", framerate, "-video_size", size, "-i", "0"}
	} else {
		args = []string{"-thread_queue_size", "512", "-f", "v4l2", "-framerate", framerate, "-video_size", size, "-i", d.videoDevice}
	}
	if d.audioEnabled() {
		args = append(args, "-thread_queue_size", "512", "-f", d.audioBackend, "-i", d.audioDevice)
	}
	return args
}

func filterArgs(c Constraints) []string {
	var args []string
	if c.Video.ResizeMode == ResizeCropAndScale {
		width, height := c.Video.FrameSize()
		args = append(args, "-vf", fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d", width, height, width, height))
	}
	var audio []string
	if c.Audio.NoiseSuppression {
		audio = append(audio, "highpass=f=80", "afftdn")
	}
	if c.Audio.AutoGainControl {
		audio = append(audio, "dynaudnorm")
	}
	if len(audio) > 0 {
		args = append(args, "-af", strings.Join(audio, ","))
	}
	if c.Audio.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(c.Audio.SampleRate))
	}
	return args
}

type ffmpegStream struct {
	name    string
	inputs  []string
	filters []string
	audio   bool
	lock    *DeviceLock

	closeOnce sync.Once
	closeErr  error
}

func (s *ffmpegStream) Name() string         { return s.name }
func (s *ffmpegStream) InputArgs() []string  { return append([]string(nil), s.inputs...) }
func (s *ffmpegStream) FilterArgs() []string { return append([]string(nil), s.filters...) }
func (s *ffmpegStream) HasAudio() bool       { return s.audio }

func (s *ffmpegStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.lock.Release()
	})
	return s.closeErr
}
