package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"leadcast/internal/config"
	"leadcast/internal/logging"
)

const defaultStartupWait = 250 * time.Millisecond

// FFmpegRecorder encodes a device stream with ffmpeg, writing a streamable
// container to stdout and cutting it into fragments on the flush interval.
type FFmpegRecorder struct {
	binary           string
	videoBitrateKbps int
	audioBitrateKbps int
	stopGrace        time.Duration
	startupWait      time.Duration
	logger           *slog.Logger
}

// NewFFmpegRecorder builds a recorder from capture configuration.
func NewFFmpegRecorder(cfg config.Capture, logger *slog.Logger) *FFmpegRecorder {
	binary := strings.TrimSpace(cfg.FFmpegBinary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegRecorder{
		binary:           binary,
		videoBitrateKbps: cfg.VideoBitrateKbps,
		audioBitrateKbps: cfg.AudioBitrateKbps,
		stopGrace:        time.Duration(cfg.StopGraceMS) * time.Millisecond,
		startupWait:      defaultStartupWait,
		logger:           logging.NewComponentLogger(logger, "recorder"),
	}
}

// Start launches ffmpeg. It fails when the stream is not an ffmpeg input or
// when ffmpeg exits during the startup window.
func (r *FFmpegRecorder) Start(ctx context.Context, stream Stream, format Format, flush time.Duration, sink func([]byte)) (ActiveRecording, error) {
	input, ok := stream.(FFmpegInput)
	if !ok {
		return nil, fmt.Errorf("stream %q cannot be recorded with ffmpeg", stream.Name())
	}
	enc, ok := EncodingFor(format)
	if !ok {
		return nil, fmt.Errorf("no ffmpeg encoding for %q", format)
	}
	if flush <= 0 {
		flush = time.Second
	}

	args := r.buildArgs(input, enc)
	r.logger.Debug("starting ffmpeg", logging.String("binary", r.binary), logging.String("args", strings.Join(args, " ")))

	cmd := exec.CommandContext(ctx, r.binary, args...)
	buffer := &fragmentBuffer{}
	var stderr bytes.Buffer
	cmd.Stdout = buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	rec := &ffmpegRecording{
		format:    format,
		process:   cmd.Process,
		stderr:    &stderr,
		exited:    make(chan struct{}),
		flushed:   make(chan struct{}),
		stopGrace: r.stopGrace,
	}
	go func() {
		rec.waitErr = cmd.Wait()
		close(rec.exited)
	}()
	go rec.pump(buffer, flush, sink)

	select {
	case <-rec.exited:
		<-rec.flushed
		if rec.waitErr != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", rec.waitErr, trimOutput(stderr.String()))
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-time.After(r.startupWait):
	}
	return rec, nil
}

func (r *FFmpegRecorder) buildArgs(input FFmpegInput, enc Encoding) []string {
	args := []string{"-nostdin", "-hide_banner", "-loglevel", "warning"}
	args = append(args, input.InputArgs()...)
	args = append(args, input.FilterArgs()...)
	args = append(args, "-c:v", enc.VideoEncoder)
	if r.videoBitrateKbps > 0 {
		args = append(args, "-b:v", strconv.Itoa(r.videoBitrateKbps)+"k")
	}
	switch enc.VideoEncoder {
	case "libx264":
		args = append(args, "-pix_fmt", "yuv420p", "-preset", "veryfast")
	case "libvpx", "libvpx-vp9":
		args = append(args, "-deadline", "realtime")
	}
	if input.HasAudio() {
		args = append(args, "-c:a", enc.AudioEncoder)
		if r.audioBitrateKbps > 0 {
			args = append(args, "-b:a", strconv.Itoa(r.audioBitrateKbps)+"k")
		}
	} else {
		args = append(args, "-an")
	}
	if enc.Muxer == "mp4" || enc.Muxer == "mov" {
		args = append(args, "-movflags", "frag_keyframe+empty_moov+default_base_moof")
	}
	return append(args, "-f", enc.Muxer, "-")
}

type ffmpegRecording struct {
	format    Format
	process   *os.Process
	stderr    *bytes.Buffer
	exited    chan struct{}
	flushed   chan struct{}
	waitErr   error
	stopGrace time.Duration

	stopOnce sync.Once
	stopErr  error
}

func (r *ffmpegRecording) Format() Format        { return r.format }
func (r *ffmpegRecording) Done() <-chan struct{} { return r.exited }

// Stop interrupts ffmpeg so it finalizes the container, killing it after the
// grace period.
func (r *ffmpegRecording) Stop() error {
	r.stopOnce.Do(func() {
		if r.process != nil {
			_ = r.process.Signal(os.Interrupt)
		}
		grace := r.stopGrace
		if grace <= 0 {
			grace = 1500 * time.Millisecond
		}
		select {
		case <-r.exited:
		case <-time.After(grace):
			if r.process != nil {
				_ = r.process.Kill()
			}
			<-r.exited
		}
		<-r.flushed

		r.stopErr = normalizeStopErr(r.waitErr)
		if r.stopErr != nil && r.stderr.Len() > 0 {
			r.stopErr = fmt.Errorf("%w: %s", r.stopErr, trimOutput(r.stderr.String()))
		}
	})
	return r.stopErr
}

// pump hands buffered output to sink every flush interval and once more after
// ffmpeg exits, always from this goroutine so fragments stay ordered.
func (r *ffmpegRecording) pump(buffer *fragmentBuffer, flush time.Duration, sink func([]byte)) {
	defer close(r.flushed)
	ticker := time.NewTicker(flush)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if chunk := buffer.take(); len(chunk) > 0 {
				sink(chunk)
			}
		case <-r.exited:
			if chunk := buffer.take(); len(chunk) > 0 {
				sink(chunk)
			}
			return
		}
	}
}

type fragmentBuffer struct {
	mu      sync.Mutex
	pending []byte
}

func (b *fragmentBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, p...)
	return len(p), nil
}

func (b *fragmentBuffer) take() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	chunk := b.pending
	b.pending = nil
	return chunk
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func trimOutput(input string) string {
	return strings.TrimSpace(input)
}
