package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"leadcast/internal/logging"
	"leadcast/internal/services"
)

var (
	// ErrDeviceUnavailable reports that the camera or microphone could not be
	// acquired. It is never retried automatically.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	// ErrRecordingEmpty reports that a recording produced zero bytes.
	ErrRecordingEmpty = errors.New("recording is empty")
	// ErrInvalidState reports an operation that is not allowed in the current state.
	ErrInvalidState = errors.New("invalid capture state")
	// ErrReleased reports use of a session after Release.
	ErrReleased = errors.New("capture session released")
)

// State is the capture session lifecycle position.
type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateRecording
	StateReady
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateRecording:
		return "recording"
	case StateReady:
		return "ready"
	case StateReleased:
		return "released"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Device grants exclusive access to a camera/microphone pair.
type Device interface {
	Acquire(ctx context.Context, constraints Constraints) (Stream, error)
}

// Stream is a granted device. Close releases it and must be safe to call once.
type Stream interface {
	Name() string
	Close() error
}

// Recorder encodes a granted stream, handing fragments to sink in temporal
// order every flush interval.
type Recorder interface {
	Start(ctx context.Context, stream Stream, format Format, flush time.Duration, sink func([]byte)) (ActiveRecording, error)
}

// ActiveRecording is a running recorder.
type ActiveRecording interface {
	// Stop finalizes the recording. All fragments have been delivered to the
	// sink when it returns.
	Stop() error
	// Format is the label the recorder actually produced.
	Format() Format
	// Done is closed when the recorder exits on its own.
	Done() <-chan struct{}
}

// SessionOptions configures a Session.
type SessionOptions struct {
	Device        Device
	Recorder      Recorder
	Constraints   Constraints
	Format        Format
	FlushInterval time.Duration
	MaxDuration   time.Duration
	PreviewDir    string
	Logger        *slog.Logger
}

// Session drives one camera through Idle, Acquiring, Recording and Ready.
// It holds at most one device stream and at most one artifact.
type Session struct {
	device      Device
	recorder    Recorder
	constraints Constraints
	format      Format
	flush       time.Duration
	maxDuration time.Duration
	previewDir  string
	logger      *slog.Logger

	mu          sync.Mutex
	state       State
	run         *recordingRun
	chunks      [][]byte
	artifact    *Artifact
	previewPath string
	autoErr     error
}

type recordingRun struct {
	rec    ActiveRecording
	stream Stream
	once   sync.Once
	done   chan struct{}

	artifact *Artifact
	err      error
}

// NewSession constructs an idle capture session.
func NewSession(opts SessionOptions) (*Session, error) {
	if opts.Device == nil || opts.Recorder == nil {
		return nil, services.Wrap(services.ErrConfiguration, "capture", "new session", "device and recorder are required", nil)
	}
	if opts.Format == "" {
		opts.Format = FallbackFormat
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	return &Session{
		device:      opts.Device,
		recorder:    opts.Recorder,
		constraints: opts.Constraints,
		format:      opts.Format,
		flush:       opts.FlushInterval,
		maxDuration: opts.MaxDuration,
		previewDir:  opts.PreviewDir,
		logger:      logging.NewComponentLogger(opts.Logger, "capture"),
		state:       StateIdle,
	}, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Artifact returns the ready artifact, or nil.
func (s *Session) Artifact() *Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.artifact
}

// Start acquires the device and begins recording. Starting from Ready
// discards the previous artifact. Cancelling ctx while recording releases the
// device and discards the fragments collected so far.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateReleased:
		s.mu.Unlock()
		return ErrReleased
	case StateIdle, StateReady:
	default:
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrInvalidState, state)
	}
	s.discardArtifactLocked()
	s.chunks = nil
	s.autoErr = nil
	s.state = StateAcquiring
	s.mu.Unlock()

	s.logger.Debug("acquiring capture device", logging.String("format", string(s.format)))
	stream, err := s.device.Acquire(ctx, s.constraints)
	if err != nil {
		s.setState(StateIdle)
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	if s.State() == StateReleased {
		s.closeStream(stream)
		return ErrReleased
	}

	rec, err := s.recorder.Start(ctx, stream, s.format, s.flush, s.appendChunk)
	if err != nil {
		s.closeStream(stream)
		s.mu.Lock()
		if s.state != StateReleased {
			s.state = StateIdle
		}
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	run := &recordingRun{rec: rec, stream: stream, done: make(chan struct{})}
	s.mu.Lock()
	if s.state == StateReleased {
		s.mu.Unlock()
		s.finish(run, finishDiscard)
		return ErrReleased
	}
	s.run = run
	s.state = StateRecording
	s.mu.Unlock()

	s.logger.Info("recording started",
		logging.String("device", stream.Name()),
		logging.String("format", string(s.format)),
		logging.Duration("flush_interval", s.flush),
	)
	go s.watch(ctx, run)
	return nil
}

// Stop finalizes the recording and returns the artifact. A recording that
// produced no bytes returns ErrRecordingEmpty and the session goes back to
// Idle. When the recording already ended on its own, Stop reports that
// result.
func (s *Session) Stop() (*Artifact, error) {
	s.mu.Lock()
	switch {
	case s.state == StateReleased:
		s.mu.Unlock()
		return nil, ErrReleased
	case s.state == StateReady && s.artifact != nil:
		artifact := s.artifact
		s.mu.Unlock()
		return artifact, nil
	case s.state == StateIdle && s.autoErr != nil:
		err := s.autoErr
		s.autoErr = nil
		s.mu.Unlock()
		return nil, err
	case s.state != StateRecording || s.run == nil:
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: stop from %s", ErrInvalidState, state)
	}
	run := s.run
	s.mu.Unlock()

	s.finish(run, finishStop)
	<-run.done
	return run.artifact, run.err
}

// Retake discards the ready artifact and its preview so a new recording can
// start.
func (s *Session) Retake() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return fmt.Errorf("%w: retake from %s", ErrInvalidState, s.state)
	}
	s.discardArtifactLocked()
	s.state = StateIdle
	return nil
}

// Release tears the session down. It is idempotent and safe from any state.
func (s *Session) Release() error {
	s.mu.Lock()
	if s.state == StateReleased {
		s.mu.Unlock()
		return nil
	}
	s.state = StateReleased
	run := s.run
	s.discardArtifactLocked()
	s.chunks = nil
	s.mu.Unlock()

	if run != nil {
		s.finish(run, finishDiscard)
		<-run.done
	}
	s.logger.Debug("capture session released")
	return nil
}

// Preview writes the ready artifact to a temporary file for playback and
// returns its path. The file is removed by Retake, Release or the next Start.
func (s *Session) Preview() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady || s.artifact == nil {
		return "", fmt.Errorf("%w: preview from %s", ErrInvalidState, s.state)
	}
	if s.previewPath != "" {
		return s.previewPath, nil
	}
	file, err := os.CreateTemp(s.previewDir, "leadcast-preview-*."+s.artifact.Format().Container())
	if err != nil {
		return "", fmt.Errorf("create preview: %w", err)
	}
	if _, err := file.Write(s.artifact.Bytes()); err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return "", fmt.Errorf("write preview: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(file.Name())
		return "", fmt.Errorf("close preview: %w", err)
	}
	s.previewPath = file.Name()
	return s.previewPath, nil
}

func (s *Session) watch(ctx context.Context, run *recordingRun) {
	var timeout <-chan time.Time
	if s.maxDuration > 0 {
		timer := time.NewTimer(s.maxDuration)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-run.done:
	case <-ctx.Done():
		s.logger.Info("recording cancelled", logging.Error(ctx.Err()))
		s.finish(run, finishDiscard)
	case <-timeout:
		s.logger.Info("maximum recording duration reached", logging.Duration("max_duration", s.maxDuration))
		s.finish(run, finishAuto)
	case <-run.rec.Done():
		logging.WarnWithContext(s.logger, "recorder exited before stop", "recorder_exited",
			logging.String(logging.FieldErrorHint, "check the ffmpeg log output for device errors"),
			logging.String(logging.FieldImpact, "the recording ends early"),
		)
		s.finish(run, finishAuto)
	}
}

type finishMode int

const (
	finishStop finishMode = iota
	finishAuto
	finishDiscard
)

// finish stops the recorder, releases the device, then assembles the
// artifact. It runs once per recording no matter which path triggers it.
func (s *Session) finish(run *recordingRun, mode finishMode) {
	run.once.Do(func() {
		defer close(run.done)

		stopErr := run.rec.Stop()
		s.closeStream(run.stream)

		s.mu.Lock()
		defer s.mu.Unlock()
		chunks := s.chunks
		s.chunks = nil
		if s.run == run {
			s.run = nil
		}

		if s.state == StateReleased {
			run.err = ErrReleased
			return
		}
		if mode == finishDiscard {
			s.state = StateIdle
			run.err = services.Wrap(services.ErrTransient, "capture", "record", "recording cancelled", context.Canceled)
			return
		}

		data := bytes.Join(chunks, nil)
		if len(data) == 0 {
			s.state = StateIdle
			if stopErr != nil {
				run.err = fmt.Errorf("%w: %w", ErrRecordingEmpty, stopErr)
			} else {
				run.err = ErrRecordingEmpty
			}
			if mode == finishAuto {
				s.autoErr = run.err
			}
			return
		}
		if stopErr != nil {
			logging.WarnWithContext(s.logger, "recorder reported an error while stopping", "recorder_stop_failed",
				logging.Error(stopErr),
				logging.String(logging.FieldErrorHint, "play the preview to confirm the recording"),
				logging.String(logging.FieldImpact, "the artifact may be truncated"),
			)
		}

		format := run.rec.Format()
		if format == "" {
			format = s.format
		}
		run.artifact = NewArtifact(data, format, time.Now())
		s.artifact = run.artifact
		s.state = StateReady
		s.logger.Info("recording ready",
			logging.Size(int64(len(data))),
			logging.Int("fragments", len(chunks)),
			logging.String("format", string(format)),
		)
	})
}

func (s *Session) appendChunk(p []byte) {
	if len(p) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording && s.state != StateAcquiring {
		return
	}
	s.chunks = append(s.chunks, append([]byte(nil), p...))
}

func (s *Session) closeStream(stream Stream) {
	if stream == nil {
		return
	}
	if err := stream.Close(); err != nil {
		logging.WarnWithContext(s.logger, "failed to release capture device", "device_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that no other process holds the device"),
			logging.String(logging.FieldImpact, "the next recording may fail to acquire the device"),
		)
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReleased {
		s.state = state
	}
}

func (s *Session) discardArtifactLocked() {
	s.artifact = nil
	if s.previewPath != "" {
		if err := os.Remove(s.previewPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("remove preview failed", logging.Error(err))
		}
		s.previewPath = ""
	}
}
