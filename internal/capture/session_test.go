package capture_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"leadcast/internal/capture"
)

type fakeDevice struct {
	mu      sync.Mutex
	open    int
	maxOpen int
	fail    error
}

func (d *fakeDevice) Acquire(ctx context.Context, _ capture.Constraints) (capture.Stream, error) {
	if d.fail != nil {
		return nil, d.fail
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open++
	if d.open > d.maxOpen {
		d.maxOpen = d.open
	}
	return &fakeStream{device: d}, nil
}

func (d *fakeDevice) openCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

type fakeStream struct {
	device *fakeDevice
	closed atomic.Bool
}

func (s *fakeStream) Name() string { return "fake0" }

func (s *fakeStream) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.device.mu.Lock()
		s.device.open--
		s.device.mu.Unlock()
	}
	return nil
}

// fakeRecorder replays fragments into the sink when stopped.
type fakeRecorder struct {
	fragments [][]byte
	format    capture.Format
	startErr  error
	last      *fakeRecording
}

func (r *fakeRecorder) Start(_ context.Context, _ capture.Stream, format capture.Format, _ time.Duration, sink func([]byte)) (capture.ActiveRecording, error) {
	if r.startErr != nil {
		return nil, r.startErr
	}
	effective := r.format
	if effective == "" {
		effective = format
	}
	rec := &fakeRecording{fragments: r.fragments, format: effective, sink: sink, done: make(chan struct{})}
	r.last = rec
	return rec, nil
}

type fakeRecording struct {
	fragments [][]byte
	format    capture.Format
	sink      func([]byte)
	done      chan struct{}
	once      sync.Once
}

func (r *fakeRecording) Stop() error {
	r.once.Do(func() {
		for _, fragment := range r.fragments {
			r.sink(fragment)
		}
		close(r.done)
	})
	return nil
}

func (r *fakeRecording) Format() capture.Format { return r.format }
func (r *fakeRecording) Done() <-chan struct{}  { return r.done }

// exit simulates the recorder ending on its own.
func (r *fakeRecording) exit() { _ = r.Stop() }

func newSession(t *testing.T, device *fakeDevice, recorder *fakeRecorder, maxDuration time.Duration) *capture.Session {
	t.Helper()
	session, err := capture.NewSession(capture.SessionOptions{
		Device:      device,
		Recorder:    recorder,
		Constraints: capture.SelectCaptureConstraints(capture.PlatformLinux),
		Format:      capture.PreferredFormats[0],
		MaxDuration: maxDuration,
		PreviewDir:  t.TempDir(),
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { _ = session.Release() })
	return session
}

func TestSessionArtifactConcatenatesNonEmptyFragmentsInOrder(t *testing.T) {
	device := &fakeDevice{}
	recorder := &fakeRecorder{fragments: [][]byte{[]byte("ab"), {}, []byte("cde"), nil, []byte("f")}}
	session := newSession(t, device, recorder, 0)

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.State() != capture.StateRecording {
		t.Fatalf("state = %s", session.State())
	}
	artifact, err := session.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := string(artifact.Bytes()); got != "abcdef" {
		t.Fatalf("artifact = %q, want abcdef", got)
	}
	if artifact.Size() != 6 {
		t.Fatalf("size = %d", artifact.Size())
	}
	if artifact.Format() != capture.PreferredFormats[0] {
		t.Fatalf("format = %q", artifact.Format())
	}
	if session.State() != capture.StateReady {
		t.Fatalf("state = %s, want ready", session.State())
	}
	if device.openCount() != 0 {
		t.Fatal("device should be released after stop")
	}
}

func TestSessionUsesRecorderEffectiveFormat(t *testing.T) {
	recorder := &fakeRecorder{fragments: [][]byte{[]byte("x")}, format: "video/webm"}
	session := newSession(t, &fakeDevice{}, recorder, 0)
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	artifact, err := session.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if artifact.Format() != "video/webm" {
		t.Fatalf("format = %q, want recorder label", artifact.Format())
	}
}

func TestSessionStopWithoutBytesIsEmpty(t *testing.T) {
	device := &fakeDevice{}
	session := newSession(t, device, &fakeRecorder{fragments: [][]byte{{}, nil}}, 0)
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	artifact, err := session.Stop()
	if !errors.Is(err, capture.ErrRecordingEmpty) {
		t.Fatalf("err = %v, want ErrRecordingEmpty", err)
	}
	if artifact != nil {
		t.Fatal("expected no artifact")
	}
	if session.State() != capture.StateIdle {
		t.Fatalf("state = %s, want idle", session.State())
	}
	if device.openCount() != 0 {
		t.Fatal("device should be released")
	}
}

func TestSessionDeviceDenialReturnsToIdle(t *testing.T) {
	device := &fakeDevice{fail: errors.New("permission denied")}
	session := newSession(t, device, &fakeRecorder{}, 0)
	err := session.Start(context.Background())
	if !errors.Is(err, capture.ErrDeviceUnavailable) {
		t.Fatalf("err = %v, want ErrDeviceUnavailable", err)
	}
	if session.State() != capture.StateIdle {
		t.Fatalf("state = %s", session.State())
	}
}

func TestSessionRecorderFailureReleasesDevice(t *testing.T) {
	device := &fakeDevice{}
	session := newSession(t, device, &fakeRecorder{startErr: errors.New("encoder missing")}, 0)
	if err := session.Start(context.Background()); !errors.Is(err, capture.ErrDeviceUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if device.openCount() != 0 {
		t.Fatal("device should be released after recorder failure")
	}
}

func TestSessionAtMostOneOpenStream(t *testing.T) {
	device := &fakeDevice{}
	session := newSession(t, device, &fakeRecorder{fragments: [][]byte{[]byte("data")}}, 0)
	ctx := context.Background()

	steps := []func() error{
		func() error { return session.Start(ctx) },
		func() error { _, err := session.Stop(); return err },
		func() error { return session.Retake() },
		func() error { return session.Start(ctx) },
		func() error { _, err := session.Stop(); return err },
		func() error { return session.Start(ctx) }, // from Ready discards the artifact
		func() error { return session.Start(ctx) }, // rejected while recording
		func() error { _, err := session.Stop(); return err },
		func() error { return session.Release() },
		func() error { return session.Release() },
	}
	for i, step := range steps {
		err := step()
		if i == 6 {
			if !errors.Is(err, capture.ErrInvalidState) {
				t.Fatalf("step %d: err = %v, want ErrInvalidState", i, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if device.maxOpen > 1 {
			t.Fatalf("step %d: %d streams open", i, device.maxOpen)
		}
	}
	if device.openCount() != 0 {
		t.Fatalf("%d streams left open", device.openCount())
	}
	if session.State() != capture.StateReleased {
		t.Fatalf("state = %s", session.State())
	}
}

func TestSessionStartFromReadyDiscardsArtifact(t *testing.T) {
	session := newSession(t, &fakeDevice{}, &fakeRecorder{fragments: [][]byte{[]byte("one")}}, 0)
	ctx := context.Background()
	if err := session.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := session.Stop(); err != nil {
		t.Fatal(err)
	}
	preview, err := session.Preview()
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if err := session.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if session.Artifact() != nil {
		t.Fatal("artifact should be discarded")
	}
	if _, err := os.Stat(preview); !os.IsNotExist(err) {
		t.Fatalf("preview should be removed, stat err = %v", err)
	}
}

func TestSessionRetakeRemovesPreview(t *testing.T) {
	session := newSession(t, &fakeDevice{}, &fakeRecorder{fragments: [][]byte{[]byte("clip")}}, 0)
	if err := session.Retake(); !errors.Is(err, capture.ErrInvalidState) {
		t.Fatalf("retake from idle err = %v", err)
	}
	if err := session.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := session.Stop(); err != nil {
		t.Fatal(err)
	}
	preview, err := session.Preview()
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	data, err := os.ReadFile(preview)
	if err != nil || string(data) != "clip" {
		t.Fatalf("preview contents = %q, %v", data, err)
	}
	if err := session.Retake(); err != nil {
		t.Fatalf("retake: %v", err)
	}
	if _, err := os.Stat(preview); !os.IsNotExist(err) {
		t.Fatal("preview should be removed")
	}
	if session.State() != capture.StateIdle || session.Artifact() != nil {
		t.Fatal("retake should return to idle without artifact")
	}
}

func TestSessionReleaseWhileRecording(t *testing.T) {
	device := &fakeDevice{}
	session := newSession(t, device, &fakeRecorder{fragments: [][]byte{[]byte("x")}}, 0)
	if err := session.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := session.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if device.openCount() != 0 {
		t.Fatal("device should be released")
	}
	if err := session.Start(context.Background()); !errors.Is(err, capture.ErrReleased) {
		t.Fatalf("start after release err = %v", err)
	}
	if _, err := session.Stop(); !errors.Is(err, capture.ErrReleased) {
		t.Fatalf("stop after release err = %v", err)
	}
}

func TestSessionCancelledContextReleasesDevice(t *testing.T) {
	device := &fakeDevice{}
	session := newSession(t, device, &fakeRecorder{fragments: [][]byte{[]byte("x")}}, 0)
	ctx, cancel := context.WithCancel(context.Background())
	if err := session.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	waitFor(t, func() bool { return session.State() == capture.StateIdle })
	if device.openCount() != 0 {
		t.Fatal("device should be released after cancellation")
	}
}

func TestSessionMaxDurationProducesArtifact(t *testing.T) {
	device := &fakeDevice{}
	session := newSession(t, device, &fakeRecorder{fragments: [][]byte{[]byte("auto")}}, 20*time.Millisecond)
	if err := session.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return session.State() == capture.StateReady })
	artifact, err := session.Stop()
	if err != nil {
		t.Fatalf("stop after auto stop: %v", err)
	}
	if string(artifact.Bytes()) != "auto" {
		t.Fatalf("artifact = %q", artifact.Bytes())
	}
	if device.openCount() != 0 {
		t.Fatal("device should be released")
	}
}

func TestSessionRecorderExitWithoutBytesReportsEmpty(t *testing.T) {
	recorder := &fakeRecorder{}
	session := newSession(t, &fakeDevice{}, recorder, 0)
	if err := session.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	recorder.last.exit()
	waitFor(t, func() bool { return session.State() == capture.StateIdle })
	if _, err := session.Stop(); !errors.Is(err, capture.ErrRecordingEmpty) {
		t.Fatalf("err = %v, want ErrRecordingEmpty", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
