package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"leadcast/internal/capture"
	"leadcast/internal/delivery"
	"leadcast/internal/location"
	"leadcast/internal/logging"
	"leadcast/internal/services"
)

// ErrNoArtifact is returned when Send runs before a recording is ready.
var ErrNoArtifact = errors.New("no recording ready to send")

// Deliverer delivers an attempt.
type Deliverer interface {
	Deliver(ctx context.Context, attempt *delivery.Attempt) (delivery.Result, error)
}

// Options configures a Cycle.
type Options struct {
	Session         *capture.Session
	Enricher        *location.Enricher
	Deliverer       Deliverer
	Logger          *slog.Logger
	ResetDelay      time.Duration
	LocationTimeout time.Duration
	LocationMaxAge  time.Duration
	// OnReset runs after a scheduled reset completes.
	OnReset func()
}

// Cycle drives one capture and delivery cycle at a time.
type Cycle struct {
	session         *capture.Session
	enricher        *location.Enricher
	deliverer       Deliverer
	logger          *slog.Logger
	resetDelay      time.Duration
	locationTimeout time.Duration
	locationMaxAge  time.Duration
	onReset         func()

	mu         sync.Mutex
	id         string
	lookup     *location.Lookup
	attempt    *delivery.Attempt
	sending    bool
	resetTimer *time.Timer
	closed     bool
}

// NewCycle builds a cycle around an existing session.
func NewCycle(opts Options) (*Cycle, error) {
	if opts.Session == nil || opts.Deliverer == nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "new cycle", "session and deliverer are required", nil)
	}
	return &Cycle{
		session:         opts.Session,
		enricher:        opts.Enricher,
		deliverer:       opts.Deliverer,
		logger:          logging.NewComponentLogger(opts.Logger, "workflow"),
		resetDelay:      opts.ResetDelay,
		locationTimeout: opts.LocationTimeout,
		locationMaxAge:  opts.LocationMaxAge,
		onReset:         opts.OnReset,
		id:              uuid.NewString(),
	}, nil
}

// ID returns the correlation id of the current cycle.
func (c *Cycle) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// State returns the capture session state.
func (c *Cycle) State() capture.State {
	return c.session.State()
}

// Record starts a new recording, discarding any previous one.
func (c *Cycle) Record(ctx context.Context) error {
	c.mu.Lock()
	if c.sending {
		c.mu.Unlock()
		return delivery.ErrInFlight
	}
	c.stopResetLocked()
	c.clearSendLocked()
	c.mu.Unlock()
	return c.session.Start(services.WithRequestID(ctx, c.ID()))
}

// Stop finishes the recording and starts the location lookup for the send
// step.
func (c *Cycle) Stop(ctx context.Context) (*capture.Artifact, error) {
	artifact, err := c.session.Stop()
	if err != nil {
		return nil, err
	}
	c.EnterSend(ctx)
	return artifact, nil
}

// Retake discards the ready recording.
func (c *Cycle) Retake() error {
	c.mu.Lock()
	if c.sending {
		c.mu.Unlock()
		return delivery.ErrInFlight
	}
	c.clearSendLocked()
	c.mu.Unlock()
	return c.session.Retake()
}

// EnterSend starts the location lookup unless one is already running.
func (c *Cycle) EnterSend(ctx context.Context) *location.Lookup {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lookup != nil {
		return c.lookup
	}
	if c.enricher == nil {
		c.lookup = location.Failed(location.ReasonPositionUnavailable)
		return c.lookup
	}
	c.lookup = c.enricher.Resolve(context.WithoutCancel(ctx), c.locationTimeout, c.locationMaxAge)
	return c.lookup
}

// Lookup returns the current location lookup, or nil before the send step.
func (c *Cycle) Lookup() *location.Lookup {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookup
}

// Send delivers the ready artifact. A second Send while one is in flight
// returns delivery.ErrInFlight. A Sent result schedules the reset.
func (c *Cycle) Send(ctx context.Context, record delivery.Record, outcome string) (delivery.Result, error) {
	artifact := c.session.Artifact()
	if artifact == nil {
		return delivery.Result{}, ErrNoArtifact
	}
	lookup := c.EnterSend(ctx)

	c.mu.Lock()
	if c.sending {
		c.mu.Unlock()
		return delivery.Result{}, delivery.ErrInFlight
	}
	attempt, err := delivery.NewAttempt(record, artifact, lookup, outcome)
	if err != nil {
		c.mu.Unlock()
		return delivery.Result{}, err
	}
	c.attempt = attempt
	c.sending = true
	cycleID := c.id
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.sending = false
		c.mu.Unlock()
	}()

	ctx = services.WithRequestID(ctx, cycleID)
	result, err := c.deliverer.Deliver(ctx, attempt)
	if err == nil && result.Delivered() {
		c.scheduleReset()
	}
	return result, err
}

// Reset discards the recording and lookup and starts a new cycle id.
func (c *Cycle) Reset() {
	c.mu.Lock()
	c.stopResetLocked()
	c.clearSendLocked()
	c.id = uuid.NewString()
	c.mu.Unlock()

	if c.session.State() == capture.StateReady {
		if err := c.session.Retake(); err != nil {
			c.logger.Debug("reset retake skipped", logging.Error(err))
		}
	}
	c.logger.Info("cycle reset", logging.String(logging.FieldEventType, "cycle_reset"))
}

// Close cancels any pending reset and releases the capture session.
func (c *Cycle) Close() error {
	c.mu.Lock()
	c.closed = true
	c.stopResetLocked()
	c.clearSendLocked()
	c.mu.Unlock()
	return c.session.Release()
}

func (c *Cycle) scheduleReset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.stopResetLocked()
	c.resetTimer = time.AfterFunc(c.resetDelay, func() {
		c.Reset()
		if c.onReset != nil {
			c.onReset()
		}
	})
}

func (c *Cycle) stopResetLocked() {
	if c.resetTimer != nil {
		c.resetTimer.Stop()
		c.resetTimer = nil
	}
}

func (c *Cycle) clearSendLocked() {
	if c.lookup != nil {
		c.lookup.Cancel()
		c.lookup = nil
	}
	c.attempt = nil
}
