package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"leadcast/internal/logging"
	"leadcast/internal/services"
)

// Reason is the closed set of lookup failures.
type Reason string

const (
	ReasonPermissionDenied    Reason = "permission-denied"
	ReasonPositionUnavailable Reason = "position-unavailable"
	ReasonTimeout             Reason = "timeout"
)

// Fix is a resolved position.
type Fix struct {
	Latitude       float64
	Longitude      float64
	AccuracyMeters float64
	Timestamp      time.Time
}

// Error carries a lookup failure reason.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "location " + string(e.Reason)
	}
	return fmt.Sprintf("location %s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() []error {
	marker := services.ErrTransient
	switch e.Reason {
	case ReasonTimeout:
		marker = services.ErrTimeout
	case ReasonPermissionDenied:
		marker = services.ErrConfiguration
	}
	if e.Err == nil {
		return []error{marker}
	}
	return []error{marker, e.Err}
}

// ReasonOf extracts the failure reason, defaulting to position-unavailable.
func ReasonOf(err error) Reason {
	var locErr *Error
	if errors.As(err, &locErr) {
		return locErr.Reason
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	return ReasonPositionUnavailable
}

// Provider resolves the current position once.
type Provider interface {
	Locate(ctx context.Context) (Fix, error)
}

// Enricher resolves positions in the background and caches the last fix.
type Enricher struct {
	provider Provider
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	cached *Fix
}

// NewEnricher wraps a provider.
func NewEnricher(provider Provider, logger *slog.Logger) *Enricher {
	if provider == nil {
		provider = NoneProvider{}
	}
	return &Enricher{
		provider: provider,
		logger:   logging.NewComponentLogger(logger, "location"),
		now:      time.Now,
	}
}

// Resolve starts a single-shot lookup and returns immediately. A cached fix
// younger than maxAge resolves the lookup without contacting the provider.
// Cancelling ctx resolves the lookup as a timeout.
func (e *Enricher) Resolve(ctx context.Context, timeout, maxAge time.Duration) *Lookup {
	lookup := &Lookup{done: make(chan struct{})}

	if fix, ok := e.cachedFix(maxAge); ok {
		lookup.complete(&fix, nil)
		return lookup
	}

	var (
		lookupCtx context.Context
		cancel    context.CancelFunc
	)
	if timeout > 0 {
		lookupCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		lookupCtx, cancel = context.WithCancel(ctx)
	}
	lookup.cancel = cancel

	go func() {
		defer cancel()
		fix, err := e.provider.Locate(lookupCtx)
		if err == nil && lookupCtx.Err() != nil {
			err = lookupCtx.Err()
		}
		if err != nil {
			locErr := asLocationError(err)
			logging.WarnWithContext(e.logger, "location unresolved", "location_unresolved",
				logging.String("reason", string(locErr.Reason)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check network access or the location provider setting"),
				logging.String(logging.FieldImpact, "the caption reports the location as not determined"),
			)
			lookup.complete(nil, locErr)
			return
		}
		if fix.Timestamp.IsZero() {
			fix.Timestamp = e.now()
		}
		e.mu.Lock()
		stored := fix
		e.cached = &stored
		e.mu.Unlock()
		e.logger.Debug("location resolved",
			logging.Float64("latitude", fix.Latitude),
			logging.Float64("longitude", fix.Longitude),
			logging.Float64("accuracy_m", fix.AccuracyMeters),
		)
		lookup.complete(&fix, nil)
	}()
	return lookup
}

func (e *Enricher) cachedFix(maxAge time.Duration) (Fix, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cached == nil || maxAge <= 0 {
		return Fix{}, false
	}
	if e.now().Sub(e.cached.Timestamp) > maxAge {
		return Fix{}, false
	}
	return *e.cached, true
}

func asLocationError(err error) *Error {
	var locErr *Error
	if errors.As(err, &locErr) {
		return locErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Reason: ReasonTimeout, Err: err}
	}
	return &Error{Reason: ReasonPositionUnavailable, Err: err}
}

// Snapshot is the non-blocking view of a lookup.
type Snapshot struct {
	Resolved bool
	Fix      *Fix
	Reason   Reason
}

// Determined reports whether a position is available.
func (s Snapshot) Determined() bool {
	return s.Fix != nil
}

// Lookup is an in-flight or finished position request.
type Lookup struct {
	done   chan struct{}
	cancel context.CancelFunc

	mu   sync.Mutex
	fix  *Fix
	err  *Error
	once sync.Once
}

// Resolved returns a lookup that already holds fix.
func Resolved(fix Fix) *Lookup {
	l := &Lookup{done: make(chan struct{})}
	l.complete(&fix, nil)
	return l
}

// Failed returns a lookup that already failed with reason.
func Failed(reason Reason) *Lookup {
	l := &Lookup{done: make(chan struct{})}
	l.complete(nil, &Error{Reason: reason})
	return l
}

func (l *Lookup) complete(fix *Fix, err *Error) {
	l.once.Do(func() {
		l.mu.Lock()
		l.fix = fix
		l.err = err
		l.mu.Unlock()
		close(l.done)
	})
}

// Snapshot returns the current state without blocking.
func (l *Lookup) Snapshot() Snapshot {
	if l == nil {
		return Snapshot{}
	}
	select {
	case <-l.done:
	default:
		return Snapshot{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	snap := Snapshot{Resolved: true}
	if l.fix != nil {
		fix := *l.fix
		snap.Fix = &fix
	}
	if l.err != nil {
		snap.Reason = l.err.Reason
	}
	return snap
}

// Wait blocks until the lookup finishes or ctx is done, then returns a
// snapshot.
func (l *Lookup) Wait(ctx context.Context) Snapshot {
	if l == nil {
		return Snapshot{}
	}
	select {
	case <-l.done:
	case <-ctx.Done():
	}
	return l.Snapshot()
}

// Done is closed once the lookup finishes.
func (l *Lookup) Done() <-chan struct{} { return l.done }

// Cancel abandons an in-flight lookup. The lookup resolves as a timeout.
func (l *Lookup) Cancel() {
	if l != nil && l.cancel != nil {
		l.cancel()
	}
}
