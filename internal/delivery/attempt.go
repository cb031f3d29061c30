package delivery

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"leadcast/internal/capture"
	"leadcast/internal/location"
	"leadcast/internal/services"
)

// Attempt is one send of one record and artifact. It lives until its
// terminal state is reported and is never persisted.
type Attempt struct {
	ID        string
	Record    Record
	Artifact  *capture.Artifact
	Location  *location.Lookup
	Outcome   string
	CreatedAt time.Time

	inFlight atomic.Bool
}

// NewAttempt validates the record and artifact. A nil lookup is treated as
// an unresolved location.
func NewAttempt(record Record, artifact *capture.Artifact, lookup *location.Lookup, outcome string) (*Attempt, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}
	if artifact == nil || artifact.Size() == 0 {
		return nil, services.Wrap(services.ErrValidation, "delivery", "new attempt", "artifact is empty", nil)
	}
	return &Attempt{
		ID:        uuid.NewString(),
		Record:    record,
		Artifact:  artifact,
		Location:  lookup,
		Outcome:   strings.ToLower(strings.TrimSpace(outcome)),
		CreatedAt: time.Now(),
	}, nil
}

// InFlight reports whether a Deliver call currently holds the guard.
func (a *Attempt) InFlight() bool {
	return a.inFlight.Load()
}

func (a *Attempt) acquire() bool {
	return a.inFlight.CompareAndSwap(false, true)
}

func (a *Attempt) release() {
	a.inFlight.Store(false)
}
