package delivery

import (
	"context"
	"time"
)

// Channel names used in logs, journal entries and notifications.
const (
	ChannelTelegramVideo    = "telegram-video"
	ChannelTelegramDocument = "telegram-document"
	ChannelShare            = "share"
	ChannelLocalSave        = "local-save"
)

// Status is the terminal state of a step or an attempt.
type Status string

const (
	StatusSent   Status = "sent"
	StatusManual Status = "manual"
	StatusFailed Status = "failed"
)

// Payload is what every channel receives. Data is shared and must not be
// modified.
type Payload struct {
	AttemptID   string
	Identifier  string
	Destination Destination
	Data        []byte
	FileName    string
	ContentType string
	Extension   string
	Caption     string
	Text        string
	Title       string
}

// Size returns the payload length in bytes.
func (p *Payload) Size() int64 {
	return int64(len(p.Data))
}

// Receipt describes a successful channel step.
type Receipt struct {
	Status    Status
	MessageID int64
	Path      string
	Link      string
}

// StepResult is the outcome of one channel in the chain.
type StepResult struct {
	Channel  string
	Status   Status
	Kind     Kind
	Err      error
	Receipt  Receipt
	Duration time.Duration
}

// Channel is one delivery path.
type Channel interface {
	Name() string
	// Accepts reports whether the channel should run given the previous
	// failed step, which is nil for the first channel that runs.
	Accepts(payload *Payload, previous *StepResult) bool
	Send(ctx context.Context, payload *Payload) (Receipt, error)
}

// Result summarizes an attempt.
type Result struct {
	AttemptID   string
	Status      Status
	Channel     string
	Destination Destination
	Path        string
	Steps       []StepResult
	// Err is the last channel error for Manual and Failed results. Sent
	// results leave it nil; earlier failed steps stay in Steps.
	Err error
}
