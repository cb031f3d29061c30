// Package delivery hands a recorded lead to the remote operator.
//
// An Orchestrator walks an ordered chain of Channels (Telegram video,
// Telegram document, host share facility, local save plus manual link) and
// stops at the first one that succeeds. Each Attempt carries a send guard so
// a second concurrent Deliver on the same attempt returns ErrInFlight without
// touching the network. Outcome tags are routed to bot destinations by a
// Router built from configuration.
//
// Terminal states publish exactly one notification and write the channel
// steps to the journal. Record field values never reach the journal.
package delivery
