package telegram

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"leadcast/internal/services"
)

// Kind groups Bot API failures by what the caller can do about them.
type Kind string

const (
	KindTooLarge     Kind = "too-large"
	KindUnauthorized Kind = "unauthorized"
	KindChatNotFound Kind = "chat-not-found"
	KindFormat       Kind = "format"
	KindTimeout      Kind = "timeout"
	KindGeneric      Kind = "generic"
)

// APIError is a failed Bot API call.
type APIError struct {
	Method      string
	StatusCode  int
	ErrorCode   int
	Description string
	RetryAfter  time.Duration
	Kind        Kind
	Err         error
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString("telegram ")
	b.WriteString(e.Method)
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, ": http %d", e.StatusCode)
	}
	if e.Description != "" {
		b.WriteString(": ")
		b.WriteString(e.Description)
	}
	return b.String()
}

func (e *APIError) Unwrap() []error {
	errs := []error{e.marker()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *APIError) marker() error {
	switch e.Kind {
	case KindTooLarge, KindFormat:
		return services.ErrValidation
	case KindUnauthorized:
		return services.ErrConfiguration
	case KindChatNotFound:
		return services.ErrNotFound
	case KindTimeout:
		return services.ErrTimeout
	default:
		return services.ErrExternalTool
	}
}

// Classify maps an HTTP status (or API error_code) and description onto a Kind.
func Classify(status int, description string) Kind {
	desc := strings.ToLower(description)
	switch {
	case status == http.StatusRequestEntityTooLarge,
		strings.Contains(desc, "too big"),
		strings.Contains(desc, "too large"),
		strings.Contains(desc, "entity too large"):
		return KindTooLarge
	case strings.Contains(desc, "chat not found"),
		strings.Contains(desc, "user not found"),
		strings.Contains(desc, "peer_id_invalid"),
		strings.Contains(desc, "chat_id is empty"):
		return KindChatNotFound
	case status == http.StatusUnauthorized,
		status == http.StatusForbidden,
		status == http.StatusNotFound,
		strings.Contains(desc, "unauthorized"),
		strings.Contains(desc, "forbidden"),
		strings.Contains(desc, "bot was blocked"),
		strings.Contains(desc, "not enough rights"):
		return KindUnauthorized
	case strings.Contains(desc, "wrong file"),
		strings.Contains(desc, "wrong type"),
		strings.Contains(desc, "invalid file"),
		strings.Contains(desc, "content_type_invalid"),
		strings.Contains(desc, "failed to get http url content"),
		strings.Contains(desc, "process_failed"),
		strings.Contains(desc, "unsupported"):
		return KindFormat
	case status == http.StatusGatewayTimeout,
		strings.Contains(desc, "timeout"),
		strings.Contains(desc, "timed out"):
		return KindTimeout
	default:
		return KindGeneric
	}
}
