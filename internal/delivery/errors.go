package delivery

import (
	"context"
	"errors"
	"fmt"

	"leadcast/internal/capture"
	"leadcast/internal/location"
	"leadcast/internal/services"
	"leadcast/internal/services/telegram"
)

// Kind classifies why a capture or delivery step failed.
type Kind string

const (
	KindDeviceUnavailable        Kind = "device-unavailable"
	KindRecordingEmpty           Kind = "recording-empty"
	KindNetworkTimeout           Kind = "network-timeout"
	KindDestinationRejected      Kind = "destination-rejected"
	KindDestinationNotFound      Kind = "destination-not-found"
	KindPayloadTooLarge          Kind = "payload-too-large"
	KindFormatRejected           Kind = "format-rejected"
	KindPlatformShareUnsupported Kind = "share-unsupported"
	KindLocationUnresolved       Kind = "location-unresolved"
	KindGeneric                  Kind = "generic"
)

var (
	// ErrInFlight is returned when the attempt is already being delivered.
	ErrInFlight = errors.New("delivery already in flight")
	// ErrUnknownOutcome is returned when no route matches the outcome tag.
	ErrUnknownOutcome = errors.New("unknown outcome")
	// ErrNoChannels is returned when no channel in the chain accepts the payload.
	ErrNoChannels = errors.New("no delivery channel accepted the payload")
)

// ChannelError is a failed channel step.
type ChannelError struct {
	Channel string
	Kind    Kind
	Err     error
}

func (e *ChannelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Channel, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Channel, e.Kind, e.Err)
}

func (e *ChannelError) Unwrap() []error {
	errs := []error{kindMarker(e.Kind)}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func kindMarker(kind Kind) error {
	switch kind {
	case KindRecordingEmpty, KindPayloadTooLarge, KindFormatRejected:
		return services.ErrValidation
	case KindDestinationRejected, KindPlatformShareUnsupported:
		return services.ErrConfiguration
	case KindDestinationNotFound:
		return services.ErrNotFound
	case KindNetworkTimeout:
		return services.ErrTimeout
	case KindLocationUnresolved:
		return services.ErrTransient
	default:
		return services.ErrExternalTool
	}
}

// KindOf classifies err. Unrecognized errors are KindGeneric.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var channelErr *ChannelError
	if errors.As(err, &channelErr) {
		return channelErr.Kind
	}
	var apiErr *telegram.APIError
	if errors.As(err, &apiErr) {
		return kindFromTelegram(apiErr.Kind)
	}
	var locErr *location.Error
	switch {
	case errors.Is(err, capture.ErrDeviceUnavailable):
		return KindDeviceUnavailable
	case errors.Is(err, capture.ErrRecordingEmpty):
		return KindRecordingEmpty
	case errors.As(err, &locErr):
		return KindLocationUnresolved
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, services.ErrTimeout):
		return KindNetworkTimeout
	default:
		return KindGeneric
	}
}

func kindFromTelegram(kind telegram.Kind) Kind {
	switch kind {
	case telegram.KindTooLarge:
		return KindPayloadTooLarge
	case telegram.KindFormat:
		return KindFormatRejected
	case telegram.KindUnauthorized:
		return KindDestinationRejected
	case telegram.KindChatNotFound:
		return KindDestinationNotFound
	case telegram.KindTimeout:
		return KindNetworkTimeout
	default:
		return KindGeneric
	}
}

func channelError(channel string, err error) *ChannelError {
	var channelErr *ChannelError
	if errors.As(err, &channelErr) {
		return channelErr
	}
	return &ChannelError{Channel: channel, Kind: KindOf(err), Err: err}
}
