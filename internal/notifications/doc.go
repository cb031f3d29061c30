// Package notifications publishes lead delivery events to ntfy.
//
// When no topic is configured the service degrades to a no-op. Delivery code
// publishes exactly one event per terminal attempt state; the sent and failed
// toggles in config.toml suppress the corresponding events.
package notifications
