// Package logging assembles structured slog loggers and formatting helpers used
// across leadcast.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so delivery code can tag log
// lines with attempt IDs, channels, and outcome tags. A no-op logger is
// provided for tests and wiring code that cannot fail.
package logging
