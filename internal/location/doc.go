// Package location resolves a best-effort position for lead captions.
//
// Lookups are single-shot and run in the background; callers take a
// non-blocking Snapshot when they build the message. Failures never block
// delivery and are reported as one of three reasons.
package location
