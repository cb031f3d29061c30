// Package services defines shared utilities consumed by the capture pipeline,
// the delivery channels and the external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp delivery attempt IDs, channel names, outcome
//     tags and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (retryable vs configuration/validation problems) without
//     string matching.
//
// Use these helpers when wiring new components so operational behaviour
// (error handling, observability) stays uniform across the tool.
package services
