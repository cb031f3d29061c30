// Package config loads, normalizes, and validates leadcast configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// LEADCAST_<OUTCOME>_BOT_TOKEN. The Config type centralizes every knob the
// capture session, the delivery channels and the CLI need, so outcome routes
// and device settings are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
