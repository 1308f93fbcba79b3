// Package config loads, normalizes, and validates adreact configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ADREACT_NTFY_TOPIC. The Config type centralizes every knob the daemon,
// the CLI, and the recorder need so directories, timeouts, and service
// credentials are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
