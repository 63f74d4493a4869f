// Package config loads, normalizes, and validates logsite configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts) and reads TOML files. The Config type centralizes the refresh
// cadence, line window sizes, transfer policy and logging knobs that the
// daemon and CLI share, and derives the runtime file locations (socket, lock,
// pid, site database) from the configured directories.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
