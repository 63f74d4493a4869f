// Package logging assembles structured slog loggers and formatting helpers used
// across logsite.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so request handlers can tag log
// lines with site names and correlation IDs. StreamHub keeps a bounded window
// of recent events that the daemon serves to `logsite events`. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
package logging
