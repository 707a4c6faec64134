// Package logging assembles structured slog loggers and formatting helpers used
// across tvrec.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with device keys, recording IDs, and stages. The console handler
// renders the component and device as a prefix so interleaved output from
// several tuners stays readable. A no-op logger is provided for tests and
// wiring code that cannot fail.
package logging
