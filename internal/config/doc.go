// Package config loads, normalizes, and validates tvrec configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TVREC_NTFY_TOPIC. The Config type centralizes every knob the daemon and CLI
// need: where recorder properties and scan maps live, which external tools
// drive the tuners, and how capture pipelines time their polling.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical read modes, and clear validation errors.
package config
