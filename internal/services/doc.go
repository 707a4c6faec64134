// Package services defines shared utilities consumed by the recorders, the
// discovery service and the management layer.
//
// Key responsibilities:
//   - Context helpers that stamp device keys, recording IDs, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (busy device, missing tool, bad configuration) with errors.Is.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability, retries) stays uniform across device families.
package services
