// Package hdhr drives HDHomeRun network tuners through the hdhomerun_config
// command-line helper.
//
// The package is split into an argument builder (CLI), independent parsers for
// discover, model and scan output, the scan map persisted per device, a
// sequential Discoverer, the tuning Pipeline state machine and the Recorder that
// ties them to one (device, tuner) pair.
package hdhr
