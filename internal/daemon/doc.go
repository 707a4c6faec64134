// Package daemon coordinates the long-running tvrec process.
//
// It wires configuration, the sqlite store, the recorder registry, device
// discovery and the udev hotplug monitor into a single lifecycle with
// flock-based locking to prevent multiple instances. Background loops rerun
// discovery on an interval, settle recordings whose pipelines have ended and
// drain reschedule requests queued by the coordination layer.
//
// Keep orchestration logic here: recorder behavior lives in the family
// packages and recording bookkeeping in nms.
package daemon
