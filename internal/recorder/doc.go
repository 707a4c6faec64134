// Package recorder defines the Recorder contract shared by both tuner
// families, the session bookkeeping that keeps one pipeline per device, and
// the properties-file store that persists each device's configuration.
package recorder
