// Package notifications delivers recorder events via ntfy.
//
// NewSender publishes to the topic configured in config.toml and degrades to
// a no-op when no topic is set. Send never blocks the caller: each event is
// published on its own goroutine with a bounded request timeout, and failures
// are only logged.
package notifications
