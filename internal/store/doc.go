// Package store persists recordings, recording rules, the recorded-history
// set, configured listings and rescheduling requests in SQLite.
//
// Store implements the scheduler storage the coordination layer consumes.
// Rescheduling requests are queued in the database and signalled on a
// channel so the daemon can drain them; deciding what to record is left to
// the scheduler that consumes them.
package store
