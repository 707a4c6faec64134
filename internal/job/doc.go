// Package job is the asynchronous work primitive behind every pipeline.
//
// A Job has a Start/Run/Stop lifecycle and reports Update and Complete events
// to listeners. Container runs one job on its own goroutine. ProcessJob wraps
// an external command and completes only after the child has exited; Stop
// signals the whole process group and falls back to killing by pid. Timing
// computes recording deadlines and the coarse/fine polling cadence used while
// waiting for them.
package job
