// Package fileutil holds filesystem helpers for recorder configuration files,
// scan maps and recording artifacts.
package fileutil
