// Package nms is the coordination layer between the recorders, the
// scheduler's storage and the program data sources.
//
// It keeps the registry of recorders, starts and stops recordings on behalf of
// callers, removes recordings together with their artifacts, computes the set
// of recordable channels and applies overrides to upcoming recordings.
package nms
