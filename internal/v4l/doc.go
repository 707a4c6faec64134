// Package v4l drives local capture cards through v4l2-ctl.
//
// Parsers for --info, input listings and control menus are kept separate from
// process execution. Probe derives a default recorder configuration from a
// card's inputs and controls; Pipeline applies it, tunes and captures.
package v4l
