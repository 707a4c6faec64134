// Package preflight provides readiness checks for the directories, external
// tools and services tvrec depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll and CheckSystemDeps at startup and logs every
//     failure before it begins discovery.
//   - The CLI "tvrec status" command uses the same functions to display
//     health alongside the daemon's recorder state.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight
