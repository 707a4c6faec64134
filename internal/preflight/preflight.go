package preflight

import (
	"context"
	"strings"

	"tvrec/internal/config"
)

// minRecordingFreeBytes is the free space below which new recordings are
// likely to be truncated.
const minRecordingFreeBytes = 2 << 30

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	results = append(results, CheckDirectoryAccess("Recorder configuration directory", cfg.Paths.ConfigDir))
	results = append(results, CheckDirectoryAccess("Recordings directory", cfg.Paths.RecordingsDir))
	results = append(results, CheckFreeSpace("Recordings free space", cfg.Paths.RecordingsDir, minRecordingFreeBytes))
	results = append(results, CheckLineup(cfg.Paths.LineupFile))

	if cfg.V4L2.Enabled {
		results = append(results, ProbeDevices(cfg.V4L2.DeviceDir, cfg.V4L2.MaxIndex).Result())
	}

	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		results = append(results, CheckNtfy(ctx, cfg.Notifications.NtfyTopic))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, result := range results {
		if !result.Passed {
			out = append(out, result)
		}
	}
	return out
}
