package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"tvrec/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Both device families are disabled; tests enable what they exercise.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.ConfigDir = filepath.Join(base, "recorders")
	cfgVal.Paths.RecordingsDir = filepath.Join(base, "recordings")
	cfgVal.Paths.LineupFile = filepath.Join(base, "lineup.yaml")
	cfgVal.HDHomeRun.Enabled = false
	cfgVal.V4L2.Enabled = false
	cfgVal.V4L2.DeviceDir = filepath.Join(base, "dev")
	cfgVal.Capture.RelayStartDelayMS = 50
	cfgVal.Capture.StopGraceMS = 500
	cfgVal.NMS.DeleteDelayMS = 0

	for _, dir := range []string{cfgVal.Paths.StateDir, cfgVal.Paths.ConfigDir, cfgVal.Paths.RecordingsDir, cfgVal.V4L2.DeviceDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithNetworkTuners enables the network family with count tuners per device.
func WithNetworkTuners(count int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.HDHomeRun.Enabled = true
		b.cfg.HDHomeRun.TunerCount = count
	}
}

// WithLocalDevices enables the local capture family.
func WithLocalDevices() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.V4L2.Enabled = true
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default tvrec external
// binaries are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"hdhomerun_config", "v4l2-ctl", "ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// WriteScript writes an executable shell script named name under dir.
func WriteScript(t testing.TB, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script %s: %v", name, err)
	}
	return path
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
