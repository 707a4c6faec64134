package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir      string `toml:"state_dir"`
	ConfigDir     string `toml:"config_dir"`
	RecordingsDir string `toml:"recordings_dir"`
	LineupFile    string `toml:"lineup_file"`
}

// Tools names the external command-line programs the recorders drive.
type Tools struct {
	HDHomeRunConfig string `toml:"hdhomerun_config"`
	V4L2Ctl         string `toml:"v4l2_ctl"`
	FFmpeg          string `toml:"ffmpeg"`
}

// HDHomeRun contains configuration for network tuner discovery.
type HDHomeRun struct {
	Enabled          bool   `toml:"enabled"`
	TunerCount       int    `toml:"tuner_count"`
	HTTPPort         int    `toml:"http_port"`
	TranscodeProfile string `toml:"transcode_profile"`
	ReadMode         string `toml:"read_mode"`
}

// V4L2 contains configuration for local capture device discovery.
type V4L2 struct {
	Enabled         bool     `toml:"enabled"`
	DeviceDir       string   `toml:"device_dir"`
	MaxIndex        int      `toml:"max_index"`
	FrequencyTables []string `toml:"frequency_tables"`
	ReadMode        string   `toml:"read_mode"`
}

// Capture contains timing and relay settings shared by every pipeline.
type Capture struct {
	RelayPortMin       int    `toml:"relay_port_min"`
	RelayPortMax       int    `toml:"relay_port_max"`
	RelayStartDelayMS  int    `toml:"relay_start_delay_ms"`
	CoarsePollMS       int    `toml:"coarse_poll_ms"`
	FinePollMS         int    `toml:"fine_poll_ms"`
	FineWindowSeconds  int    `toml:"fine_window_seconds"`
	StopGraceMS        int    `toml:"stop_grace_ms"`
	VideoCodec         string `toml:"video_codec"`
	AudioCodec         string `toml:"audio_codec"`
	IndexExtension     string `toml:"index_extension"`
	RecordingExtension string `toml:"recording_extension"`
}

// NMS contains settings for the management layer.
type NMS struct {
	DeleteDelayMS     int `toml:"delete_delay_ms"`
	DiscoveryInterval int `toml:"discovery_interval"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for tvrec.
//
// Configuration sections by subsystem:
//   - Paths: state, recorder configuration and recording directories
//   - Tools: external binaries
//   - HDHomeRun: network tuner family
//   - V4L2: local capture family
//   - Capture: pipeline timing and UDP relay
//   - NMS: recording removal and discovery cadence
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Tools         Tools         `toml:"tools"`
	HDHomeRun     HDHomeRun     `toml:"hdhomerun"`
	V4L2          V4L2          `toml:"v4l2"`
	Capture       Capture       `toml:"capture"`
	NMS           NMS           `toml:"nms"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/tvrec/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tvrec.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// RecordingsDir is created on a best-effort basis so the daemon can run when
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.ConfigDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.RecordingsDir) != "" {
		_ = os.MkdirAll(c.Paths.RecordingsDir, 0o755)
	}
	return nil
}

// DatabasePath is the sqlite file backing recordings and history.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "tvrec.db")
}

// LockPath is the daemon's single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "tvrecd.lock")
}

// SocketPath is the daemon's IPC socket.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "tvrecd.sock")
}

// LogPath is the daemon log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.StateDir, "tvrec.log")
}

// DeleteDelay is how long removeRecording waits before touching the filesystem.
func (c *Config) DeleteDelay() time.Duration {
	return time.Duration(c.NMS.DeleteDelayMS) * time.Millisecond
}

// RelayStartDelay is the maximum wait between starting the relay reader and its sender.
func (c *Config) RelayStartDelay() time.Duration {
	return time.Duration(c.Capture.RelayStartDelayMS) * time.Millisecond
}

// StopGrace is how long a stopped process gets before it is killed.
func (c *Config) StopGrace() time.Duration {
	return time.Duration(c.Capture.StopGraceMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
