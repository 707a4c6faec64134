package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeFamilies()
	c.normalizeCapture()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ConfigDir) == "" {
		c.Paths.ConfigDir = defaultConfigDir
	}
	if c.Paths.ConfigDir, err = expandPath(c.Paths.ConfigDir); err != nil {
		return fmt.Errorf("paths.config_dir: %w", err)
	}
	if c.Paths.RecordingsDir, err = expandPath(c.Paths.RecordingsDir); err != nil {
		return fmt.Errorf("paths.recordings_dir: %w", err)
	}
	if c.Paths.LineupFile, err = expandPath(c.Paths.LineupFile); err != nil {
		return fmt.Errorf("paths.lineup_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() {
	c.Tools.HDHomeRunConfig = trimOr(c.Tools.HDHomeRunConfig, defaultHDHomeRunConfig)
	c.Tools.V4L2Ctl = trimOr(c.Tools.V4L2Ctl, defaultV4L2Ctl)
	c.Tools.FFmpeg = trimOr(c.Tools.FFmpeg, defaultFFmpeg)
}

func (c *Config) normalizeFamilies() {
	if c.HDHomeRun.TunerCount <= 0 {
		c.HDHomeRun.TunerCount = defaultTunerCount
	}
	if c.HDHomeRun.HTTPPort <= 0 {
		c.HDHomeRun.HTTPPort = defaultHTTPPort
	}
	c.HDHomeRun.TranscodeProfile = trimOr(c.HDHomeRun.TranscodeProfile, defaultTranscodeProfile)
	c.HDHomeRun.ReadMode = strings.ToLower(trimOr(c.HDHomeRun.ReadMode, defaultReadMode))

	c.V4L2.DeviceDir = trimOr(c.V4L2.DeviceDir, defaultDeviceDir)
	if c.V4L2.MaxIndex <= 0 {
		c.V4L2.MaxIndex = defaultMaxIndex
	}
	c.V4L2.ReadMode = strings.ToLower(trimOr(c.V4L2.ReadMode, defaultReadMode))
	tables := make([]string, 0, len(c.V4L2.FrequencyTables))
	seen := make(map[string]struct{}, len(c.V4L2.FrequencyTables))
	for _, table := range c.V4L2.FrequencyTables {
		normalized := strings.ToLower(strings.TrimSpace(table))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		tables = append(tables, normalized)
	}
	if len(tables) == 0 {
		tables = append(tables, defaultFrequencyTables...)
	}
	c.V4L2.FrequencyTables = tables
}

func (c *Config) normalizeCapture() {
	if c.Capture.RelayPortMin <= 0 {
		c.Capture.RelayPortMin = defaultRelayPortMin
	}
	if c.Capture.RelayPortMax <= 0 {
		c.Capture.RelayPortMax = defaultRelayPortMax
	}
	if c.Capture.RelayStartDelayMS < 0 {
		c.Capture.RelayStartDelayMS = defaultRelayStartDelayMS
	}
	if c.Capture.CoarsePollMS <= 0 {
		c.Capture.CoarsePollMS = defaultCoarsePollMS
	}
	if c.Capture.FinePollMS <= 0 {
		c.Capture.FinePollMS = defaultFinePollMS
	}
	if c.Capture.FineWindowSeconds <= 0 {
		c.Capture.FineWindowSeconds = defaultFineWindowSeconds
	}
	if c.Capture.StopGraceMS <= 0 {
		c.Capture.StopGraceMS = defaultStopGraceMS
	}
	c.Capture.VideoCodec = trimOr(c.Capture.VideoCodec, defaultVideoCodec)
	c.Capture.AudioCodec = trimOr(c.Capture.AudioCodec, defaultAudioCodec)
	c.Capture.IndexExtension = strings.TrimPrefix(trimOr(c.Capture.IndexExtension, defaultIndexExtension), ".")
	c.Capture.RecordingExtension = strings.TrimPrefix(trimOr(c.Capture.RecordingExtension, defaultRecordingExtension), ".")
	if c.NMS.DeleteDelayMS < 0 {
		c.NMS.DeleteDelayMS = defaultDeleteDelayMS
	}
	if c.NMS.DiscoveryInterval <= 0 {
		c.NMS.DiscoveryInterval = defaultDiscoveryInterval
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("TVREC_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(trimOr(c.Logging.Format, defaultLogFormat))
	c.Logging.Level = strings.ToLower(trimOr(c.Logging.Level, defaultLogLevel))
}

func trimOr(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}
