package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateFamilies(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateFamilies() error {
	if !c.HDHomeRun.Enabled && !c.V4L2.Enabled {
		return errors.New("at least one of hdhomerun.enabled or v4l2.enabled must be true")
	}
	if err := validateReadMode("hdhomerun.read_mode", c.HDHomeRun.ReadMode); err != nil {
		return err
	}
	if err := validateReadMode("v4l2.read_mode", c.V4L2.ReadMode); err != nil {
		return err
	}
	if c.HDHomeRun.HTTPPort > 65535 {
		return errors.New("hdhomerun.http_port must be a valid port")
	}
	return nil
}

func (c *Config) validateCapture() error {
	if err := ensurePositiveMap(map[string]int{
		"capture.relay_port_min":        c.Capture.RelayPortMin,
		"capture.relay_port_max":        c.Capture.RelayPortMax,
		"capture.coarse_poll_ms":        c.Capture.CoarsePollMS,
		"capture.fine_poll_ms":          c.Capture.FinePollMS,
		"capture.fine_window_seconds":   c.Capture.FineWindowSeconds,
		"capture.stop_grace_ms":         c.Capture.StopGraceMS,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Capture.RelayPortMin > c.Capture.RelayPortMax {
		return errors.New("capture.relay_port_min must not exceed capture.relay_port_max")
	}
	if c.Capture.RelayPortMax > 65535 {
		return errors.New("capture.relay_port_max must be a valid port")
	}
	if c.Capture.FinePollMS > c.Capture.CoarsePollMS {
		return errors.New("capture.fine_poll_ms must not exceed capture.coarse_poll_ms")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}

func validateReadMode(key, value string) error {
	switch value {
	case "copy", "udp", "transcode":
		return nil
	default:
		return fmt.Errorf("%s must be copy, udp or transcode, got %q", key, value)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
