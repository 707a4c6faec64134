package discovery

import (
	"log/slog"
	"time"

	"tvrec/internal/capture"
	"tvrec/internal/config"
	"tvrec/internal/hdhr"
	"tvrec/internal/job"
	"tvrec/internal/v4l"
)

// Timing converts the capture poll settings into pipeline timing.
func Timing(cfg *config.Config) job.Timing {
	return job.Timing{
		Unit:       time.Second,
		Coarse:     time.Duration(cfg.Capture.CoarsePollMS) * time.Millisecond,
		Fine:       time.Duration(cfg.Capture.FinePollMS) * time.Millisecond,
		FineWindow: time.Duration(cfg.Capture.FineWindowSeconds) * time.Second,
	}
}

// CaptureOptions converts the capture section into capture strategy options.
func CaptureOptions(cfg *config.Config, logger *slog.Logger) capture.Options {
	return capture.Options{
		FFmpeg:     cfg.Tools.FFmpeg,
		Codecs:     capture.Codecs{Video: cfg.Capture.VideoCodec, Audio: cfg.Capture.AudioCodec},
		PortMin:    cfg.Capture.RelayPortMin,
		PortMax:    cfg.Capture.RelayPortMax,
		StartDelay: cfg.RelayStartDelay(),
		Grace:      cfg.StopGrace(),
		Logger:     logger,
	}
}

// NetworkOptions builds the options shared by network recorders.
func NetworkOptions(cfg *config.Config, logger *slog.Logger) hdhr.Options {
	return hdhr.Options{
		CLI:              hdhr.CLI{Binary: cfg.Tools.HDHomeRunConfig},
		Capture:          CaptureOptions(cfg, logger),
		HTTPPort:         cfg.HDHomeRun.HTTPPort,
		TranscodeProfile: cfg.HDHomeRun.TranscodeProfile,
		Timing:           Timing(cfg),
		ScanDir:          cfg.Paths.ConfigDir,
		Logger:           logger,
	}
}

// LocalOptions builds the options shared by local recorders.
func LocalOptions(cfg *config.Config, logger *slog.Logger) v4l.Options {
	return v4l.Options{
		CLI:     v4l.CLI{Binary: cfg.Tools.V4L2Ctl},
		Capture: CaptureOptions(cfg, logger),
		Timing:  Timing(cfg),
		Logger:  logger,
	}
}
