package config

const (
	defaultStateDir           = "~/.local/share/tvrec"
	defaultConfigDir          = "~/.config/tvrec/recorders"
	defaultRecordingsDir      = "~/recordings"
	defaultLineupFile         = "~/.config/tvrec/lineup.yaml"
	defaultHDHomeRunConfig    = "hdhomerun_config"
	defaultV4L2Ctl            = "v4l2-ctl"
	defaultFFmpeg             = "ffmpeg"
	defaultTunerCount         = 2
	defaultHTTPPort           = 5004
	defaultTranscodeProfile   = "heavy"
	defaultDeviceDir          = "/dev"
	defaultMaxIndex           = 16
	defaultReadMode           = "copy"
	defaultRelayPortMin       = 4888
	defaultRelayPortMax       = 4999
	defaultRelayStartDelayMS  = 1000
	defaultCoarsePollMS       = 5000
	defaultFinePollMS         = 100
	defaultFineWindowSeconds  = 20
	defaultStopGraceMS        = 3000
	defaultVideoCodec         = "mpeg2video"
	defaultAudioCodec         = "mp2"
	defaultIndexExtension     = "idx"
	defaultRecordingExtension = "mpg"
	defaultDeleteDelayMS      = 1000
	defaultDiscoveryInterval  = 300
	defaultNotifyTimeout      = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

var defaultFrequencyTables = []string{
	"us-bcast",
	"us-cable",
	"us-cable-hrc",
	"japan-bcast",
	"japan-cable",
	"europe-west",
	"europe-east",
	"italy",
	"newzealand",
	"australia",
	"ireland",
	"france",
	"china-bcast",
	"southafrica",
	"argentina",
	"canada-cable",
	"australia-optus",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:      defaultStateDir,
			ConfigDir:     defaultConfigDir,
			RecordingsDir: defaultRecordingsDir,
			LineupFile:    defaultLineupFile,
		},
		Tools: Tools{
			HDHomeRunConfig: defaultHDHomeRunConfig,
			V4L2Ctl:         defaultV4L2Ctl,
			FFmpeg:          defaultFFmpeg,
		},
		HDHomeRun: HDHomeRun{
			Enabled:          true,
			TunerCount:       defaultTunerCount,
			HTTPPort:         defaultHTTPPort,
			TranscodeProfile: defaultTranscodeProfile,
			ReadMode:         defaultReadMode,
		},
		V4L2: V4L2{
			Enabled:         true,
			DeviceDir:       defaultDeviceDir,
			MaxIndex:        defaultMaxIndex,
			FrequencyTables: append([]string(nil), defaultFrequencyTables...),
			ReadMode:        defaultReadMode,
		},
		Capture: Capture{
			RelayPortMin:       defaultRelayPortMin,
			RelayPortMax:       defaultRelayPortMax,
			RelayStartDelayMS:  defaultRelayStartDelayMS,
			CoarsePollMS:       defaultCoarsePollMS,
			FinePollMS:         defaultFinePollMS,
			FineWindowSeconds:  defaultFineWindowSeconds,
			StopGraceMS:        defaultStopGraceMS,
			VideoCodec:         defaultVideoCodec,
			AudioCodec:         defaultAudioCodec,
			IndexExtension:     defaultIndexExtension,
			RecordingExtension: defaultRecordingExtension,
		},
		NMS: NMS{
			DeleteDelayMS:     defaultDeleteDelayMS,
			DiscoveryInterval: defaultDiscoveryInterval,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
