package hdhr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"tvrec/internal/capture"
	"tvrec/internal/device"
	"tvrec/internal/job"
	"tvrec/internal/logging"
	"tvrec/internal/recorder"
	"tvrec/internal/services"
)

// DefaultHTTPPort is the tuner's built-in HTTP streaming port.
const DefaultHTTPPort = 5004

// ChannelMaps are the channel plans the helper accepts.
var ChannelMaps = []string{"us-bcast", "us-cable", "us-hrc", "us-irc", "eu-bcast", "eu-cable", "au-bcast", "au-cable"}

// Options carries what every network recorder shares.
type Options struct {
	CLI              CLI
	Capture          capture.Options
	HTTPPort         int
	TranscodeProfile string
	Timing           job.Timing
	ScanDir          string
	Logger           *slog.Logger
}

// Recorder drives one tuner of one network device.
type Recorder struct {
	*recorder.Base

	desc  device.NetworkDescriptor
	tuner int
	opts  Options
}

var _ recorder.Recorder = (*Recorder)(nil)

// DefaultConfiguration synthesizes the configuration of a newly found tuner.
func DefaultConfiguration(desc device.NetworkDescriptor, tuner int, readMode device.ReadMode) *recorder.Configuration {
	title := DisplayTitle(desc.Model)
	key := desc.Key(tuner)
	cfg := recorder.NewConfiguration(device.Source(title, key), device.FamilyHDHomeRun)
	cfg.Set(recorder.KeyTitle, title)
	cfg.Set(recorder.KeyDevice, key)
	if readMode == "" {
		readMode = device.ReadCopy
	}
	cfg.Set(recorder.KeyReadMode, string(readMode))
	cfg.SetChoices(recorder.KeyChannelMapChoices, ChannelMaps)
	cfg.SetDefault(recorder.KeyChannelMap, "")
	cfg.SetDefault(recorder.KeyCustomChannels, "")
	cfg.SetDefault(recorder.KeyCustomChannelMode, recorder.ModeWhitelist)
	return cfg
}

// NewRecorder builds the recorder for tuner of desc. A nil cfg uses
// DefaultConfiguration with copy read mode.
func NewRecorder(desc device.NetworkDescriptor, tuner int, cfg *recorder.Configuration, opts Options) *Recorder {
	if cfg == nil {
		cfg = DefaultConfiguration(desc, tuner, device.ReadCopy)
	}
	if opts.HTTPPort <= 0 {
		opts.HTTPPort = DefaultHTTPPort
	}
	title := cfg.Get(recorder.KeyTitle)
	if title == "" {
		title = DisplayTitle(desc.Model)
	}
	return &Recorder{
		Base:  recorder.NewBase(title, desc.Key(tuner), device.FamilyHDHomeRun, cfg, opts.Logger),
		desc:  desc,
		tuner: tuner,
		opts:  opts,
	}
}

// Descriptor is the network device this recorder belongs to.
func (r *Recorder) Descriptor() device.NetworkDescriptor { return r.desc }

// Tuner is the tuner index.
func (r *Recorder) Tuner() int { return r.tuner }

// StartRecording tunes and captures req.Channel into req.DestinationFile for
// the requested duration. It returns services.ErrBusy while another pipeline
// runs on this tuner.
func (r *Recorder) StartRecording(req recorder.Request) error {
	ch := r.resolveChannel(req.Channel)
	var build func() job.Job
	if strings.TrimSpace(req.DestinationFile) == "" {
		r.Logger().Warn("no destination file; capture stage skipped", logging.RecordingID(req.RecordingID))
	} else {
		dest := req.DestinationFile
		build = func() job.Job { return r.captureJob(ch, dest) }
	}
	mode := r.Configuration().ReadMode()
	pipeline := NewPipeline(PipelineConfig{
		CLI:             r.opts.CLI,
		DeviceID:        r.desc.ID,
		Tuner:           r.tuner,
		Channel:         ch,
		ChannelMap:      r.Configuration().Get(recorder.KeyChannelMap),
		Capture:         build,
		DurationSeconds: req.DurationSeconds,
		Timing:          r.opts.Timing,
		Reset:           true,
		ClearTarget:     mode == device.ReadUDP,
		Grace:           r.opts.Capture.Grace,
		Logger:          r.Logger(),
	})
	err := r.Launch(recorder.Session{
		RecordingID:     req.RecordingID,
		Channel:         ch,
		DurationSeconds: req.DurationSeconds,
		DestinationFile: req.DestinationFile,
		RecordingLiveTV: req.LiveTV,
		Recording:       true,
	}, pipeline)
	if err == nil {
		r.Logger().Info("recording started",
			logging.RecordingID(req.RecordingID),
			logging.String("channel", ch.Number),
			logging.Int("frequency", ch.Frequency),
			logging.Int("duration_seconds", req.DurationSeconds),
			logging.String("read_mode", string(mode)),
		)
	}
	return err
}

func (r *Recorder) StopRecording() {
	r.Logger().Info("recording stop requested")
	r.Halt()
}

// StartStreaming tunes ch and sends the transport stream to host:port until
// StopStreaming.
func (r *Recorder) StartStreaming(ch device.Channel, host string, port int) error {
	ch = r.resolveChannel(ch)
	target := TargetURL(host, port)
	pipeline := NewPipeline(PipelineConfig{
		CLI:      r.opts.CLI,
		DeviceID: r.desc.ID,
		Tuner:    r.tuner,
		Channel:  ch,
		Capture: func() job.Job {
			return newTargetJob(r.opts.CLI.SetTarget(r.desc.ID, r.tuner, target), r.opts.Capture.Grace)
		},
		Continuous:  true,
		Timing:      r.opts.Timing,
		Reset:       true,
		ClearTarget: true,
		Grace:       r.opts.Capture.Grace,
		Logger:      r.Logger(),
	})
	return r.Launch(recorder.Session{Channel: ch, Streaming: true, StreamTarget: target}, pipeline)
}

func (r *Recorder) StopStreaming() {
	r.Halt()
}

func (r *Recorder) SupportsScan() bool { return true }

// PerformScan scans the tuner and persists the scan map matched against
// channels. The tuner counts as busy while scanning.
func (r *Recorder) PerformScan(ctx context.Context, channels []device.Channel) ([]device.Channel, error) {
	scan := NewScanJob(ScanConfig{
		CLI:        r.opts.CLI,
		DeviceID:   r.desc.ID,
		Tuner:      r.tuner,
		ChannelMap: r.Configuration().Get(recorder.KeyChannelMap),
		Channels:   r.Configuration().FilterChannels(channels),
		Dir:        r.opts.ScanDir,
		Grace:      r.opts.Capture.Grace,
		Logger:     r.Logger(),
	})
	if err := r.Launch(recorder.Session{RecordingID: "scan", Recording: true}, scan); err != nil {
		return nil, err
	}
	if err := r.Wait(ctx); err != nil {
		r.Halt()
		return nil, services.Wrap(services.ErrTimeout, "hdhr", "scan", r.Device(), err)
	}
	result, path := scan.Result()
	if path == "" {
		return nil, services.Wrap(services.ErrExternalTool, "hdhr", "scan", "scan map not written", nil)
	}
	return result.Channels(), nil
}

// QuickTune tunes ch without capturing or detuning afterwards. The tuner is
// busy until the tune has finished.
func (r *Recorder) QuickTune(ctx context.Context, ch device.Channel) error {
	ch = r.resolveChannel(ch)
	pipeline := NewPipeline(PipelineConfig{
		CLI:      r.opts.CLI,
		DeviceID: r.desc.ID,
		Tuner:    r.tuner,
		Channel:  ch,
		Grace:    r.opts.Capture.Grace,
		Logger:   r.Logger(),
	})
	if err := r.Launch(recorder.Session{RecordingID: recorder.QuickTuneID, Channel: ch, Recording: true}, pipeline); err != nil {
		return err
	}
	if err := r.Wait(ctx); err != nil {
		r.Halt()
		return services.Wrap(services.ErrTimeout, "hdhr", "quick tune", r.Device(), err)
	}
	return nil
}

// ScanMap loads the persisted scan map for this tuner.
func (r *Recorder) ScanMap() (ScanMap, string, error) {
	return LoadScanMap(r.opts.ScanDir, r.Device())
}

// resolveChannel fills in the RF channel from the scan map when the caller
// only knows the channel number.
func (r *Recorder) resolveChannel(ch device.Channel) device.Channel {
	if ch.Frequency > 0 || r.opts.ScanDir == "" {
		return ch
	}
	m, path, err := r.ScanMap()
	if err != nil {
		r.Logger().Debug("no scan map for channel lookup", logging.Error(err))
		return ch
	}
	if entry, ok := m[ch.Number]; ok {
		ch.Frequency = entry.Frequency
		if ch.ReferenceNumber == "" {
			ch.ReferenceNumber = entry.Reference
		}
		r.Logger().Debug("channel resolved from scan map", logging.String("scan_file", path), logging.Int("frequency", ch.Frequency))
	}
	return ch
}

// HTTPURL is the tuner's HTTP stream for a channel, optionally transcoded on
// the device.
func HTTPURL(ip string, port, tuner int, number, profile string) string {
	url := fmt.Sprintf("http://%s:%d/tuner%d/v%s", ip, port, tuner, number)
	if profile != "" {
		url += "?transcode=" + profile
	}
	return url
}

func (r *Recorder) captureJob(ch device.Channel, dest string) job.Job {
	opts := r.opts.Capture
	if opts.Logger == nil {
		opts.Logger = r.Logger()
	}
	switch r.Configuration().ReadMode() {
	case device.ReadUDP:
		return capture.NewRelay(capture.RelayConfig{
			PortMin:    opts.PortMin,
			PortMax:    opts.PortMax,
			StartDelay: opts.StartDelay,
			Logger:     opts.Logger,
			Reader: func(port int) job.Job {
				return capture.NewRemux(opts, capture.UDPInput(port), dest)
			},
			Sender: func(port int) job.Job {
				return newTargetJob(r.opts.CLI.SetTarget(r.desc.ID, r.tuner, TargetURL("127.0.0.1", port)), opts.Grace)
			},
		})
	case device.ReadTranscode:
		return capture.NewTranscode(opts, HTTPURL(r.desc.IPAddress, r.opts.HTTPPort, r.tuner, ch.Number, r.opts.TranscodeProfile), dest)
	default:
		return job.NewProcess("save", r.opts.CLI.Save(r.desc.ID, r.tuner, dest), job.WithGrace(opts.Grace))
	}
}
