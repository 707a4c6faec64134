package v4l

import (
	"context"
	"log/slog"
	"strings"

	"tvrec/internal/capture"
	"tvrec/internal/device"
	"tvrec/internal/job"
	"tvrec/internal/logging"
	"tvrec/internal/recorder"
	"tvrec/internal/services"
)

// Options carries what every local recorder shares.
type Options struct {
	CLI     CLI
	Capture capture.Options
	Timing  job.Timing
	Logger  *slog.Logger
}

// Recorder drives one local capture card.
type Recorder struct {
	*recorder.Base

	desc device.LocalDescriptor
	opts Options
}

var _ recorder.Recorder = (*Recorder)(nil)

// NewRecorder builds the recorder for desc. A nil cfg uses DefaultConfiguration
// without probed capabilities.
func NewRecorder(desc device.LocalDescriptor, cfg *recorder.Configuration, opts Options) *Recorder {
	if cfg == nil {
		cfg = DefaultConfiguration(desc, Capabilities{}, nil, device.ReadCopy)
	}
	title := cfg.Get(recorder.KeyTitle)
	if title == "" {
		title = Title(desc)
	}
	return &Recorder{
		Base: recorder.NewBase(title, desc.Key(), device.FamilyV4L2, cfg, opts.Logger),
		desc: desc,
		opts: opts,
	}
}

// Descriptor is the card this recorder drives.
func (r *Recorder) Descriptor() device.LocalDescriptor { return r.desc }

func (r *Recorder) pipelineConfig(ch device.Channel) PipelineConfig {
	cfg := r.Configuration()
	return PipelineConfig{
		CLI:            r.opts.CLI,
		Device:         r.desc.Path,
		Channel:        ch,
		VideoInput:     inputIndex(cfg.Get(recorder.KeyVideoInput)),
		AudioInput:     inputIndex(cfg.Get(recorder.KeyAudioInput)),
		Controls:       cfg.Controls(),
		FrequencyTable: cfg.Get(recorder.KeyFrequencyTable),
		ChannelScript:  cfg.Get(recorder.KeyChannelChangeScript),
		Timing:         r.opts.Timing,
		Grace:          r.opts.Capture.Grace,
		Logger:         r.Logger(),
	}
}

func (r *Recorder) captureOptions() capture.Options {
	opts := r.opts.Capture
	if opts.Logger == nil {
		opts.Logger = r.Logger()
	}
	return opts
}

// StartRecording configures the card, tunes and captures into
// req.DestinationFile using the configured read mode.
func (r *Recorder) StartRecording(req recorder.Request) error {
	pc := r.pipelineConfig(req.Channel)
	pc.DurationSeconds = req.DurationSeconds
	mode := r.Configuration().ReadMode()
	if strings.TrimSpace(req.DestinationFile) == "" {
		r.Logger().Warn("no destination file; capture stage skipped", logging.RecordingID(req.RecordingID))
	} else {
		dest, opts := req.DestinationFile, r.captureOptions()
		pc.Capture = func() job.Job { return capture.ForDevice(mode, opts, r.desc.Path, dest) }
	}
	err := r.Launch(recorder.Session{
		RecordingID:     req.RecordingID,
		Channel:         req.Channel,
		DurationSeconds: req.DurationSeconds,
		DestinationFile: req.DestinationFile,
		RecordingLiveTV: req.LiveTV,
		Recording:       true,
	}, NewPipeline(pc))
	if err == nil {
		r.Logger().Info("recording started",
			logging.RecordingID(req.RecordingID),
			logging.String("channel", req.Channel.Number),
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

// StartStreaming tunes ch and relays the raw stream as UDP datagrams to
// host:port until StopStreaming.
func (r *Recorder) StartStreaming(ch device.Channel, host string, port int) error {
	pc := r.pipelineConfig(ch)
	pc.Continuous = true
	addr := capture.HostPort(host, port)
	pc.Capture = func() job.Job { return capture.NewUDPCopy(r.desc.Path, addr) }
	return r.Launch(recorder.Session{Channel: ch, Streaming: true, StreamTarget: "udp://" + addr}, NewPipeline(pc))
}

func (r *Recorder) StopStreaming() {
	r.Halt()
}

// SupportsScan is false: local cards tune from frequency tables.
func (r *Recorder) SupportsScan() bool { return false }

func (r *Recorder) PerformScan(context.Context, []device.Channel) ([]device.Channel, error) {
	return nil, services.Wrap(services.ErrConfiguration, "v4l", "scan", "channel scans are not supported by "+r.Device(), nil)
}

// QuickTune applies inputs and controls and changes channel without capturing.
func (r *Recorder) QuickTune(ctx context.Context, ch device.Channel) error {
	if err := r.Launch(recorder.Session{RecordingID: recorder.QuickTuneID, Channel: ch, Recording: true}, NewPipeline(r.pipelineConfig(ch))); err != nil {
		return err
	}
	if err := r.Wait(ctx); err != nil {
		r.Halt()
		return services.Wrap(services.ErrTimeout, "v4l", "quick tune", r.Device(), err)
	}
	return nil
}
