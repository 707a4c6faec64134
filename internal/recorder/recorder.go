package recorder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"tvrec/internal/device"
	"tvrec/internal/job"
	"tvrec/internal/logging"
	"tvrec/internal/services"
)

// Request asks a recorder to capture one channel for a bounded duration.
type Request struct {
	RecordingID     string
	Channel         device.Channel
	DurationSeconds int
	DestinationFile string
	LiveTV          bool
}

// QuickTuneID marks the session of a tune-only pipeline.
const QuickTuneID = "quick-tune"

// Session is the state of the recorder's current (or last) capture.
type Session struct {
	RecordingID     string         `json:"recording_id,omitempty"`
	Channel         device.Channel `json:"channel"`
	DurationSeconds int            `json:"duration_seconds"`
	DestinationFile string         `json:"destination_file,omitempty"`
	RecordingLiveTV bool           `json:"recording_live_tv"`
	Recording       bool           `json:"recording"`
	Streaming       bool           `json:"streaming"`
	StreamTarget    string         `json:"stream_target,omitempty"`
	StartedAt       time.Time      `json:"started_at,omitempty"`
}

// Recorder is the device driver contract consumed by the scheduler and the
// management layer.
type Recorder interface {
	Title() string
	Device() string
	Family() device.Family
	Configuration() *Configuration

	StartRecording(Request) error
	StopRecording()
	StartStreaming(ch device.Channel, host string, port int) error
	StopStreaming()
	IsRecording() bool
	Session() Session

	SupportsScan() bool
	PerformScan(ctx context.Context, channels []device.Channel) ([]device.Channel, error)
	QuickTune(ctx context.Context, ch device.Channel) error
}

// DefaultSettleTimeout bounds how long Launch waits for a halted pipeline to
// finish detuning before it reports the recorder busy.
const DefaultSettleTimeout = 10 * time.Second

// Base implements the session bookkeeping shared by both families. A recorder
// runs at most one pipeline; the Base is the mutual-exclusion boundary.
type Base struct {
	title  string
	device string
	family device.Family
	config *Configuration
	logger *slog.Logger
	settle time.Duration

	mu      sync.Mutex
	session Session
	active  *job.Container
}

// NewBase builds the shared recorder state.
func NewBase(title, deviceKey string, family device.Family, cfg *Configuration, logger *slog.Logger) *Base {
	if cfg == nil {
		cfg = NewConfiguration(device.Source(title, deviceKey), family)
	}
	return &Base{
		title:  title,
		device: deviceKey,
		family: family,
		config: cfg,
		logger: logging.NewDeviceLogger(logger, "recorder", deviceKey),
		settle: DefaultSettleTimeout,
	}
}

// SetSettleTimeout changes how long Launch waits for a halted pipeline.
func (b *Base) SetSettleTimeout(d time.Duration) {
	b.mu.Lock()
	b.settle = d
	b.mu.Unlock()
}

func (b *Base) Title() string                 { return b.title }
func (b *Base) Device() string                { return b.device }
func (b *Base) Family() device.Family         { return b.family }
func (b *Base) Configuration() *Configuration { return b.config }
func (b *Base) Logger() *slog.Logger          { return b.logger }

// IsRecording reports whether a recording or stream pipeline is active.
func (b *Base) IsRecording() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session.Recording || b.session.Streaming
}

// Session returns a copy of the current session.
func (b *Base) Session() Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

// Launch records session and starts pipeline. It returns services.ErrBusy,
// leaving the running pipeline untouched, when the recorder is already in use.
// A halted pipeline that is still winding down is waited for, up to the
// settle timeout, so two pipelines never drive the device at once.
func (b *Base) Launch(session Session, pipeline job.Job) error {
	b.mu.Lock()
	deadline := time.Now().Add(b.settle)
	for {
		if b.session.Recording || b.session.Streaming {
			current := b.session
			b.mu.Unlock()
			b.logger.Info("start ignored; recorder busy",
				logging.String("active_recording", current.RecordingID),
				logging.String("requested_recording", session.RecordingID),
			)
			return services.Wrap(services.ErrBusy, "recorder", "start", b.device, nil)
		}
		previous := b.active
		if previous == nil || finished(previous) {
			break
		}
		b.mu.Unlock()
		wait := time.Until(deadline)
		if wait <= 0 {
			b.logger.Info("start ignored; previous pipeline still stopping",
				logging.String("requested_recording", session.RecordingID),
			)
			return services.Wrap(services.ErrBusy, "recorder", "start", b.device+" is still stopping", nil)
		}
		timer := time.NewTimer(wait)
		select {
		case <-previous.Done():
		case <-timer.C:
		}
		timer.Stop()
		b.mu.Lock()
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}
	container := job.NewContainer(pipeline)
	b.session = session
	b.active = container
	b.mu.Unlock()

	logger := b.logger
	if session.RecordingID != "" {
		logger = logger.With(logging.RecordingID(session.RecordingID))
	}
	pipeline.AddListener(job.ListenerFunc(func(ev job.Event) {
		if ev.Type == job.Update {
			logging.JobUpdate(logger, pipeline.Name(), ev.Message)
		}
	}))
	container.Start()
	go b.watch(container)
	return nil
}

func finished(c *job.Container) bool {
	select {
	case <-c.Done():
		return true
	default:
		return false
	}
}

func (b *Base) watch(container *job.Container) {
	<-container.Done()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active != container {
		return
	}
	b.active = nil
	b.session.Recording = false
	b.session.Streaming = false
	if err := container.StartErr(); err != nil && !errors.Is(err, job.ErrStopped) {
		b.logger.Warn("pipeline failed to start", logging.Error(err))
	}
}

// Halt stops the active pipeline and marks the recorder idle at once, without
// waiting for the pipeline to wind down.
func (b *Base) Halt() {
	b.mu.Lock()
	container := b.active
	b.session.Recording = false
	b.session.Streaming = false
	b.mu.Unlock()
	if container != nil {
		container.Stop()
	}
}

// Active returns the running pipeline container, if any.
func (b *Base) Active() *job.Container {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// Wait blocks until the active pipeline has finished or ctx ends. A pipeline
// halted before it started counts as finished.
func (b *Base) Wait(ctx context.Context) error {
	container := b.Active()
	if container == nil {
		return nil
	}
	if err := container.Wait(ctx); err != nil && !errors.Is(err, job.ErrStopped) {
		return err
	}
	return nil
}
