package v4l

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"tvrec/internal/device"
	"tvrec/internal/job"
	"tvrec/internal/logging"
)

type stage int

const (
	stageControl stage = iota
	stageChannel
	stageCapture
	stageDone
)

func (s stage) String() string {
	switch s {
	case stageControl:
		return "control"
	case stageChannel:
		return "channel"
	case stageCapture:
		return "capture"
	case stageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// PipelineConfig describes one run on a local card. Negative input indexes
// leave the current input selected.
type PipelineConfig struct {
	CLI     CLI
	Device  string
	Channel device.Channel

	VideoInput int
	AudioInput int
	Controls   map[string]string

	FrequencyTable string
	ChannelScript  string

	// Capture builds the capture stage. Nil stops after tuning.
	Capture         func() job.Job
	DurationSeconds int
	Continuous      bool
	Timing          job.Timing

	Grace  time.Duration
	Logger *slog.Logger
}

// PipelineResult is the Complete payload of a pipeline.
type PipelineResult struct {
	Stages  []string
	Capture time.Duration
}

// Pipeline configures a card, changes channel and captures:
// control -> channel -> capture. Capture never starts before the channel stage
// has completed.
type Pipeline struct {
	job.Base

	cfg    PipelineConfig
	logger *slog.Logger
	events chan job.Event

	mu      sync.Mutex
	stage   stage
	current *job.Container
	capture *job.Container
	stages  []string
	elapsed time.Duration
}

// NewPipeline builds a pipeline job.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		logger: logging.NewDeviceLogger(cfg.Logger, "v4l-pipeline", cfg.Device),
		events: make(chan job.Event, 4),
	}
	p.JobName = "v4l-pipeline"
	return p
}

func (p *Pipeline) Start() error {
	if p.cfg.Device == "" {
		return fmt.Errorf("v4l pipeline: device required")
	}
	return nil
}

func (p *Pipeline) Run() {
	for st := stageControl; st < stageDone && !p.Terminated(); st++ {
		j := p.build(st)
		if j == nil {
			continue
		}
		container := p.launch(st, j)
		if st == stageCapture {
			var deadline time.Time
			if !p.cfg.Continuous {
				deadline = p.cfg.Timing.Deadline(time.Now(), p.cfg.DurationSeconds)
			}
			held, ended := p.cfg.Timing.Hold(container, deadline, p.Stopping())
			if ended && !p.cfg.Continuous {
				p.logger.Info("capture ended before its deadline", logging.Duration("held", held))
			}
			p.mu.Lock()
			p.elapsed = held
			p.mu.Unlock()
			break
		}
		ev, ok := p.await(container)
		if !ok {
			container.Stop()
			break
		}
		if ev.Err != nil {
			p.logger.Warn("stage failed",
				logging.Stage(st.String()),
				logging.Error(ev.Err),
			)
			break
		}
		if proc, ok := ev.Source.(*job.ProcessJob); ok && proc.ExitCode() != 0 {
			p.logger.Info("stage exited non-zero; continuing",
				logging.Stage(st.String()),
				logging.Int("exit_code", proc.ExitCode()),
				logging.String("stderr", proc.Stderr()),
			)
		}
	}

	p.mu.Lock()
	capture := p.capture
	p.current = nil
	p.stage = stageDone
	p.mu.Unlock()
	if capture != nil {
		grace := p.cfg.Grace
		if grace <= 0 {
			grace = 3 * time.Second
		}
		select {
		case <-capture.Done():
		case <-time.After(grace + time.Second):
			p.logger.Warn("capture did not exit after stop", logging.Duration("grace", grace))
		}
	}
	p.FireComplete(p, p.Result(), nil)
}

func (p *Pipeline) build(st stage) job.Job {
	cfg := p.cfg
	grace := job.WithGrace(cfg.Grace)
	switch st {
	case stageControl:
		var steps []job.Job
		if cfg.VideoInput >= 0 {
			steps = append(steps, job.NewProcess("video-input", cfg.CLI.SetInput(cfg.Device, cfg.VideoInput), grace))
		}
		if cfg.AudioInput >= 0 {
			steps = append(steps, job.NewProcess("audio-input", cfg.CLI.SetAudioInput(cfg.Device, cfg.AudioInput), grace))
		}
		if len(cfg.Controls) > 0 {
			steps = append(steps, job.NewProcess("controls", cfg.CLI.SetControls(cfg.Device, cfg.Controls), grace))
		}
		if len(steps) == 0 {
			return nil
		}
		return job.Sequence("control", steps...)
	case stageChannel:
		if cfg.Channel.Number == "" && cfg.Channel.Frequency <= 0 {
			return nil
		}
		if cfg.ChannelScript != "" {
			return job.NewProcess("channel-script", ChannelScript(cfg.ChannelScript, cfg.Channel.Number), grace)
		}
		kHz := cfg.Channel.Frequency
		if kHz <= 0 {
			var ok bool
			kHz, ok = FrequencyKHz(cfg.FrequencyTable, cfg.Channel.Number)
			if !ok {
				p.logger.Warn("channel not in frequency table; not tuning",
					logging.String("channel", cfg.Channel.Number),
					logging.String("frequency_table", cfg.FrequencyTable),
				)
				return nil
			}
		}
		return job.NewProcess("frequency", cfg.CLI.SetFrequency(cfg.Device, kHz), grace)
	case stageCapture:
		if cfg.Capture == nil {
			return nil
		}
		return cfg.Capture()
	}
	return nil
}

func (p *Pipeline) launch(st stage, j job.Job) *job.Container {
	j.AddListener(job.ListenerFunc(func(ev job.Event) {
		switch ev.Type {
		case job.Complete:
			select {
			case p.events <- ev:
			default:
			}
		case job.Update:
			p.FireUpdate(p, ev.Message, ev.Payload)
		}
	}))
	container := job.NewContainer(j)
	p.mu.Lock()
	p.stage = st
	p.current = container
	p.stages = append(p.stages, st.String())
	if st == stageCapture {
		p.capture = container
	}
	p.mu.Unlock()
	p.FireUpdate(p, "stage "+st.String(), st.String())
	container.Start()
	return container
}

func (p *Pipeline) await(container *job.Container) (job.Event, bool) {
	for {
		select {
		case ev := <-p.events:
			if ev.Source == container.Job() {
				return ev, true
			}
		case <-p.Stopping():
			return job.Event{}, false
		}
	}
}

// Stop stops the running stage. It does not wait.
func (p *Pipeline) Stop() {
	if !p.Terminate() {
		return
	}
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()
	if current != nil {
		current.Stop()
	}
}

// Result reports the stages run and how long capture lasted.
func (p *Pipeline) Result() PipelineResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	stages := make([]string, len(p.stages))
	copy(stages, p.stages)
	return PipelineResult{Stages: stages, Capture: p.elapsed}
}

// inputIndex parses a configured input selection, which is either an index
// or an "N:label" choice. It returns -1 when unset.
func inputIndex(value string) int {
	head, _, _ := strings.Cut(strings.TrimSpace(value), ":")
	n, err := strconv.Atoi(head)
	if err != nil {
		return -1
	}
	return n
}
