package hdhr

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tvrec/internal/device"
	"tvrec/internal/job"
	"tvrec/internal/logging"
)

type stage int

const (
	stageControl stage = iota
	stageFrequency
	stageProgram
	stageCapture
	stageReset
	stageDone
)

func (s stage) String() string {
	switch s {
	case stageControl:
		return "control"
	case stageFrequency:
		return "frequency"
	case stageProgram:
		return "program"
	case stageCapture:
		return "capture"
	case stageReset:
		return "reset"
	case stageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// resetTimeout bounds how long the detune stage may take once stopping.
const resetTimeout = 10 * time.Second

// PipelineConfig describes one tuning run.
type PipelineConfig struct {
	CLI      CLI
	DeviceID string
	Tuner    int
	Channel  device.Channel

	// ChannelMap, when set, adds a control stage selecting the channel plan.
	ChannelMap string

	// Capture builds the capture stage. Nil tunes without capturing.
	Capture func() job.Job

	// DurationSeconds bounds the capture stage through Timing. Ignored when
	// Continuous is set, in which case capture runs until stopped.
	DurationSeconds int
	Continuous      bool
	Timing          job.Timing

	// Reset detunes the tuner when the run ends. ClearTarget also stops any
	// UDP target first.
	Reset       bool
	ClearTarget bool

	Grace  time.Duration
	Logger *slog.Logger
}

// PipelineResult is the Complete payload of a pipeline.
type PipelineResult struct {
	Stages  []string
	Capture time.Duration
}

// Pipeline tunes a network tuner and captures from it as a state machine:
// [control] -> frequency -> program -> capture -> reset. Each stage starts only
// after the previous stage's Complete event. Stop short-circuits to reset.
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
		logger: logging.NewDeviceLogger(cfg.Logger, "hdhr-pipeline", NetworkKeyOrID(cfg.DeviceID, cfg.Tuner)),
		events: make(chan job.Event, 4),
	}
	p.JobName = "hdhr-pipeline"
	return p
}

// NetworkKeyOrID formats the device key, or returns "" when id is empty.
func NetworkKeyOrID(id string, tuner int) string {
	if id == "" {
		return ""
	}
	return device.NetworkKey(id, tuner)
}

func (p *Pipeline) Start() error {
	return nil
}

func (p *Pipeline) Run() {
	st := stageControl
	for st != stageDone {
		if p.Terminated() && st < stageReset {
			st = stageReset
		}
		if st == stageReset && !p.cfg.Reset {
			break
		}
		j := p.build(st)
		if j == nil {
			st++
			continue
		}
		container := p.launch(st, j)

		switch st {
		case stageCapture:
			p.runCapture(container)
			st = stageReset
		case stageReset:
			p.await(container, false, resetTimeout)
			st = stageDone
		default:
			ev, ok := p.await(container, true, 0)
			if !ok {
				container.Stop()
				st = stageReset
				continue
			}
			if ev.Err != nil {
				p.logger.Warn("stage failed; detuning",
					logging.Stage(st.String()),
					logging.Error(ev.Err),
				)
				st = stageReset
				continue
			}
			p.logExit(st, ev)
			st++
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
		if cfg.ChannelMap == "" || cfg.DeviceID == "" {
			return nil
		}
		return job.NewProcess("channelmap", cfg.CLI.SetChannelMap(cfg.DeviceID, cfg.Tuner, cfg.ChannelMap), grace)
	case stageFrequency:
		if cfg.DeviceID == "" {
			p.logger.Debug("no device id; skipping tuning")
			return nil
		}
		if cfg.Channel.Frequency <= 0 {
			p.logger.Debug("channel has no frequency; skipping", logging.String("channel", cfg.Channel.Number))
			return nil
		}
		return job.NewProcess("frequency", cfg.CLI.SetChannel(cfg.DeviceID, cfg.Tuner, FrequencyValue(cfg.Channel.Frequency)), grace)
	case stageProgram:
		if cfg.DeviceID == "" || cfg.Channel.Number == "" {
			return nil
		}
		return job.NewProcess("program", cfg.CLI.SetProgram(cfg.DeviceID, cfg.Tuner, cfg.Channel.Number), grace)
	case stageCapture:
		if cfg.Capture == nil {
			return nil
		}
		return cfg.Capture()
	case stageReset:
		if cfg.DeviceID == "" {
			return nil
		}
		var clearTarget job.Job
		if cfg.ClearTarget {
			clearTarget = job.NewProcess("target-none", cfg.CLI.SetTarget(cfg.DeviceID, cfg.Tuner, Detune), grace)
		}
		detune := job.NewProcess("detune", cfg.CLI.SetChannel(cfg.DeviceID, cfg.Tuner, Detune), grace)
		return job.Sequence("reset", clearTarget, detune)
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

// await waits for the Complete event of container's job. When interruptible,
// Stop ends the wait early and ok is false.
func (p *Pipeline) await(container *job.Container, interruptible bool, limit time.Duration) (job.Event, bool) {
	var stopping <-chan struct{}
	if interruptible {
		stopping = p.Stopping()
	}
	var timeout <-chan time.Time
	if limit > 0 {
		timer := time.NewTimer(limit)
		defer timer.Stop()
		timeout = timer.C
	}
	for {
		select {
		case ev := <-p.events:
			if ev.Source != container.Job() {
				continue
			}
			return ev, true
		case <-stopping:
			return job.Event{}, false
		case <-timeout:
			container.Stop()
			return job.Event{}, false
		}
	}
}

func (p *Pipeline) runCapture(container *job.Container) {
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
}

func (p *Pipeline) logExit(st stage, ev job.Event) {
	proc, ok := ev.Source.(*job.ProcessJob)
	if !ok {
		return
	}
	if code := proc.ExitCode(); code != 0 {
		p.logger.Info("stage exited non-zero; continuing",
			logging.Stage(st.String()),
			logging.Int("exit_code", code),
			logging.String("stderr", proc.Stderr()),
		)
	}
}

// Stop short-circuits to the reset stage. It does not wait.
func (p *Pipeline) Stop() {
	if !p.Terminate() {
		return
	}
	p.mu.Lock()
	current, st := p.current, p.stage
	p.mu.Unlock()
	if current != nil && st < stageReset {
		current.Stop()
	}
}

// Result reports the stages run so far and how long capture lasted.
func (p *Pipeline) Result() PipelineResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	stages := make([]string, len(p.stages))
	copy(stages, p.stages)
	return PipelineResult{Stages: stages, Capture: p.elapsed}
}
