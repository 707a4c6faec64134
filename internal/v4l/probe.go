package v4l

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"tvrec/internal/device"
	"tvrec/internal/job"
	"tvrec/internal/logging"
	"tvrec/internal/recorder"
)

// Capabilities is what a probe learned about a card.
type Capabilities struct {
	AudioInputs []Input
	VideoInputs []Input
	Controls    []Control
}

// DefaultConfiguration synthesizes the configuration of a newly found card.
// The first input of each kind is selected and every writable control keeps
// its current value.
func DefaultConfiguration(desc device.LocalDescriptor, caps Capabilities, frequencyTables []string, readMode device.ReadMode) *recorder.Configuration {
	title := Title(desc)
	cfg := recorder.NewConfiguration(device.Source(title, desc.Key()), device.FamilyV4L2)
	cfg.Set(recorder.KeyTitle, title)
	cfg.Set(recorder.KeyDevice, desc.Key())

	cfg.SetChoices(recorder.KeyAudioInputChoices, inputChoices(caps.AudioInputs))
	if len(caps.AudioInputs) > 0 {
		cfg.Set(recorder.KeyAudioInput, strconv.Itoa(caps.AudioInputs[0].Index))
	}
	cfg.SetChoices(recorder.KeyVideoInputChoices, inputChoices(caps.VideoInputs))
	if len(caps.VideoInputs) > 0 {
		cfg.Set(recorder.KeyVideoInput, strconv.Itoa(caps.VideoInputs[0].Index))
	}

	if len(frequencyTables) == 0 {
		frequencyTables = FrequencyTables
	}
	cfg.SetChoices(recorder.KeyFrequencyTableChoices, frequencyTables)
	cfg.Set(recorder.KeyFrequencyTable, frequencyTables[0])
	cfg.Set(recorder.KeyChannelChangeScript, "")
	cfg.Set(recorder.KeyCustomChannels, "")
	cfg.Set(recorder.KeyCustomChannelMode, recorder.ModeWhitelist)
	if readMode == "" {
		readMode = device.ReadCopy
	}
	cfg.Set(recorder.KeyReadMode, string(readMode))

	for _, ctrl := range caps.Controls {
		if ctrl.ReadOnly {
			continue
		}
		key := recorder.ControlPrefix + ctrl.Name
		cfg.Set(key, ctrl.Value())
		cfg.Set(key+".type", ctrl.Type)
		if len(ctrl.Menu) > 0 {
			items := make([]string, 0, len(ctrl.Menu))
			for _, item := range ctrl.Menu {
				items = append(items, fmt.Sprintf("%d:%s", item.Index, strings.ReplaceAll(item.Label, ",", " ")))
			}
			cfg.SetChoices(key+".choices", items)
		}
	}
	return cfg
}

// Title is the display title of a card: its card type, or the driver name
// when the card type is empty.
func Title(desc device.LocalDescriptor) string {
	if title := strings.TrimSpace(desc.CardType); title != "" {
		return title
	}
	if name := strings.TrimSpace(desc.DriverName); name != "" {
		return name
	}
	return "Capture Card"
}

func inputChoices(inputs []Input) []string {
	out := make([]string, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, fmt.Sprintf("%d:%s", in.Index, strings.ReplaceAll(in.Name, ",", " ")))
	}
	return out
}

// Probe enumerates audio inputs, then video inputs, then controls of one
// device, strictly in that order. It completes with the Capabilities found.
type Probe struct {
	job.Base

	cli    CLI
	dev    string
	logger *slog.Logger

	mu    sync.Mutex
	chain *job.Chain
	caps  Capabilities
}

// NewProbe builds a capability probe for dev.
func NewProbe(cli CLI, dev string, logger *slog.Logger) *Probe {
	p := &Probe{cli: cli, dev: dev, logger: logging.NewDeviceLogger(logger, "v4l-probe", dev)}
	p.JobName = "v4l-probe"
	return p
}

func (p *Probe) Start() error {
	audio := job.NewProcess("audio-inputs", p.cli.ListAudioInputs(p.dev))
	video := job.NewProcess("video-inputs", p.cli.ListInputs(p.dev))
	controls := job.NewProcess("controls", p.cli.ListControls(p.dev))
	p.mu.Lock()
	p.chain = job.Sequence(p.JobName, audio, video, controls)
	p.mu.Unlock()
	return nil
}

func (p *Probe) Run() {
	p.mu.Lock()
	chain := p.chain
	p.mu.Unlock()
	c := job.NewContainer(chain)
	if p.Terminated() {
		chain.Stop()
	}
	c.Start()
	<-c.Done()

	var caps Capabilities
	for _, ev := range chain.Events() {
		proc, ok := ev.Source.(*job.ProcessJob)
		if !ok {
			continue
		}
		if ev.Err != nil || proc.ExitCode() != 0 {
			p.logger.Info("probe step degraded",
				logging.Stage(proc.Name()),
				logging.Int("exit_code", proc.ExitCode()),
				logging.Error(ev.Err),
			)
		}
		switch proc.Name() {
		case "audio-inputs":
			caps.AudioInputs = ParseInputs(proc.Output())
		case "video-inputs":
			caps.VideoInputs = ParseInputs(proc.Output())
		case "controls":
			caps.Controls = ParseControls(proc.Output())
		}
	}
	p.mu.Lock()
	p.caps = caps
	p.mu.Unlock()
	p.logger.Debug("probe complete",
		logging.Int("audio_inputs", len(caps.AudioInputs)),
		logging.Int("video_inputs", len(caps.VideoInputs)),
		logging.Int("controls", len(caps.Controls)),
	)
	if p.Terminated() {
		p.FireComplete(p, caps, job.ErrStopped)
		return
	}
	p.FireComplete(p, caps, nil)
}

func (p *Probe) Stop() {
	if !p.Terminate() {
		return
	}
	p.mu.Lock()
	chain := p.chain
	p.mu.Unlock()
	if chain != nil {
		chain.Stop()
	}
}

// Capabilities returns what the probe found.
func (p *Probe) Capabilities() Capabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.caps
}
