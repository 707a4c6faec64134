package v4l

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"tvrec/internal/job"
)

// DefaultBinary is used when no v4l2-ctl path is configured.
const DefaultBinary = "v4l2-ctl"

// CLI builds v4l2-ctl invocations for one device node.
type CLI struct {
	Binary string
}

func (c CLI) command(dev string, args ...string) job.Command {
	binary := c.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	return job.Command{Name: binary, Args: append([]string{"-d", dev}, args...)}
}

// Info queries driver, card and capability information.
func (c CLI) Info(dev string) job.Command {
	return c.command(dev, "--info")
}

// ListAudioInputs enumerates audio inputs.
func (c CLI) ListAudioInputs(dev string) job.Command {
	return c.command(dev, "--list-audio-inputs")
}

// ListInputs enumerates video inputs.
func (c CLI) ListInputs(dev string) job.Command {
	return c.command(dev, "--list-inputs")
}

// ListControls enumerates controls including menu entries.
func (c CLI) ListControls(dev string) job.Command {
	return c.command(dev, "--list-ctrls-menus")
}

// SetInput selects a video input by index.
func (c CLI) SetInput(dev string, index int) job.Command {
	return c.command(dev, "--set-input="+strconv.Itoa(index))
}

// SetAudioInput selects an audio input by index.
func (c CLI) SetAudioInput(dev string, index int) job.Command {
	return c.command(dev, "--set-audio-input="+strconv.Itoa(index))
}

// SetControls sets every control in one call, ordered by name.
func (c CLI) SetControls(dev string, controls map[string]string) job.Command {
	names := make([]string, 0, len(controls))
	for name := range controls {
		names = append(names, name)
	}
	sort.Strings(names)
	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+controls[name])
	}
	return c.command(dev, "--set-ctrl="+strings.Join(pairs, ","))
}

// SetFrequency tunes to kHz, passed to the tool in MHz.
func (c CLI) SetFrequency(dev string, kHz int) job.Command {
	return c.command(dev, "--set-freq="+FormatMHz(kHz))
}

// FormatMHz renders kHz as MHz with three decimals: 55250 -> "55.250".
func FormatMHz(kHz int) string {
	return fmt.Sprintf("%d.%03d", kHz/1000, kHz%1000)
}

// ChannelScript runs a channel change script with the channel number appended.
func ChannelScript(script, number string) job.Command {
	cmd := job.ParseCommandLine(script)
	cmd.Args = append(cmd.Args, number)
	return cmd
}
