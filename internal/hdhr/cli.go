package hdhr

import (
	"fmt"
	"strconv"

	"tvrec/internal/job"
)

// Detune is the channel value that releases a tuner.
const Detune = "none"

// DefaultBinary is used when no helper path is configured.
const DefaultBinary = "hdhomerun_config"

// CLI builds hdhomerun_config invocations. The argument shapes are fixed by
// the helper and must not change.
type CLI struct {
	Binary string
}

func (c CLI) command(args ...string) job.Command {
	binary := c.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	return job.Command{Name: binary, Args: args}
}

// TunerPath is "/tuner{N}".
func TunerPath(tuner int) string {
	return fmt.Sprintf("/tuner%d", tuner)
}

// FrequencyValue formats an RF channel for the channel setting. Zero or
// negative values detune.
func FrequencyValue(frequency int) string {
	if frequency <= 0 {
		return Detune
	}
	return "auto:" + strconv.Itoa(frequency)
}

// Discover lists devices on the local network.
func (c CLI) Discover() job.Command {
	return c.command("discover")
}

// Model queries the hardware model string.
func (c CLI) Model(id string) job.Command {
	return c.command(id, "get", "/sys/hwmodel")
}

// SetChannel tunes (or with Detune releases) a tuner.
func (c CLI) SetChannel(id string, tuner int, value string) job.Command {
	return c.command(id, "set", TunerPath(tuner)+"/channel", value)
}

// SetProgram selects a subchannel of the tuned frequency.
func (c CLI) SetProgram(id string, tuner int, program string) job.Command {
	return c.command(id, "set", TunerPath(tuner)+"/program", program)
}

// SetTarget points the tuner's stream at url, or stops it with "none".
func (c CLI) SetTarget(id string, tuner int, url string) job.Command {
	return c.command(id, "set", TunerPath(tuner)+"/target", url)
}

// SetChannelMap selects the channel plan used by scans and auto tuning.
func (c CLI) SetChannelMap(id string, tuner int, channelMap string) job.Command {
	return c.command(id, "set", TunerPath(tuner)+"/channelmap", channelMap)
}

// Save writes the tuner's stream to file until the process is stopped.
func (c CLI) Save(id string, tuner int, file string) job.Command {
	return c.command(id, "save", TunerPath(tuner), file)
}

// Scan scans every channel of the current channel map and logs to logFile.
func (c CLI) Scan(id string, tuner int, logFile string) job.Command {
	return c.command(id, "scan", TunerPath(tuner), logFile)
}

// TargetURL is the UDP target for host and port.
func TargetURL(host string, port int) string {
	return fmt.Sprintf("udp://%s:%d", host, port)
}
