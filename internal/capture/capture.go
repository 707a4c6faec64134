package capture

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"tvrec/internal/device"
	"tvrec/internal/job"
)

// Codecs selects the ffmpeg encoders used by the transcode read mode.
type Codecs struct {
	Video string
	Audio string
}

// Options carries the settings every capture strategy may need.
type Options struct {
	FFmpeg     string
	Codecs     Codecs
	PortMin    int
	PortMax    int
	StartDelay time.Duration
	Grace      time.Duration
	Logger     *slog.Logger
}

// UDPInput is the ffmpeg input URL for a relay port.
func UDPInput(port int) string {
	return fmt.Sprintf("udp://127.0.0.1:%d?overrun_nonfatal=1&fifo_size=1000000", port)
}

// UDPAddr is the address a relay sender writes to.
func UDPAddr(port int) string {
	return HostPort("127.0.0.1", port)
}

// HostPort joins host and port, bracketing IPv6 hosts.
func HostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// TranscodeArgs re-encodes input into an MPEG transport stream at dest.
func TranscodeArgs(input, dest string, codecs Codecs) []string {
	return []string{
		"-hide_banner", "-nostdin", "-loglevel", "error", "-y",
		"-i", input,
		"-c:v", codecs.Video,
		"-c:a", codecs.Audio,
		"-f", "mpegts", dest,
	}
}

// RemuxArgs copies every stream of input into a transport stream at dest.
func RemuxArgs(input, dest string) []string {
	return []string{
		"-hide_banner", "-nostdin", "-loglevel", "error", "-y",
		"-i", input,
		"-map", "0",
		"-c", "copy",
		"-f", "mpegts", dest,
	}
}

// NewTranscode runs ffmpeg reading input directly.
func NewTranscode(opts Options, input, dest string) *job.ProcessJob {
	return job.NewProcess("transcode", job.Command{Name: opts.FFmpeg, Args: TranscodeArgs(input, dest, opts.Codecs)}, job.WithGrace(opts.Grace))
}

// NewRemux runs ffmpeg copying streams from input.
func NewRemux(opts Options, input, dest string) *job.ProcessJob {
	return job.NewProcess("remux", job.Command{Name: opts.FFmpeg, Args: RemuxArgs(input, dest)}, job.WithGrace(opts.Grace))
}

// NewDeviceRelay streams a device node through a local UDP port into an
// ffmpeg remux writing dest.
func NewDeviceRelay(opts Options, source, dest string) *Relay {
	return NewRelay(RelayConfig{
		PortMin:    opts.PortMin,
		PortMax:    opts.PortMax,
		StartDelay: opts.StartDelay,
		Logger:     opts.Logger,
		Reader: func(port int) job.Job {
			return NewRemux(opts, UDPInput(port), dest)
		},
		Sender: func(port int) job.Job {
			return NewUDPCopy(source, UDPAddr(port))
		},
	})
}

// ForDevice selects the capture job for a local device node.
func ForDevice(mode device.ReadMode, opts Options, source, dest string) job.Job {
	switch mode {
	case device.ReadUDP:
		return NewDeviceRelay(opts, source, dest)
	case device.ReadTranscode:
		return NewTranscode(opts, source, dest)
	default:
		return NewFileCopy(source, dest)
	}
}
