package v4l

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"tvrec/internal/device"
	"tvrec/internal/job"
	"tvrec/internal/logging"
	"tvrec/internal/services"
)

// DefaultDeviceDir holds the video device nodes.
const DefaultDeviceDir = "/dev"

// DefaultMaxIndex excludes the node ranges some drivers use for non-video
// functions (for example ivtv exposes /dev/video24 and /dev/video32).
const DefaultMaxIndex = 16

var videoNode = regexp.MustCompile(`^video(\d+)$`)

// Enumerate lists video device nodes in dir with an index below maxIndex,
// ordered by index.
func Enumerate(dir string, maxIndex int) ([]string, error) {
	if dir == "" {
		dir = DefaultDeviceDir
	}
	if maxIndex <= 0 {
		maxIndex = DefaultMaxIndex
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	type node struct {
		index int
		path  string
	}
	var nodes []node
	for _, entry := range entries {
		m := videoNode.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		index, err := strconv.Atoi(m[1])
		if err != nil || index >= maxIndex {
			continue
		}
		nodes = append(nodes, node{index: index, path: filepath.Join(dir, entry.Name())})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].index < nodes[j].index })
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.path)
	}
	return out, nil
}

// Discoverer probes each device node with --info, one at a time, and
// completes with the descriptors of nodes that answered with a card type.
type Discoverer struct {
	job.Base

	cli      CLI
	dir      string
	maxIndex int
	logger   *slog.Logger

	mu      sync.Mutex
	chain   *job.Chain
	devices []device.LocalDescriptor
}

// NewDiscoverer builds a local discovery job over dir.
func NewDiscoverer(cli CLI, dir string, maxIndex int, logger *slog.Logger) *Discoverer {
	d := &Discoverer{cli: cli, dir: dir, maxIndex: maxIndex, logger: logging.NewComponentLogger(logger, "v4l-discovery")}
	d.JobName = "v4l-discover"
	return d
}

func (d *Discoverer) Start() error {
	paths, err := Enumerate(d.dir, d.maxIndex)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "v4l", "enumerate", d.dir, err)
	}
	probes := make([]job.Job, 0, len(paths))
	for _, path := range paths {
		probes = append(probes, job.NewProcess("info "+path, d.cli.Info(path)))
	}
	d.mu.Lock()
	d.chain = job.Sequence(d.JobName, probes...)
	d.mu.Unlock()
	return nil
}

func (d *Discoverer) Run() {
	d.mu.Lock()
	chain := d.chain
	d.mu.Unlock()
	c := job.NewContainer(chain)
	if d.Terminated() {
		chain.Stop()
	}
	c.Start()
	<-c.Done()

	var found []device.LocalDescriptor
	for _, ev := range chain.Events() {
		proc, ok := ev.Source.(*job.ProcessJob)
		if !ok {
			continue
		}
		args := proc.Command().Args
		path := args[1]
		desc := ParseInfo(path, proc.Output())
		if desc.CardType == "" && desc.DriverName == "" {
			d.logger.Debug("device did not answer info probe",
				logging.Device(path),
				logging.Int("exit_code", proc.ExitCode()),
			)
			continue
		}
		found = append(found, desc)
	}
	d.mu.Lock()
	d.devices = found
	d.mu.Unlock()
	if d.Terminated() {
		d.FireComplete(d, found, job.ErrStopped)
		return
	}
	d.FireComplete(d, found, nil)
}

func (d *Discoverer) Stop() {
	if !d.Terminate() {
		return
	}
	d.mu.Lock()
	chain := d.chain
	d.mu.Unlock()
	if chain != nil {
		chain.Stop()
	}
}

// Devices returns the descriptors found.
func (d *Discoverer) Devices() []device.LocalDescriptor {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]device.LocalDescriptor, len(d.devices))
	copy(out, d.devices)
	return out
}

// Discover runs a Discoverer and waits for it.
func Discover(ctx context.Context, cli CLI, dir string, maxIndex int, logger *slog.Logger) ([]device.LocalDescriptor, error) {
	d := NewDiscoverer(cli, dir, maxIndex, logger)
	c := job.Go(d)
	if err := c.Wait(ctx); err != nil {
		if ctx.Err() == nil {
			return nil, err
		}
		c.Stop()
		<-c.Done()
		return d.Devices(), services.Wrap(services.ErrTimeout, "v4l", "discover", "cancelled", err)
	}
	return d.Devices(), nil
}

// RunProbe runs a Probe and waits for it.
func RunProbe(ctx context.Context, cli CLI, dev string, logger *slog.Logger) (Capabilities, error) {
	p := NewProbe(cli, dev, logger)
	c := job.Go(p)
	if err := c.Wait(ctx); err != nil {
		c.Stop()
		<-c.Done()
		return p.Capabilities(), services.Wrap(services.ErrTimeout, "v4l", "probe", dev, err)
	}
	return p.Capabilities(), nil
}
