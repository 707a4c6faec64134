package hdhr

import (
	"context"
	"log/slog"
	"sync"

	"tvrec/internal/device"
	"tvrec/internal/job"
	"tvrec/internal/logging"
	"tvrec/internal/services"
)

// Discoverer runs one discover command, then queries each device's model one
// at a time. It completes with the descriptors it found.
type Discoverer struct {
	job.Base

	cli    CLI
	logger *slog.Logger

	mu      sync.Mutex
	devices []device.NetworkDescriptor
	chain   *job.Chain
}

// NewDiscoverer builds a discovery job.
func NewDiscoverer(cli CLI, logger *slog.Logger) *Discoverer {
	d := &Discoverer{cli: cli, logger: logging.NewComponentLogger(logger, "hdhr-discovery")}
	d.JobName = "hdhr-discover"
	return d
}

func (d *Discoverer) Start() error {
	next := 0
	var discover *job.ProcessJob
	d.mu.Lock()
	d.chain = job.NewChain(d.JobName, func(prev job.Event) job.Job {
		if discover == nil {
			discover = job.NewProcess("discover", d.cli.Discover())
			return discover
		}
		if prev.Source == discover {
			found := ParseDiscover(discover.Output())
			if code := discover.ExitCode(); code != 0 && len(found) == 0 {
				d.logger.Info("discover found no devices", logging.Int("exit_code", code))
			}
			d.mu.Lock()
			d.devices = found
			d.mu.Unlock()
		} else if query, ok := prev.Source.(*job.ProcessJob); ok {
			model := ParseModel(query.Output())
			d.mu.Lock()
			d.devices[next-1].Model = model
			d.mu.Unlock()
		}
		d.mu.Lock()
		defer d.mu.Unlock()
		if next >= len(d.devices) {
			return nil
		}
		id := d.devices[next].ID
		next++
		return job.NewProcess("model "+id, d.cli.Model(id))
	})
	d.mu.Unlock()
	return nil
}

func (d *Discoverer) Run() {
	d.mu.Lock()
	chain := d.chain
	d.mu.Unlock()
	chain.AddListener(job.ListenerFunc(func(ev job.Event) {
		if ev.Type == job.Update {
			d.FireUpdate(d, ev.Message, ev.Payload)
		}
	}))
	c := job.NewContainer(chain)
	if d.Terminated() {
		chain.Stop()
	}
	c.Start()
	<-c.Done()

	devices := d.Devices()
	for _, dev := range devices {
		d.logger.Debug("network tuner found",
			logging.String("device_id", dev.ID),
			logging.String("ip", dev.IPAddress),
			logging.String("model", dev.Model),
		)
	}
	if d.Terminated() {
		d.FireComplete(d, devices, job.ErrStopped)
		return
	}
	d.FireComplete(d, devices, nil)
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

// Devices returns a copy of the descriptors found so far.
func (d *Discoverer) Devices() []device.NetworkDescriptor {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]device.NetworkDescriptor, len(d.devices))
	copy(out, d.devices)
	return out
}

// Discover runs a Discoverer and waits for it. Cancelling ctx stops the job
// and returns whatever was found.
func Discover(ctx context.Context, cli CLI, logger *slog.Logger) ([]device.NetworkDescriptor, error) {
	d := NewDiscoverer(cli, logger)
	c := job.Go(d)
	if err := c.Wait(ctx); err != nil {
		if ctx.Err() == nil {
			return nil, err
		}
		c.Stop()
		<-c.Done()
		return d.Devices(), services.Wrap(services.ErrTimeout, "hdhr", "discover", "cancelled", err)
	}
	return d.Devices(), nil
}
