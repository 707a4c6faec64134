package capture

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tvrec/internal/job"
	"tvrec/internal/logging"
)

// JobFactory builds a job bound to a relay port.
type JobFactory func(port int) job.Job

// RelayConfig wires the two halves of a UDP relay.
type RelayConfig struct {
	PortMin    int
	PortMax    int
	StartDelay time.Duration
	Reader     JobFactory
	Sender     JobFactory
	Logger     *slog.Logger
}

// Relay starts a reader that consumes UDP datagrams on a free local port and,
// once the reader holds the port (or StartDelay passes), a sender that
// produces them. The relay completes when the reader exits.
type Relay struct {
	job.Base

	cfg    RelayConfig
	logger *slog.Logger

	mu     sync.Mutex
	port   int
	reader *job.Container
	sender *job.Container
}

// NewRelay builds a relay job.
func NewRelay(cfg RelayConfig) *Relay {
	r := &Relay{cfg: cfg, logger: logging.NewComponentLogger(cfg.Logger, "udp-relay")}
	r.JobName = "udp-relay"
	return r
}

// Port is the relay port chosen by Start.
func (r *Relay) Port() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.port
}

func (r *Relay) Start() error {
	if r.cfg.Reader == nil || r.cfg.Sender == nil {
		return fmt.Errorf("udp relay: reader and sender are required")
	}
	port := FreePort(r.cfg.PortMin, r.cfg.PortMax)
	if port == 0 {
		logging.WarnWithContext(r.logger, "no free relay port", "relay_port_exhausted",
			logging.Int("port_min", r.cfg.PortMin),
			logging.Int("port_max", r.cfg.PortMax),
			logging.String(logging.FieldErrorHint, "free a port in the relay range or widen capture.relay_port_max"),
			logging.String(logging.FieldImpact, "recording will not be written"),
		)
		return fmt.Errorf("udp relay: no free port in %d-%d", r.cfg.PortMin, r.cfg.PortMax)
	}
	r.mu.Lock()
	r.port = port
	r.mu.Unlock()
	r.FireUpdate(r, fmt.Sprintf("relay port %d", port), port)
	return nil
}

func (r *Relay) Run() {
	port := r.Port()
	reader := job.NewContainer(r.cfg.Reader(port))
	r.mu.Lock()
	r.reader = reader
	r.mu.Unlock()
	reader.Start()

	ready := WaitForListener(port, r.cfg.StartDelay, r.Stopping())
	if !ready && !r.Terminated() {
		r.logger.Debug("reader not observed on relay port; starting sender after delay", logging.Int("port", port))
	}

	var sender *job.Container
	if !r.Terminated() {
		sender = job.NewContainer(r.cfg.Sender(port))
		r.mu.Lock()
		r.sender = sender
		r.mu.Unlock()
		sender.Start()
	}

	select {
	case <-reader.Done():
	case <-r.Stopping():
	}
	if sender != nil {
		sender.Stop()
		<-sender.Done()
	}
	reader.Stop()
	<-reader.Done()
	r.FireComplete(r, port, nil)
}

// Stop cascades to both halves.
func (r *Relay) Stop() {
	if !r.Terminate() {
		return
	}
	r.mu.Lock()
	reader, sender := r.reader, r.sender
	r.mu.Unlock()
	if sender != nil {
		sender.Stop()
	}
	if reader != nil {
		reader.Stop()
	}
}
