package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"tvrec/internal/config"
	"tvrec/internal/deps"
	"tvrec/internal/discovery"
	"tvrec/internal/lineup"
	"tvrec/internal/logging"
	"tvrec/internal/nms"
	"tvrec/internal/notifications"
	"tvrec/internal/preflight"
	"tvrec/internal/recorder"
	"tvrec/internal/services"
	"tvrec/internal/store"
)

const defaultReconcileInterval = 5 * time.Second

// Options customizes the daemon's collaborators. The zero value wires the
// production implementations.
type Options struct {
	Discovery         []discovery.Option
	Sender            notifications.Sender
	ReconcileInterval time.Duration
}

// Daemon wires the recorder registry, discovery, hotplug monitor and the
// coordination layer into one lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	lineup    *lineup.Lineup
	sender    notifications.Sender
	nms       *nms.NMS
	discovery *discovery.Service
	monitor   *discovery.Monitor

	reconcileInterval time.Duration

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	stopped chan struct{}
	wg      sync.WaitGroup

	mu            sync.Mutex
	lastDiscovery time.Time
	lastSummary   discovery.Summary
	reschedules   int
	dependencies  []deps.Status
}

// RecorderStatus describes one registered recorder.
type RecorderStatus struct {
	Device    string
	Title     string
	Family    string
	Recording bool
	Session   recorder.Session
}

// Status represents daemon runtime information.
type Status struct {
	Running         bool
	Recorders       []RecorderStatus
	NetworkDevices  int
	LocalDevices    int
	LastDiscovery   time.Time
	DiscoveryErrors []string
	HotplugActive   bool
	Reschedules     int
	Listings        []string
	Dependencies    []deps.Status
	DatabasePath    string
	LockFilePath    string
	LineupFile      string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, opts Options) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	logger = logging.NewComponentLogger(logger, "daemon")

	programs, err := lineup.LoadOptional(cfg.Paths.LineupFile)
	if err != nil {
		return nil, fmt.Errorf("load lineup: %w", err)
	}
	sender := opts.Sender
	if sender == nil {
		sender = notifications.NewSender(cfg, logger)
	}
	interval := opts.ReconcileInterval
	if interval <= 0 {
		interval = defaultReconcileInterval
	}

	registry := nms.NewRegistry()
	d := &Daemon{
		cfg:    cfg,
		logger: logger,
		store:  st,
		lineup: programs,
		sender: sender,
		nms: nms.New(registry, st, []nms.ProgramData{programs}, sender, nms.Options{
			RecordingsDir:      cfg.Paths.RecordingsDir,
			RecordingExtension: cfg.Capture.RecordingExtension,
			IndexExtension:     cfg.Capture.IndexExtension,
			DeleteDelay:        cfg.DeleteDelay(),
			Logger:             logger,
		}),
		discovery:         discovery.NewService(cfg, recorder.NewStore(cfg.Paths.ConfigDir), registry, logger, opts.Discovery...),
		reconcileInterval: interval,
		lockPath:          cfg.LockPath(),
		lock:              flock.New(cfg.LockPath()),
	}
	d.monitor = discovery.NewMonitor(cfg, logger, d.deviceAdded, d.deviceRemoved)
	return d, nil
}

// Start acquires the daemon lock and launches the background loops.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return services.Wrap(services.ErrBusy, "daemon", "start", "another tvrecd instance is already running", nil)
	}

	d.runPreflight(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.mu.Lock()
	d.stopped = make(chan struct{})
	d.mu.Unlock()
	if err := d.monitor.Start(runCtx); err != nil {
		logging.WarnWithContext(d.logger, "hotplug monitor unavailable", "hotplug_unavailable",
			logging.Error(err),
			logging.String(logging.FieldImpact, "devices are picked up by periodic discovery only"),
		)
	}

	d.wg.Go(func() { d.discoveryLoop(runCtx) })
	d.wg.Go(func() { d.reconcileLoop(runCtx) })
	d.wg.Go(func() { d.rescheduleLoop(runCtx) })

	d.running.Store(true)
	d.logger.Info("tvrec daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts the loops and every active recording, then releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.monitor.Stop()
	d.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if stopped := d.nms.StopAll(ctx); stopped > 0 {
		d.logger.Info("stopped active recordings", logging.Int("count", stopped))
	}
	d.nms.Flush()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.mu.Lock()
	close(d.stopped)
	d.mu.Unlock()
	d.logger.Info("tvrec daemon stopped")
}

// Stopped is closed once the current run has been stopped. It returns nil
// before the first Start.
func (d *Daemon) Stopped() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopped
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	d.sender.Close()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

func (d *Daemon) runPreflight(ctx context.Context) {
	for _, result := range preflight.Failed(preflight.RunAll(ctx, d.cfg)) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
	}
	statuses := preflight.CheckSystemDeps(ctx, d.cfg)
	for _, missing := range deps.Missing(statuses) {
		logging.WarnWithContext(d.logger, "required dependency unavailable", "dependency_missing",
			logging.String("dependency", missing.Name),
			logging.String("detail", missing.Detail),
			logging.String(logging.FieldImpact, "recordings using it will fail"),
		)
	}
	d.mu.Lock()
	d.dependencies = statuses
	d.mu.Unlock()
}

// NMS exposes the coordination layer to the IPC surface.
func (d *Daemon) NMS() *nms.NMS { return d.nms }

// Store exposes the scheduler storage for listing and rule management.
func (d *Daemon) Store() *store.Store { return d.store }

// Lineup returns the program data loaded at startup.
func (d *Daemon) Lineup() *lineup.Lineup { return d.lineup }

// Discover runs one discovery pass immediately.
func (d *Daemon) Discover(ctx context.Context) discovery.Summary {
	summary := d.discovery.DiscoverAll(ctx)
	d.mu.Lock()
	d.lastDiscovery = time.Now()
	d.lastSummary = summary
	d.mu.Unlock()
	return summary
}

func (d *Daemon) discoveryLoop(ctx context.Context) {
	d.Discover(ctx)
	interval := time.Duration(d.cfg.NMS.DiscoveryInterval) * time.Second
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Discover(ctx)
		}
	}
}

func (d *Daemon) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(d.reconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			settled, err := d.nms.Reconcile(ctx)
			if err != nil {
				if ctx.Err() == nil {
					d.logger.Warn("reconcile failed", logging.Error(err))
				}
				continue
			}
			if settled > 0 {
				d.logger.Info("settled finished recordings", logging.Int("count", settled))
			}
		}
	}
}

func (d *Daemon) rescheduleLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.store.RescheduleSignal():
			requests, err := d.store.DrainRescheduleRequests(ctx)
			if err != nil {
				if ctx.Err() == nil {
					d.logger.Warn("drain reschedule requests failed", logging.Error(err))
				}
				continue
			}
			for _, req := range requests {
				d.logger.Info("reschedule requested",
					logging.Int64("request_id", req.ID),
					logging.String("reason", req.Reason),
				)
			}
			d.mu.Lock()
			d.reschedules += len(requests)
			d.mu.Unlock()
		}
	}
}

func (d *Daemon) deviceAdded(ctx context.Context, path string) {
	summary := d.discovery.RegisterPath(ctx, path)
	if err := summary.Err(); err != nil {
		d.logger.Warn("hotplug registration failed", logging.Device(path), logging.Error(err))
	}
}

func (d *Daemon) deviceRemoved(_ context.Context, path string) {
	if d.discovery.Unregister(path) {
		d.logger.Info("recorder unregistered", logging.Device(path))
	}
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	recorders := d.nms.Recorders()
	out := make([]RecorderStatus, 0, len(recorders))
	for _, rec := range recorders {
		out = append(out, RecorderStatus{
			Device:    rec.Device(),
			Title:     rec.Title(),
			Family:    string(rec.Family()),
			Recording: rec.IsRecording(),
			Session:   rec.Session(),
		})
	}

	d.mu.Lock()
	last := d.lastDiscovery
	summary := d.lastSummary
	reschedules := d.reschedules
	dependencies := append([]deps.Status(nil), d.dependencies...)
	d.mu.Unlock()

	errs := make([]string, 0, len(summary.Errors))
	for _, err := range summary.Errors {
		errs = append(errs, err.Error())
	}
	return Status{
		Running:         d.running.Load(),
		Recorders:       out,
		NetworkDevices:  len(d.discovery.Network()),
		LocalDevices:    len(d.discovery.Local()),
		LastDiscovery:   last,
		DiscoveryErrors: errs,
		HotplugActive:   d.monitor.Running(),
		Reschedules:     reschedules,
		Listings:        d.lineup.ListingNames(),
		Dependencies:    dependencies,
		DatabasePath:    d.cfg.DatabasePath(),
		LockFilePath:    d.lockPath,
		LineupFile:      d.cfg.Paths.LineupFile,
	}
}
