package discovery

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"tvrec/internal/config"
	"tvrec/internal/device"
	"tvrec/internal/hdhr"
	"tvrec/internal/logging"
	"tvrec/internal/recorder"
	"tvrec/internal/v4l"
)

// Registry is where discovered recorders are registered.
type Registry interface {
	Add(recorder.Recorder) bool
	Lookup(device string) (recorder.Recorder, bool)
	Remove(device string) (recorder.Recorder, bool)
}

// Summary reports one discovery pass.
type Summary struct {
	Network    int
	Local      int
	Registered []string
	Skipped    []string
	Errors     []error
}

// Err joins the errors of the pass.
func (s Summary) Err() error {
	return errors.Join(s.Errors...)
}

// Service discovers devices and registers their recorders.
type Service struct {
	cfg      *config.Config
	store    *recorder.Store
	registry Registry
	logger   *slog.Logger

	discoverNetwork func(context.Context) ([]device.NetworkDescriptor, error)
	discoverLocal   func(context.Context) ([]device.LocalDescriptor, error)
	probe           func(context.Context, string) (v4l.Capabilities, error)

	registerMu sync.Mutex

	mu      sync.Mutex
	network []device.NetworkDescriptor
	local   []device.LocalDescriptor
}

// Option customizes a Service.
type Option func(*Service)

// WithNetworkDiscovery replaces the hdhomerun_config based discovery.
func WithNetworkDiscovery(fn func(context.Context) ([]device.NetworkDescriptor, error)) Option {
	return func(s *Service) {
		if fn != nil {
			s.discoverNetwork = fn
		}
	}
}

// WithLocalDiscovery replaces the v4l2-ctl based discovery.
func WithLocalDiscovery(fn func(context.Context) ([]device.LocalDescriptor, error)) Option {
	return func(s *Service) {
		if fn != nil {
			s.discoverLocal = fn
		}
	}
}

// WithProbe replaces the local capability probe.
func WithProbe(fn func(context.Context, string) (v4l.Capabilities, error)) Option {
	return func(s *Service) {
		if fn != nil {
			s.probe = fn
		}
	}
}

// NewService builds a discovery service persisting configurations in store.
func NewService(cfg *config.Config, store *recorder.Store, registry Registry, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		store:    store,
		registry: registry,
		logger:   logging.NewComponentLogger(logger, "discovery"),
	}
	hdhrCLI := hdhr.CLI{Binary: cfg.Tools.HDHomeRunConfig}
	v4lCLI := v4l.CLI{Binary: cfg.Tools.V4L2Ctl}
	s.discoverNetwork = func(ctx context.Context) ([]device.NetworkDescriptor, error) {
		return hdhr.Discover(ctx, hdhrCLI, s.logger)
	}
	s.discoverLocal = func(ctx context.Context) ([]device.LocalDescriptor, error) {
		return v4l.Discover(ctx, v4lCLI, cfg.V4L2.DeviceDir, cfg.V4L2.MaxIndex, s.logger)
	}
	s.probe = func(ctx context.Context, dev string) (v4l.Capabilities, error) {
		return v4l.RunProbe(ctx, v4lCLI, dev, s.logger)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DiscoverAll runs both families concurrently, then registers every device
// that is not registered yet. Failures leave a partial device set; nothing is
// retried until the next pass.
func (s *Service) DiscoverAll(ctx context.Context) Summary {
	var (
		network []device.NetworkDescriptor
		local   []device.LocalDescriptor
		netErr  error
		locErr  error
	)
	g, gctx := errgroup.WithContext(ctx)
	if s.cfg.HDHomeRun.Enabled {
		g.Go(func() error {
			network, netErr = s.discoverNetwork(gctx)
			return nil
		})
	}
	if s.cfg.V4L2.Enabled {
		g.Go(func() error {
			local, locErr = s.discoverLocal(gctx)
			return nil
		})
	}
	_ = g.Wait()

	var summary Summary
	if netErr != nil {
		s.logger.Warn("network discovery failed", logging.Error(netErr))
		summary.Errors = append(summary.Errors, netErr)
	}
	if locErr != nil {
		s.logger.Warn("local discovery failed", logging.Error(locErr))
		summary.Errors = append(summary.Errors, locErr)
	}
	for _, desc := range network {
		s.AddNetwork(desc)
	}
	for _, desc := range local {
		s.AddLocal(desc)
	}
	summary.Network = len(network)
	summary.Local = len(local)

	for _, desc := range network {
		s.registerNetwork(ctx, desc, &summary)
	}
	for _, desc := range local {
		s.registerLocal(ctx, desc, &summary)
	}
	s.logger.Info("discovery pass complete",
		logging.Int("network_devices", summary.Network),
		logging.Int("local_devices", summary.Local),
		logging.Strings("registered", summary.Registered),
		logging.Int("errors", len(summary.Errors)),
	)
	return summary
}

// RegisterNetwork registers every tuner of desc that is not registered yet.
func (s *Service) RegisterNetwork(ctx context.Context, desc device.NetworkDescriptor) Summary {
	var summary Summary
	s.AddNetwork(desc)
	s.registerNetwork(ctx, desc, &summary)
	return summary
}

// RegisterLocal registers desc unless it is registered already.
func (s *Service) RegisterLocal(ctx context.Context, desc device.LocalDescriptor) Summary {
	var summary Summary
	s.AddLocal(desc)
	s.registerLocal(ctx, desc, &summary)
	return summary
}

// RegisterPath rediscovers local devices and registers the one at path. It
// is the hotplug entry point: the uevent carries only the node name.
func (s *Service) RegisterPath(ctx context.Context, path string) Summary {
	var summary Summary
	if !s.cfg.V4L2.Enabled {
		return summary
	}
	local, err := s.discoverLocal(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, err)
		return summary
	}
	for _, desc := range local {
		if desc.Key() != path {
			continue
		}
		summary.Local = 1
		s.AddLocal(desc)
		s.registerLocal(ctx, desc, &summary)
		return summary
	}
	s.logger.Debug("hotplugged device not found by discovery", logging.Device(path))
	return summary
}

func (s *Service) tunerCount() int {
	if s.cfg.HDHomeRun.TunerCount > 0 {
		return s.cfg.HDHomeRun.TunerCount
	}
	return 2
}

func (s *Service) registerNetwork(ctx context.Context, desc device.NetworkDescriptor, summary *Summary) {
	s.registerMu.Lock()
	defer s.registerMu.Unlock()
	for tuner := 0; tuner < s.tunerCount(); tuner++ {
		if ctx.Err() != nil {
			return
		}
		key := desc.Key(tuner)
		if _, ok := s.registry.Lookup(key); ok {
			summary.Skipped = append(summary.Skipped, key)
			continue
		}
		readMode := device.ParseReadMode(s.cfg.HDHomeRun.ReadMode)
		source := device.Source(hdhr.DisplayTitle(desc.Model), key)
		cfg, created, err := s.store.LoadOrCreate(source, device.FamilyHDHomeRun, func() (*recorder.Configuration, error) {
			return hdhr.DefaultConfiguration(desc, tuner, readMode), nil
		})
		if err != nil {
			s.logger.Warn("recorder configuration unavailable", logging.Device(key), logging.Error(err))
			summary.Errors = append(summary.Errors, err)
			continue
		}
		rec := hdhr.NewRecorder(desc, tuner, cfg, NetworkOptions(s.cfg, s.logger))
		if s.registry.Add(rec) {
			summary.Registered = append(summary.Registered, key)
			s.logger.Info("recorder registered",
				logging.Device(key),
				logging.String("title", rec.Title()),
				logging.Bool("config_created", created),
			)
		}
	}
}

func (s *Service) registerLocal(ctx context.Context, desc device.LocalDescriptor, summary *Summary) {
	s.registerMu.Lock()
	defer s.registerMu.Unlock()
	key := desc.Key()
	if _, ok := s.registry.Lookup(key); ok {
		summary.Skipped = append(summary.Skipped, key)
		return
	}
	readMode := device.ParseReadMode(s.cfg.V4L2.ReadMode)
	source := device.Source(v4l.Title(desc), key)
	cfg, created, err := s.store.LoadOrCreate(source, device.FamilyV4L2, func() (*recorder.Configuration, error) {
		caps, err := s.probe(ctx, desc.Path)
		if err != nil {
			return nil, err
		}
		return v4l.DefaultConfiguration(desc, caps, s.cfg.V4L2.FrequencyTables, readMode), nil
	})
	if err != nil {
		s.logger.Warn("recorder configuration unavailable", logging.Device(key), logging.Error(err))
		summary.Errors = append(summary.Errors, err)
		return
	}
	rec := v4l.NewRecorder(desc, cfg, LocalOptions(s.cfg, s.logger))
	if s.registry.Add(rec) {
		summary.Registered = append(summary.Registered, key)
		s.logger.Info("recorder registered",
			logging.Device(key),
			logging.String("title", rec.Title()),
			logging.Bool("config_created", created),
		)
	}
}

// Unregister removes the recorder for key, stopping it first when busy.
func (s *Service) Unregister(key string) bool {
	rec, ok := s.registry.Remove(key)
	if !ok {
		return false
	}
	if rec.IsRecording() {
		logging.WarnWithContext(s.logger, "device removed while recording", "device_removed_busy",
			logging.Device(key),
			logging.String(logging.FieldImpact, "recording stopped early"),
		)
		rec.StopRecording()
	}
	s.RemoveLocal(key)
	return true
}

// AddNetwork records desc, replacing an entry with the same id.
func (s *Service) AddNetwork(desc device.NetworkDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.network {
		if existing.ID == desc.ID {
			s.network[i] = desc
			return
		}
	}
	s.network = append(s.network, desc)
	sort.Slice(s.network, func(i, j int) bool { return s.network[i].ID < s.network[j].ID })
}

// AddLocal records desc, replacing an entry with the same path.
func (s *Service) AddLocal(desc device.LocalDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.local {
		if existing.Path == desc.Path {
			s.local[i] = desc
			return
		}
	}
	s.local = append(s.local, desc)
	sort.Slice(s.local, func(i, j int) bool { return s.local[i].Path < s.local[j].Path })
}

// RemoveNetwork forgets the device with id.
func (s *Service) RemoveNetwork(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.network {
		if existing.ID == id {
			s.network = append(s.network[:i], s.network[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveLocal forgets the device at path.
func (s *Service) RemoveLocal(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.local {
		if existing.Path == path {
			s.local = append(s.local[:i], s.local[i+1:]...)
			return true
		}
	}
	return false
}

// Network returns the network devices found so far.
func (s *Service) Network() []device.NetworkDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]device.NetworkDescriptor(nil), s.network...)
}

// Local returns the local devices found so far.
func (s *Service) Local() []device.LocalDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]device.LocalDescriptor(nil), s.local...)
}
