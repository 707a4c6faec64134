package discovery

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"tvrec/internal/config"
	"tvrec/internal/logging"
)

// DeviceHandler reacts to a capture node appearing or disappearing.
type DeviceHandler func(ctx context.Context, path string)

// Monitor listens for udev netlink events on video4linux nodes so local
// recorders follow hot-plugged cards without waiting for the next sweep.
type Monitor struct {
	logger    *slog.Logger
	deviceDir string
	onAdd     DeviceHandler
	onRemove  DeviceHandler

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewMonitor returns nil when local capture is disabled.
func NewMonitor(cfg *config.Config, logger *slog.Logger, onAdd, onRemove DeviceHandler) *Monitor {
	if cfg == nil || !cfg.V4L2.Enabled {
		return nil
	}
	dir := strings.TrimSpace(cfg.V4L2.DeviceDir)
	if dir == "" {
		dir = "/dev"
	}
	return &Monitor{
		logger:    logging.NewComponentLogger(logger, "udev-monitor"),
		deviceDir: dir,
		onAdd:     onAdd,
		onRemove:  onRemove,
	}
}

// Start begins listening. A socket that cannot be opened is logged and
// ignored; periodic discovery still picks devices up.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; local devices follow periodic discovery only",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "hot-plugged capture cards are picked up late"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("udev monitor started",
		logging.String(logging.FieldEventType, "netlink_monitor_started"),
		logging.String("device_dir", m.deviceDir),
	)
	return nil
}

// Stop shuts the monitor down.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("udev monitor stopped",
		logging.String(logging.FieldEventType, "netlink_monitor_stopped"),
	)
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	matcher := buildMatcher()

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, matcher)
	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			m.logger.Warn("udev monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "device hot-plug may be missed"),
			)
		}
	}
}

// buildMatcher matches SUBSYSTEM=video4linux with ACTION=add|remove.
func buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "video4linux",
		},
	})
	return rules
}

func (m *Monitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	path := m.devicePath(uevent)
	if path == "" {
		m.logger.Debug("ignoring event without device name",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}
	if !strings.HasPrefix(filepath.Base(path), "video") {
		m.logger.Debug("ignoring non-capture node", logging.Device(path))
		return
	}

	switch uevent.Action {
	case netlink.ADD:
		m.logger.Info("capture device added",
			logging.String(logging.FieldEventType, "udev_device_added"),
			logging.Device(path),
		)
		if m.onAdd != nil {
			m.onAdd(ctx, path)
		}
	case netlink.REMOVE:
		m.logger.Info("capture device removed",
			logging.String(logging.FieldEventType, "udev_device_removed"),
			logging.Device(path),
		)
		if m.onRemove != nil {
			m.onRemove(ctx, path)
		}
	}
}

// devicePath prefers DEVNAME and falls back to the last DEVPATH segment.
func (m *Monitor) devicePath(uevent netlink.UEvent) string {
	name := uevent.Env["DEVNAME"]
	if name == "" {
		devpath := uevent.Env["DEVPATH"]
		if devpath == "" {
			return ""
		}
		name = devpath[strings.LastIndex(devpath, "/")+1:]
	}
	if name == "" {
		return ""
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(m.deviceDir, filepath.Base(name))
}
