// Package daemonrun hosts the tvrec daemon process: logging setup, the
// sqlite store, the daemon lifecycle and the IPC socket.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"tvrec/internal/config"
	"tvrec/internal/daemon"
	"tvrec/internal/ipc"
	"tvrec/internal/logging"
	"tvrec/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
	// SocketPath overrides the configured IPC socket location.
	SocketPath string
	// Foreground keeps logs on stdout only, without a per-run log file.
	Foreground bool
}

// Run starts the tvrec daemon and blocks until SIGINT, SIGTERM or ctx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	outputs := []string{"stdout"}
	var logPath string
	if !opts.Foreground {
		runID := time.Now().UTC().Format("20060102T150405.000Z")
		logPath = filepath.Join(cfg.Paths.StateDir, fmt.Sprintf("tvrec-%s.log", runID))
		outputs = append(outputs, logPath)
	}
	logger, err := logging.New(logging.Options{
		Level:   level,
		Format:  cfg.Logging.Format,
		Outputs: outputs,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if logPath != "" {
		if err := ensureCurrentLogPointer(cfg.LogPath(), logPath); err != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to update tvrec.log link: %v\n", err)
		}
	}
	logConfigSnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.StateDir, "tvrecd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}

	d, err := daemon.New(cfg, st, logger, daemon.Options{})
	if err != nil {
		st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another running tvrecd and the state directory permissions"),
		)
		return err
	}

	socketPath := opts.SocketPath
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	select {
	case <-signalCtx.Done():
	case <-d.Stopped():
	}
	logger.Info("tvrec daemon shutting down")
	return nil
}

// ensureCurrentLogPointer points current at target, preferring a symlink.
func ensureCurrentLogPointer(current, target string) error {
	if current == "" || target == "" {
		return nil
	}
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// ReadPID returns the pid recorded by a running daemon.
func ReadPID(cfg *config.Config) (int, error) {
	data, err := os.ReadFile(filepath.Join(cfg.Paths.StateDir, "tvrecd.pid"))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(string(trimNewline(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file: %w", err)
	}
	return pid, nil
}

func trimNewline(data []byte) []byte {
	for len(data) > 0 && (data[len(data)-1] == '\n' || data[len(data)-1] == '\r') {
		data = data[:len(data)-1]
	}
	return data
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.Bool("hdhomerun_enabled", cfg.HDHomeRun.Enabled),
		logging.Int("hdhomerun_tuners", cfg.HDHomeRun.TunerCount),
		logging.Bool("v4l2_enabled", cfg.V4L2.Enabled),
		logging.String("recordings_dir", cfg.Paths.RecordingsDir),
		logging.String("lineup_file", cfg.Paths.LineupFile),
		logging.Int("discovery_interval_s", cfg.NMS.DiscoveryInterval),
		logging.Bool("notifications", cfg.Notifications.NtfyTopic != ""),
	)
}
