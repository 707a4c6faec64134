package hdhr

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tvrec/internal/device"
	"tvrec/internal/job"
	"tvrec/internal/logging"
)

// ScanConfig describes one channel scan.
type ScanConfig struct {
	CLI        CLI
	DeviceID   string
	Tuner      int
	ChannelMap string
	Channels   []device.Channel
	Dir        string
	Grace      time.Duration
	Logger     *slog.Logger
}

// ScanJob optionally selects a channel map, scans the tuner to a log file,
// parses the log and persists the merged scan map.
type ScanJob struct {
	job.Base

	cfg    ScanConfig
	key    string
	logger *slog.Logger

	mu     sync.Mutex
	chain  *job.Chain
	scan   *job.ProcessJob
	result ScanMap
	path   string
}

// NewScanJob builds a scan job.
func NewScanJob(cfg ScanConfig) *ScanJob {
	key := device.NetworkKey(cfg.DeviceID, cfg.Tuner)
	s := &ScanJob{cfg: cfg, key: key, logger: logging.NewDeviceLogger(cfg.Logger, "hdhr-scan", key)}
	s.JobName = "hdhr-scan"
	return s
}

// LogPath is where the helper writes the raw scan log.
func (s *ScanJob) LogPath() string {
	return filepath.Join(s.cfg.Dir, s.key+"-scan.log")
}

func (s *ScanJob) Start() error {
	if s.cfg.DeviceID == "" {
		return errors.New("hdhr scan: device id required")
	}
	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("hdhr scan: create %s: %w", s.cfg.Dir, err)
	}
	grace := job.WithGrace(s.cfg.Grace)
	var channelMap job.Job
	if s.cfg.ChannelMap != "" {
		channelMap = job.NewProcess("channelmap", s.cfg.CLI.SetChannelMap(s.cfg.DeviceID, s.cfg.Tuner, s.cfg.ChannelMap), grace)
	}
	scan := job.NewProcess("scan", s.cfg.CLI.Scan(s.cfg.DeviceID, s.cfg.Tuner, s.LogPath()), grace, job.WithLineUpdates())
	s.mu.Lock()
	s.scan = scan
	s.chain = job.Sequence(s.JobName, channelMap, scan)
	s.mu.Unlock()
	return nil
}

func (s *ScanJob) Run() {
	s.mu.Lock()
	chain, scan := s.chain, s.scan
	s.mu.Unlock()
	chain.AddListener(job.ListenerFunc(func(ev job.Event) {
		if ev.Type == job.Update {
			s.FireUpdate(s, ev.Message, ev.Payload)
		}
	}))
	c := job.NewContainer(chain)
	if s.Terminated() {
		chain.Stop()
	}
	c.Start()
	<-c.Done()
	if s.Terminated() {
		s.FireComplete(s, nil, job.ErrStopped)
		return
	}

	output := scan.Output()
	if data, err := os.ReadFile(s.LogPath()); err == nil && len(data) > 0 {
		output = string(data)
	}
	results := ParseScanLog(output)
	merged := MergeScan(results, s.cfg.Channels)
	if code := scan.ExitCode(); code != 0 {
		s.logger.Info("scan exited non-zero", logging.Int("exit_code", code), logging.Int("programs", len(results)))
	}
	path, err := SaveScanMap(s.cfg.Dir, s.key, merged)
	if err != nil {
		s.logger.Warn("scan map not saved", logging.Error(err))
	}
	s.mu.Lock()
	s.result = merged
	s.path = path
	s.mu.Unlock()
	s.logger.Info("scan complete",
		logging.Int("programs", len(results)),
		logging.Int("channels", len(merged)),
		logging.String("scan_file", path),
	)
	s.FireComplete(s, merged, err)
}

func (s *ScanJob) Stop() {
	if !s.Terminate() {
		return
	}
	s.mu.Lock()
	chain := s.chain
	s.mu.Unlock()
	if chain != nil {
		chain.Stop()
	}
}

// Result returns the merged scan map once the job has completed.
func (s *ScanJob) Result() (ScanMap, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.path
}
