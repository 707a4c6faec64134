package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"tvrec/internal/daemon"
	"tvrec/internal/device"
	"tvrec/internal/logging"
	"tvrec/internal/nms"
	"tvrec/internal/services"
)

// ServiceName is the JSON-RPC receiver name.
const ServiceName = "TVRec"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName(ServiceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Go(func() {
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Go(func() {
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
			})
		}
	})
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

// requestContext tags one RPC with a correlation id and the operation name.
func (s *service) requestContext(stage string) context.Context {
	return services.WithStage(services.WithRequestID(s.ctx, uuid.NewString()), stage)
}

func recorderInfos(in []daemon.RecorderStatus) []RecorderInfo {
	out := make([]RecorderInfo, 0, len(in))
	for _, rec := range in {
		out = append(out, RecorderInfo{
			Device:    rec.Device,
			Title:     rec.Title,
			Family:    rec.Family,
			Recording: rec.Recording,
			Session:   rec.Session,
		})
	}
	return out
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status()
	resp.Running = status.Running
	resp.PID = os.Getpid()
	resp.Recorders = recorderInfos(status.Recorders)
	resp.NetworkDevices = status.NetworkDevices
	resp.LocalDevices = status.LocalDevices
	resp.LastDiscovery = status.LastDiscovery
	resp.DiscoveryErrors = status.DiscoveryErrors
	resp.HotplugActive = status.HotplugActive
	resp.Reschedules = status.Reschedules
	resp.Listings = status.Listings
	resp.LockPath = status.LockFilePath
	resp.DatabasePath = status.DatabasePath
	resp.LineupFile = status.LineupFile
	if len(status.Dependencies) > 0 {
		resp.Dependencies = make([]DependencyStatus, 0, len(status.Dependencies))
		for _, dep := range status.Dependencies {
			resp.Dependencies = append(resp.Dependencies, DependencyStatus{
				Name:        dep.Name,
				Command:     dep.Command,
				Description: dep.Description,
				Optional:    dep.Optional,
				Available:   dep.Available,
				Detail:      dep.Detail,
			})
		}
	}
	return nil
}

func (s *service) Recorders(_ RecordersRequest, resp *RecordersResponse) error {
	resp.Recorders = recorderInfos(s.daemon.Status().Recorders)
	return nil
}

func (s *service) Recordings(req RecordingsRequest, resp *RecordingsResponse) error {
	wanted := make(map[nms.Status]struct{}, len(req.Statuses))
	for _, raw := range req.Statuses {
		status, ok := nms.ParseStatus(raw)
		if !ok {
			return fmt.Errorf("unknown recording status %q", raw)
		}
		wanted[status] = struct{}{}
	}
	recordings, err := s.daemon.NMS().Recordings(s.ctx)
	if err != nil {
		return err
	}
	resp.Recordings = make([]Recording, 0, len(recordings))
	for _, rec := range recordings {
		if len(wanted) > 0 {
			if _, ok := wanted[rec.Status]; !ok {
				continue
			}
		}
		resp.Recordings = append(resp.Recordings, rec)
	}
	return nil
}

func (s *service) Record(req RecordRequest, resp *RecordResponse) error {
	ctx := s.requestContext("record")
	logging.WithContext(ctx, s.logger).Debug("record requested",
		logging.Device(req.Device),
		logging.String("channel", req.Channel))
	rec, err := s.daemon.NMS().StartRecording(ctx, nms.RecordRequest{
		Device:          strings.TrimSpace(req.Device),
		Channel:         device.Channel{Number: strings.TrimSpace(req.Channel)},
		DurationSeconds: req.DurationSeconds,
		Title:           req.Title,
		ShowID:          req.ShowID,
	})
	if err != nil {
		return err
	}
	resp.Recording = rec
	s.logger.Info("recording started via IPC",
		logging.String(logging.FieldEventType, "ipc_record"),
		logging.RecordingID(rec.ID))
	return nil
}

func (s *service) StopRecording(req StopRecordingRequest, resp *StopRecordingResponse) error {
	if err := s.daemon.NMS().StopRecording(s.requestContext("stop"), nms.Recording{ID: req.ID}); err != nil {
		return err
	}
	resp.Stopped = true
	return nil
}

func (s *service) RemoveRecording(req RemoveRecordingRequest, resp *RemoveRecordingResponse) error {
	ctx := services.WithRecordingID(s.requestContext("remove"), req.ID)
	if err := s.daemon.NMS().RemoveRecording(ctx, nms.Recording{ID: req.ID}, req.AllowRerecord); err != nil {
		return err
	}
	resp.Removed = true
	logging.WithContext(ctx, s.logger).Info("recording removed via IPC",
		logging.String(logging.FieldEventType, "ipc_remove"),
		logging.Bool("allow_rerecord", req.AllowRerecord))
	return nil
}

func (s *service) Override(req OverrideRequest, resp *OverrideResponse) error {
	status, ok := nms.ParseStatus(req.Status)
	if !ok {
		return fmt.Errorf("unknown upcoming status %q", req.Status)
	}
	upcoming := nms.Upcoming{
		Show:    nms.Show{ID: req.ShowID, Title: req.Title},
		Channel: device.Channel{Number: req.Channel},
		Status:  status,
	}
	if err := s.daemon.NMS().OverrideUpcoming(s.requestContext("override"), upcoming, status); err != nil {
		return err
	}
	resp.Overridden = true
	return nil
}

func (s *service) Discover(_ DiscoverRequest, resp *DiscoverResponse) error {
	summary := s.daemon.Discover(s.ctx)
	resp.Network = summary.Network
	resp.Local = summary.Local
	resp.Registered = summary.Registered
	resp.Skipped = summary.Skipped
	for _, err := range summary.Errors {
		resp.Errors = append(resp.Errors, err.Error())
	}
	return nil
}

func (s *service) Scan(req ScanRequest, resp *ScanResponse) error {
	channels, err := s.daemon.NMS().PerformScan(s.requestContext("scan"), strings.TrimSpace(req.Device))
	if err != nil {
		return err
	}
	resp.Channels = channels
	return nil
}

func (s *service) Channels(_ ChannelsRequest, resp *ChannelsResponse) error {
	channels, err := s.daemon.NMS().GetRecordableChannels(s.ctx)
	if err != nil {
		return err
	}
	resp.Channels = channels
	return nil
}

func (s *service) Listings(_ ListingsRequest, resp *ListingsResponse) error {
	configured, err := s.daemon.Store().ConfiguredListingNames(s.ctx)
	if err != nil {
		return err
	}
	set := make(map[string]struct{}, len(configured))
	for _, name := range configured {
		set[name] = struct{}{}
	}
	programs := s.daemon.Lineup()
	for _, name := range programs.ListingNames() {
		_, ok := set[name]
		resp.Listings = append(resp.Listings, ListingInfo{
			Name:       name,
			Channels:   len(programs.Channels(name)),
			Configured: ok,
		})
	}
	return nil
}

func (s *service) SetListing(req SetListingRequest, resp *SetListingResponse) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return errors.New("listing name is required")
	}
	var err error
	if req.Configured {
		err = s.daemon.Store().AddListing(s.ctx, name)
	} else {
		err = s.daemon.Store().RemoveListing(s.ctx, name)
	}
	if err != nil {
		return err
	}
	resp.Updated = true
	s.logger.Info("listing updated via IPC",
		logging.String(logging.FieldEventType, "ipc_listing"),
		logging.String("listing", name),
		logging.Bool("configured", req.Configured))
	return nil
}

func (s *service) Rules(_ RulesRequest, resp *RulesResponse) error {
	rules, err := s.daemon.Store().RecordingRules(s.ctx)
	if err != nil {
		return err
	}
	resp.Rules = rules
	return nil
}

func (s *service) AddRule(req AddRuleRequest, resp *AddRuleResponse) error {
	rule, err := s.daemon.Store().AddRecordingRule(s.ctx, req.Rule)
	if err != nil {
		return err
	}
	resp.Rule = rule
	return nil
}

func (s *service) DeleteRule(req DeleteRuleRequest, resp *DeleteRuleResponse) error {
	if err := s.daemon.Store().DeleteRecordingRule(s.ctx, req.ID); err != nil {
		return err
	}
	resp.Deleted = true
	return nil
}
