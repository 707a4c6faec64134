package daemon_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"tvrec/internal/config"
	"tvrec/internal/daemon"
	"tvrec/internal/device"
	"tvrec/internal/discovery"
	"tvrec/internal/nms"
	"tvrec/internal/services"
	"tvrec/internal/testsupport"
)

type recordingSender struct {
	events []nms.Event
	closed bool
}

func (s *recordingSender) Send(ev nms.Event)                             { s.events = append(s.events, ev) }
func (s *recordingSender) Publish(_ context.Context, ev nms.Event) error { s.Send(ev); return nil }
func (s *recordingSender) Close()                                        { s.closed = true }

var box = device.NetworkDescriptor{ID: "1020FA3C", IPAddress: "192.168.1.40", Model: "hdhomerun3_atsc"}

func newDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, *recordingSender) {
	t.Helper()
	st := testsupport.MustOpenStore(t, cfg)
	sender := &recordingSender{}
	d, err := daemon.New(cfg, st, nil, daemon.Options{
		Sender:            sender,
		ReconcileInterval: 20 * time.Millisecond,
		Discovery: []discovery.Option{
			discovery.WithNetworkDiscovery(func(context.Context) ([]device.NetworkDescriptor, error) {
				return []device.NetworkDescriptor{box}, nil
			}),
		},
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	return d, sender
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithNetworkTuners(2))
	d, _ := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, "initial discovery", func() bool {
		return len(d.Status().Recorders) == 2
	})
	status := d.Status()
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.NetworkDevices != 1 {
		t.Fatalf("expected one network device, got %d", status.NetworkDevices)
	}
	if status.Recorders[0].Device != "1020FA3C-0" || status.Recorders[1].Device != "1020FA3C-1" {
		t.Fatalf("unexpected recorder order: %+v", status.Recorders)
	}
	if status.LockFilePath != cfg.LockPath() {
		t.Fatalf("lock path = %q", status.LockFilePath)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, _ := newDaemon(t, cfg)
	second, _ := newDaemon(t, cfg)

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	err := second.Start(ctx)
	if !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected ErrBusy from second instance, got %v", err)
	}
	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("second Start after release: %v", err)
	}
	second.Stop()
}

func TestDaemonDrainsRescheduleRequests(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, st, nil, daemon.Options{Sender: &recordingSender{}})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := st.RequestRescheduling(context.Background(), "override"); err != nil {
		t.Fatalf("RequestRescheduling: %v", err)
	}
	waitFor(t, "reschedule drain", func() bool {
		return d.Status().Reschedules == 1
	})
	left, err := st.DrainRescheduleRequests(context.Background())
	if err != nil {
		t.Fatalf("DrainRescheduleRequests: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("expected queue to be empty, got %d", len(left))
	}
}

func TestDaemonCloseClosesSender(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, sender := newDaemon(t, cfg)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !sender.closed {
		t.Fatal("expected sender to be closed")
	}
}

func TestDaemonStoppedChannel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newDaemon(t, cfg)
	if d.Stopped() != nil {
		t.Fatal("expected nil channel before Start")
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	stopped := d.Stopped()
	select {
	case <-stopped:
		t.Fatal("channel closed while running")
	default:
	}
	d.Stop()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("expected channel to close on Stop")
	}
}
