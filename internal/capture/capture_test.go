package capture

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Comcast/gots/packet"
	"go.uber.org/goleak"

	"tvrec/internal/device"
	"tvrec/internal/job"
	"tvrec/internal/testsupport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func tsPackets(n int) []byte {
	out := make([]byte, 0, n*packet.PacketSize)
	for i := 0; i < n; i++ {
		pkt := make([]byte, packet.PacketSize)
		pkt[0] = syncByte
		pkt[1] = 0x40
		pkt[3] = byte(i)
		out = append(out, pkt...)
	}
	return out
}

func freeUDPPort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := conn.LocalAddr().(*net.UDPAddr).Port
	_ = conn.Close()
	return port
}

func TestFreePortSkipsBoundPorts(t *testing.T) {
	held, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer held.Close()
	port := held.LocalAddr().(*net.UDPAddr).Port

	if got := FreePort(port, port); got != 0 {
		t.Fatalf("expected no free port while %d is held, got %d", port, got)
	}
	_ = held.Close()
	if got := FreePort(port, port); got != port {
		t.Fatalf("expected %d once released, got %d", port, got)
	}
}

func TestWaitForListener(t *testing.T) {
	port := freeUDPPort(t)
	if WaitForListener(port, 50*time.Millisecond, nil) {
		t.Fatal("nothing is listening yet")
	}
	conn, err := net.ListenPacket("udp", UDPAddr(port))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if !WaitForListener(port, time.Second, nil) {
		t.Fatal("expected listener to be observed")
	}
}

func TestUDPSinkFramesDatagrams(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	sink, err := DialUDPSink(conn.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	payload := append([]byte{0x00, 0x12, 0x34}, tsPackets(10)...)
	if _, err := sink.Write(payload[:500]); err != nil {
		t.Fatal(err)
	}
	if _, err := sink.Write(payload[500:]); err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 65536)
	var sizes []int
	var received []byte
	for len(sizes) < 2 {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			t.Fatalf("read datagram: %v", err)
		}
		sizes = append(sizes, n)
		received = append(received, buf[:n]...)
	}
	if sizes[0] != 7*packet.PacketSize || sizes[1] != 3*packet.PacketSize {
		t.Fatalf("unexpected datagram sizes %v", sizes)
	}
	if !bytes.Equal(received, tsPackets(10)) {
		t.Fatal("relayed bytes differ from source packets")
	}
	stats := sink.Stats()
	if stats.Packets != 10 || stats.Datagrams != 2 || stats.SyncLosses != 1 || stats.Units != 10 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestFileCopyJob(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "video0")
	dest := filepath.Join(dir, "out.mpg")
	data := testsupport.WriteTransportStream(t, source, 400)

	j := ForDevice(device.ReadCopy, Options{}, source, dest)
	c := job.Go(j)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("copied %d bytes, want %d", len(got), len(data))
	}
	if j.(*CopyJob).Written() != int64(len(data)) {
		t.Fatalf("unexpected written count %d", j.(*CopyJob).Written())
	}
}

type fakePortJob struct {
	job.Base
	listen  bool
	port    int
	started chan time.Time
	conn    net.PacketConn
}

func newFakePortJob(name string, port int, listen bool) *fakePortJob {
	j := &fakePortJob{port: port, listen: listen, started: make(chan time.Time, 1)}
	j.JobName = name
	return j
}

func (j *fakePortJob) Start() error {
	if j.listen {
		conn, err := net.ListenPacket("udp", UDPAddr(j.port))
		if err != nil {
			return err
		}
		j.conn = conn
	}
	j.started <- time.Now()
	return nil
}

func (j *fakePortJob) Run() {
	j.Sleep(time.Hour)
	if j.conn != nil {
		_ = j.conn.Close()
	}
	j.FireComplete(j, nil, nil)
}

func (j *fakePortJob) Stop() { j.Terminate() }

func TestRelayStartsSenderAfterReaderListens(t *testing.T) {
	port := freeUDPPort(t)
	var mu sync.Mutex
	var reader, sender *fakePortJob

	relay := NewRelay(RelayConfig{
		PortMin:    port,
		PortMax:    port,
		StartDelay: 5 * time.Second,
		Reader: func(p int) job.Job {
			mu.Lock()
			defer mu.Unlock()
			reader = newFakePortJob("reader", p, true)
			return reader
		},
		Sender: func(p int) job.Job {
			mu.Lock()
			defer mu.Unlock()
			sender = newFakePortJob("sender", p, false)
			return sender
		},
	})

	begin := time.Now()
	c := job.Go(relay)
	var senderAt time.Time
	deadline := time.After(3 * time.Second)
	for senderAt.IsZero() {
		mu.Lock()
		s := sender
		mu.Unlock()
		if s != nil {
			senderAt = <-s.started
			break
		}
		select {
		case <-deadline:
			t.Fatal("sender never started")
		case <-time.After(10 * time.Millisecond):
		}
	}
	mu.Lock()
	r := reader
	mu.Unlock()
	readerAt := <-r.started
	if senderAt.Before(readerAt) {
		t.Fatal("sender started before reader")
	}
	if senderAt.Sub(begin) > 2*time.Second {
		t.Fatalf("sender waited for the full delay instead of the handshake: %s", senderAt.Sub(begin))
	}
	if relay.Port() != port {
		t.Fatalf("unexpected relay port %d", relay.Port())
	}

	c.Stop()
	if err := c.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !r.Completed() || !sender.Completed() {
		t.Fatal("stop must cascade to reader and sender")
	}
}

func TestRelayFallsBackToDelay(t *testing.T) {
	port := freeUDPPort(t)
	var sender *fakePortJob
	var reader *fakePortJob
	relay := NewRelay(RelayConfig{
		PortMin:    port,
		PortMax:    port,
		StartDelay: 150 * time.Millisecond,
		Reader: func(p int) job.Job {
			reader = newFakePortJob("reader", p, false)
			return reader
		},
		Sender: func(p int) job.Job {
			sender = newFakePortJob("sender", p, false)
			return sender
		},
	})
	c := job.Go(relay)
	time.Sleep(500 * time.Millisecond)
	c.Stop()
	if err := c.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sender == nil {
		t.Fatal("sender should start after the delay")
	}
	gap := (<-sender.started).Sub(<-reader.started)
	if gap < 140*time.Millisecond {
		t.Fatalf("sender started %s after reader, want at least the delay", gap)
	}
}

func TestRelayFailsWithoutPort(t *testing.T) {
	held, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer held.Close()
	port := held.Addr().(*net.TCPAddr).Port

	relay := NewRelay(RelayConfig{
		PortMin: port,
		PortMax: port,
		Reader:  func(int) job.Job { t.Fatal("reader must not start"); return nil },
		Sender:  func(int) job.Job { t.Fatal("sender must not start"); return nil },
	})
	if err := job.Go(relay).Wait(context.Background()); err == nil {
		t.Fatal("expected start failure without a free port")
	}
}

func TestTranscodeArgs(t *testing.T) {
	args := TranscodeArgs("/dev/video0", "/rec/a.mpg", Codecs{Video: "mpeg2video", Audio: "mp2"})
	joined := " " + stringsJoin(args) + " "
	for _, want := range []string{" -i /dev/video0 ", " -c:v mpeg2video ", " -c:a mp2 ", " /rec/a.mpg "} {
		if !bytes.Contains([]byte(joined), []byte(want)) {
			t.Fatalf("expected %q in %q", want, joined)
		}
	}
	if got := UDPInput(4888); got != "udp://127.0.0.1:4888?overrun_nonfatal=1&fifo_size=1000000" {
		t.Fatalf("unexpected udp input %q", got)
	}
}

func stringsJoin(args []string) string {
	var buf bytes.Buffer
	for i, arg := range args {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(arg)
	}
	return buf.String()
}
