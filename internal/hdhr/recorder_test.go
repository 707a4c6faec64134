package hdhr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tvrec/internal/capture"
	"tvrec/internal/device"
	"tvrec/internal/job"
	"tvrec/internal/recorder"
	"tvrec/internal/services"
)

// stubHelper writes an hdhomerun_config stand-in that appends its arguments to
// a log file. save blocks like the real helper does while streaming.
func stubHelper(t *testing.T) (CLI, string) {
	t.Helper()
	return writeStubHelper(t, "exec sleep 30")
}

func writeStubHelper(t *testing.T, save string) (CLI, string) {
	t.Helper()
	dir := t.TempDir()
	logPath := filepath.Join(dir, "calls.log")
	script := `#!/bin/sh
echo "$@" >> "` + logPath + `"
if [ "$1" = "discover" ]; then
  echo "hdhomerun device 1020FA3C found at 192.168.1.50"
  exit 0
fi
case "$2" in
  get) echo "hdhomerun3_atsc" ;;
  save) ` + save + ` ;;
  scan)
    cat > "$4" <<'SCAN'
SCANNING: 521000000 (us-bcast:21)
LOCK: 8vsb (ss=100 snq=83 seq=100)
PROGRAM 3: 5.1 WABC-HD
PROGRAM 4: 5.2 LiveWel
SCAN
    ;;
esac
exit 0
`
	path := filepath.Join(dir, "hdhomerun_config")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return CLI{Binary: path}, logPath
}

func readCalls(t *testing.T, logPath string) []string {
	t.Helper()
	data, err := os.ReadFile(logPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		t.Fatalf("read calls: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func waitForCall(t *testing.T, logPath, prefix string, limit time.Duration) {
	t.Helper()
	deadline := time.Now().Add(limit)
	for time.Now().Before(deadline) {
		for _, call := range readCalls(t, logPath) {
			if strings.HasPrefix(call, prefix) {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no call starting with %q within %s", prefix, limit)
}

func waitIdle(t *testing.T, r *Recorder, limit time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), limit)
	defer cancel()
	if err := r.Wait(ctx); err != nil {
		t.Fatalf("pipeline did not finish: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for r.IsRecording() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if r.IsRecording() {
		t.Fatal("recorder still marked recording")
	}
}

func testOptions(cli CLI, dir string, unit time.Duration) Options {
	return Options{
		CLI:     cli,
		Capture: capture.Options{Grace: 500 * time.Millisecond},
		Timing:  job.Timing{Unit: unit, Coarse: 50 * time.Millisecond, Fine: 10 * time.Millisecond, FineWindow: 200 * time.Millisecond},
		ScanDir: dir,
	}
}

func TestDiscoverFindsTwoTunerDevice(t *testing.T) {
	cli, logPath := stubHelper(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	devices, err := Discover(ctx, cli, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 1 {
		t.Fatalf("expected one device, got %+v", devices)
	}
	d := devices[0]
	if d.ID != "1020FA3C" || d.IPAddress != "192.168.1.50" || d.Model != "hdhomerun3_atsc" {
		t.Fatalf("unexpected descriptor %+v", d)
	}
	if d.Key(0) != "1020FA3C-0" || d.Key(1) != "1020FA3C-1" {
		t.Fatalf("unexpected keys %s %s", d.Key(0), d.Key(1))
	}
	calls := readCalls(t, logPath)
	if len(calls) != 2 || calls[0] != "discover" || calls[1] != "1020FA3C get /sys/hwmodel" {
		t.Fatalf("unexpected calls %v", calls)
	}
}

func TestRecordingRunsStagesInOrder(t *testing.T) {
	cli, logPath := stubHelper(t)
	dir := t.TempDir()
	desc := device.NetworkDescriptor{ID: "1020FA3C", IPAddress: "192.168.1.50", Model: "hdhomerun3_atsc"}
	r := NewRecorder(desc, 0, nil, testOptions(cli, dir, 20*time.Millisecond))
	dest := filepath.Join(dir, "show_20240101_1200.mpg")

	start := time.Now()
	err := r.StartRecording(requestFor(device.Channel{Number: "5.1", Frequency: 21}, 10, dest))
	if err != nil {
		t.Fatal(err)
	}
	if !r.IsRecording() {
		t.Fatal("expected recording flag while the pipeline runs")
	}
	waitIdle(t, r, 5*time.Second)
	elapsed := time.Since(start)

	want := []string{
		"1020FA3C set /tuner0/channel auto:21",
		"1020FA3C set /tuner0/program 5.1",
		"1020FA3C save /tuner0 " + dest,
		"1020FA3C set /tuner0/channel none",
	}
	calls := readCalls(t, logPath)
	if strings.Join(calls, "\n") != strings.Join(want, "\n") {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	// 7 units of 20ms.
	if elapsed < 140*time.Millisecond {
		t.Fatalf("capture stopped early after %s", elapsed)
	}
}

func TestStopRecordingDetunesAndClearsFlag(t *testing.T) {
	cli, logPath := stubHelper(t)
	dir := t.TempDir()
	desc := device.NetworkDescriptor{ID: "1020FA3C", IPAddress: "192.168.1.50"}
	r := NewRecorder(desc, 1, nil, testOptions(cli, dir, time.Second))

	if err := r.StartRecording(requestFor(device.Channel{Number: "5.1", Frequency: 21}, 10, filepath.Join(dir, "a.mpg"))); err != nil {
		t.Fatal(err)
	}
	waitForCall(t, logPath, "1020FA3C save", 3*time.Second)

	stopAt := time.Now()
	r.StopRecording()
	if r.IsRecording() {
		t.Fatal("StopRecording must clear the flag at once")
	}
	waitIdle(t, r, 5*time.Second)
	if time.Since(stopAt) > 3*time.Second {
		t.Fatalf("stop took %s", time.Since(stopAt))
	}
	calls := readCalls(t, logPath)
	if last := calls[len(calls)-1]; last != "1020FA3C set /tuner1/channel none" {
		t.Fatalf("expected detune last, got %v", calls)
	}
}

func TestStartWhileRecordingIsBusy(t *testing.T) {
	cli, logPath := stubHelper(t)
	dir := t.TempDir()
	r := NewRecorder(device.NetworkDescriptor{ID: "1020FA3C"}, 0, nil, testOptions(cli, dir, time.Second))
	if err := r.StartRecording(requestFor(device.Channel{Number: "5.1", Frequency: 21}, 10, filepath.Join(dir, "a.mpg"))); err != nil {
		t.Fatal(err)
	}
	defer func() {
		r.StopRecording()
		waitIdle(t, r, 5*time.Second)
	}()
	waitForCall(t, logPath, "1020FA3C save", 3*time.Second)

	err := r.StartRecording(requestFor(device.Channel{Number: "7.1", Frequency: 22}, 10, filepath.Join(dir, "b.mpg")))
	if !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if r.Session().Channel.Number != "5.1" {
		t.Fatal("busy start must not replace the running session")
	}
}

func TestRestartAfterStopWaitsForDetune(t *testing.T) {
	cli, logPath := writeStubHelper(t, "trap '' TERM; exec sleep 30")
	dir := t.TempDir()
	r := NewRecorder(device.NetworkDescriptor{ID: "1020FA3C"}, 0, nil, testOptions(cli, dir, time.Second))
	if err := r.StartRecording(requestFor(device.Channel{Number: "5.1", Frequency: 21}, 10, filepath.Join(dir, "a.mpg"))); err != nil {
		t.Fatal(err)
	}
	waitForCall(t, logPath, "1020FA3C save", 3*time.Second)

	r.StopRecording()
	if err := r.StartRecording(requestFor(device.Channel{Number: "7.1", Frequency: 22}, 10, filepath.Join(dir, "b.mpg"))); err != nil {
		t.Fatalf("restart after stop: %v", err)
	}
	waitForCall(t, logPath, "1020FA3C set /tuner0/channel auto:22", 3*time.Second)
	r.StopRecording()
	waitIdle(t, r, 5*time.Second)

	calls := readCalls(t, logPath)
	detune, retune := -1, -1
	for i, call := range calls {
		if call == "1020FA3C set /tuner0/channel none" && detune < 0 {
			detune = i
		}
		if call == "1020FA3C set /tuner0/channel auto:22" {
			retune = i
		}
	}
	if detune < 0 || retune < detune {
		t.Fatalf("second tune must follow the first detune, calls = %v", calls)
	}
}

func TestQuickTuneBusyWhileRecording(t *testing.T) {
	cli, logPath := stubHelper(t)
	dir := t.TempDir()
	r := NewRecorder(device.NetworkDescriptor{ID: "1020FA3C"}, 0, nil, testOptions(cli, dir, time.Second))
	if err := r.StartRecording(requestFor(device.Channel{Number: "5.1", Frequency: 21}, 10, filepath.Join(dir, "a.mpg"))); err != nil {
		t.Fatal(err)
	}
	defer func() {
		r.StopRecording()
		waitIdle(t, r, 5*time.Second)
	}()
	waitForCall(t, logPath, "1020FA3C save", 3*time.Second)

	err := r.QuickTune(context.Background(), device.Channel{Number: "7.1", Frequency: 22})
	if !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if r.Session().Channel.Number != "5.1" {
		t.Fatal("quick tune must not replace the running session")
	}
}

func TestPerformScanPersistsMap(t *testing.T) {
	cli, _ := stubHelper(t)
	dir := t.TempDir()
	r := NewRecorder(device.NetworkDescriptor{ID: "1020FA3C"}, 0, nil, testOptions(cli, dir, time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	channels, err := r.PerformScan(ctx, []device.Channel{{Number: "5.1", ReferenceNumber: "5.1"}, {Number: "5.2", ReferenceNumber: "5.2"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(channels) != 2 || channels[0].Frequency != 21 {
		t.Fatalf("unexpected channels %+v", channels)
	}
	data, err := os.ReadFile(filepath.Join(dir, "1020FA3C-0-scan.conf"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "5.1=5.1:21\n5.2=5.2:21\n" {
		t.Fatalf("unexpected scan file %q", data)
	}
	waitIdle(t, r, 2*time.Second)
}

func TestQuickTuneResolvesFrequencyFromScanMap(t *testing.T) {
	cli, logPath := stubHelper(t)
	dir := t.TempDir()
	if _, err := SaveScanMap(dir, "1020FA3C-0", ScanMap{"5.1": {Number: "5.1", Reference: "5.1", Frequency: 21}}); err != nil {
		t.Fatal(err)
	}
	r := NewRecorder(device.NetworkDescriptor{ID: "1020FA3C"}, 0, nil, testOptions(cli, dir, time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.QuickTune(ctx, device.Channel{Number: "5.1"}); err != nil {
		t.Fatal(err)
	}
	calls := readCalls(t, logPath)
	want := []string{"1020FA3C set /tuner0/channel auto:21", "1020FA3C set /tuner0/program 5.1"}
	if strings.Join(calls, "\n") != strings.Join(want, "\n") {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
}

func TestStreamingTargetsAndClears(t *testing.T) {
	cli, logPath := stubHelper(t)
	dir := t.TempDir()
	r := NewRecorder(device.NetworkDescriptor{ID: "1020FA3C"}, 0, nil, testOptions(cli, dir, time.Second))
	if err := r.StartStreaming(device.Channel{Number: "5.1", Frequency: 21}, "10.0.0.9", 5000); err != nil {
		t.Fatal(err)
	}
	waitForCall(t, logPath, "1020FA3C set /tuner0/target udp://10.0.0.9:5000", 3*time.Second)
	if s := r.Session(); !s.Streaming || s.StreamTarget != "udp://10.0.0.9:5000" {
		t.Fatalf("unexpected session %+v", s)
	}
	r.StopStreaming()
	waitIdle(t, r, 5*time.Second)
	calls := readCalls(t, logPath)
	tail := calls[len(calls)-2:]
	if tail[0] != "1020FA3C set /tuner0/target none" || tail[1] != "1020FA3C set /tuner0/channel none" {
		t.Fatalf("unexpected reset calls %v", calls)
	}
}

func TestDefaultConfiguration(t *testing.T) {
	cfg := DefaultConfiguration(device.NetworkDescriptor{ID: "1020FA3C", Model: "hdhomerun3_atsc"}, 1, device.ReadUDP)
	if cfg.Source != "HDHomeRun3_ATSC-1020FA3C-1" {
		t.Fatalf("unexpected source %q", cfg.Source)
	}
	if cfg.ReadMode() != device.ReadUDP {
		t.Fatalf("unexpected read mode %q", cfg.ReadMode())
	}
}

func requestFor(ch device.Channel, seconds int, dest string) recorder.Request {
	return recorder.Request{RecordingID: "rec-1", Channel: ch, DurationSeconds: seconds, DestinationFile: dest}
}
