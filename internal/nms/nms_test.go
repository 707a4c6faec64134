package nms

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"tvrec/internal/device"
	"tvrec/internal/services"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func exists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

func newTestNMS(t *testing.T, sched *memScheduler, programs ...ProgramData) (*NMS, *eventLog, string) {
	t.Helper()
	dir := t.TempDir()
	events := &eventLog{}
	n := New(NewRegistry(), sched, programs, events, Options{
		RecordingsDir:  dir,
		IndexExtension: "idx",
		Now:            func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) },
	})
	return n, events, dir
}

func TestRegistryOrderAndIdempotency(t *testing.T) {
	reg := NewRegistry()
	b := &fakeRecorder{title: "WinTV", key: "/dev/video0"}
	a1 := &fakeRecorder{title: "HDHomeRun3_ATSC", key: "1020FA3C-1"}
	a0 := &fakeRecorder{title: "HDHomeRun3_ATSC", key: "1020FA3C-0"}
	for _, rec := range []*fakeRecorder{b, a1, a0} {
		if !reg.Add(rec) {
			t.Fatalf("add %s failed", rec.key)
		}
	}
	if reg.Add(&fakeRecorder{title: "Other", key: "1020FA3C-0"}) {
		t.Fatal("duplicate device key must not be added")
	}
	var keys []string
	for _, rec := range reg.Recorders() {
		keys = append(keys, rec.Device())
	}
	want := []string{"1020FA3C-0", "1020FA3C-1", "/dev/video0"}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("order = %v, want %v", keys, want)
	}
	if rec, ok := reg.Lookup("/dev/video0"); !ok || rec != b {
		t.Fatal("lookup by device failed")
	}
	if _, ok := reg.Remove("1020FA3C-1"); !ok || reg.Len() != 2 {
		t.Fatal("remove failed")
	}
}

func TestStartRecordingBuildsDestination(t *testing.T) {
	sched := newMemScheduler()
	n, events, dir := newTestNMS(t, sched)
	rec := &fakeRecorder{title: "HDHomeRun", key: "1020FA3C-0"}
	n.Registry().Add(rec)

	got, err := n.StartRecording(context.Background(), RecordRequest{
		Device:          "1020FA3C-0",
		Channel:         device.Channel{Number: "5.1", Frequency: 21},
		DurationSeconds: 1800,
		Title:           "Evening News",
	})
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	want := filepath.Join(dir, "Evening_News_20240101_1200.mpg")
	if got.DestinationFile != want {
		t.Fatalf("destination = %q, want %q", got.DestinationFile, want)
	}
	if len(rec.starts) != 1 || rec.starts[0].RecordingID != got.ID {
		t.Fatalf("recorder not started with recording id: %+v", rec.starts)
	}
	if _, ok, _ := sched.Recording(context.Background(), got.ID); !ok {
		t.Fatal("recording not persisted")
	}
	if !reflect.DeepEqual(events.types(), []EventType{EventRecordingStarted}) {
		t.Fatalf("unexpected events %v", events.types())
	}

	_, err = n.StartRecording(context.Background(), RecordRequest{Device: "1020FA3C-0", Channel: device.Channel{Number: "7.1"}, DurationSeconds: 60, Title: "Other"})
	if !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	_, err = n.StartRecording(context.Background(), RecordRequest{Device: "missing", DurationSeconds: 60, Title: "x"})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStartRecordingResolvesChannelFromProgramData(t *testing.T) {
	program := staticProgram{name: "yaml", channels: map[string][]device.Channel{
		"local": {{Number: "5.1", Name: "KXYZ", Frequency: 21, ReferenceNumber: "5.1"}},
	}}
	n, _, _ := newTestNMS(t, newMemScheduler("local"), program)
	rec := &fakeRecorder{title: "HDHomeRun", key: "1020FA3C-0"}
	n.Registry().Add(rec)
	got, err := n.StartRecording(context.Background(), RecordRequest{Device: rec.key, Channel: device.Channel{Number: "5.1"}, DurationSeconds: 60, Title: "News"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Channel.Frequency != 21 || got.Channel.Name != "KXYZ" {
		t.Fatalf("channel not resolved: %+v", got.Channel)
	}
}

func TestStopRecordingFindsActiveRecorder(t *testing.T) {
	sched := newMemScheduler()
	n, _, _ := newTestNMS(t, sched)
	idle := &fakeRecorder{title: "A", key: "a"}
	busy := &fakeRecorder{title: "B", key: "b"}
	n.Registry().Add(idle)
	n.Registry().Add(busy)
	recording, err := n.StartRecording(context.Background(), RecordRequest{Device: "b", Channel: device.Channel{Number: "2.1", Frequency: 9}, DurationSeconds: 60, Title: "Show"})
	if err != nil {
		t.Fatal(err)
	}

	if err := n.StopRecording(context.Background(), Recording{ID: recording.ID}); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if busy.stops != 1 || idle.stops != 0 {
		t.Fatalf("wrong recorder stopped: busy=%d idle=%d", busy.stops, idle.stops)
	}
	stored, _, _ := sched.Recording(context.Background(), recording.ID)
	if stored.Status != StatusStopped {
		t.Fatalf("status = %s", stored.Status)
	}
	if err := n.StopRecording(context.Background(), Recording{ID: recording.ID}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("second stop should report not found, got %v", err)
	}
}

func TestRemoveRecordingDeletesArtifacts(t *testing.T) {
	sched := newMemScheduler()
	n, events, dir := newTestNMS(t, sched)
	var delays []time.Duration
	n.opts.DeleteDelay = 1500 * time.Millisecond
	n.opts.AfterFunc = func(d time.Duration, fn func()) {
		delays = append(delays, d)
		fn()
	}

	dest := filepath.Join(dir, "show_20240101_1200.mpg")
	touch(t, dir,
		"show_20240101_1200.mpg",
		"show_20240101_1200.mpg.png",
		"show_20240101_1200.mpg.idx",
		"show_20240101_1200.log",
		"show_2024010.mpg",
		"show_20240101.mpg",
		"other_20240101_1200.mpg",
	)
	sched.AddRecording(context.Background(), Recording{ID: "r1", ShowID: "show", Title: "show", DestinationFile: dest, Status: StatusCompleted})
	sched.AddRecordedHistory(context.Background(), "show")

	if err := n.RemoveRecording(context.Background(), Recording{ID: "r1"}, true); err != nil {
		t.Fatalf("RemoveRecording: %v", err)
	}
	n.Flush()

	for _, gone := range []string{"show_20240101_1200.mpg", "show_20240101_1200.mpg.png", "show_20240101_1200.mpg.idx", "show_20240101_1200.log"} {
		if exists(dir, gone) {
			t.Errorf("%s should be deleted", gone)
		}
	}
	for _, kept := range []string{"show_2024010.mpg", "show_20240101.mpg", "other_20240101_1200.mpg"} {
		if !exists(dir, kept) {
			t.Errorf("%s should be kept", kept)
		}
	}
	if len(delays) != 1 || delays[0] != 1500*time.Millisecond {
		t.Fatalf("deletion should be deferred by the configured delay, got %v", delays)
	}
	if ok, _ := sched.RecordedHistory(context.Background(), "show"); ok {
		t.Fatal("history should be cleared when rerecording is allowed")
	}
	if len(sched.reschedules) != 1 {
		t.Fatalf("expected one rescheduling request, got %v", sched.reschedules)
	}
	if got := events.types(); len(got) != 1 || got[0] != EventRecordingRemoved {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestRemoveRecordingKeepsOtherRecordingsSharingPrefix(t *testing.T) {
	sched := newMemScheduler()
	n, _, dir := newTestNMS(t, sched)
	touch(t, dir, "news_20240101_1200.mpg", "news_20240101_1800.mpg", "news_20240101_1800.mpg.idx")
	sched.AddRecording(context.Background(), Recording{ID: "noon", ShowID: "news", DestinationFile: filepath.Join(dir, "news_20240101_1200.mpg")})
	sched.AddRecording(context.Background(), Recording{ID: "evening", ShowID: "news", DestinationFile: filepath.Join(dir, "news_20240101_1800.mpg")})
	sched.AddRecordedHistory(context.Background(), "news")

	if err := n.RemoveRecording(context.Background(), Recording{ID: "noon"}, false); err != nil {
		t.Fatal(err)
	}
	n.Flush()
	if exists(dir, "news_20240101_1200.mpg") {
		t.Fatal("removed recording still on disk")
	}
	if !exists(dir, "news_20240101_1800.mpg") || !exists(dir, "news_20240101_1800.mpg.idx") {
		t.Fatal("another recording's files were deleted")
	}
	if ok, _ := sched.RecordedHistory(context.Background(), "news"); !ok {
		t.Fatal("history must stay without rerecord")
	}
	if len(sched.reschedules) != 0 {
		t.Fatal("no rescheduling without rerecord")
	}
}

func TestRemoveRecordingUnknownID(t *testing.T) {
	n, _, _ := newTestNMS(t, newMemScheduler())
	if err := n.RemoveRecording(context.Background(), Recording{ID: "nope"}, false); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetRecordableChannels(t *testing.T) {
	first := staticProgram{name: "a", channels: map[string][]device.Channel{
		"antenna": {{Number: "10.1"}, {Number: "2.1"}, {Number: "5.1"}},
		"cable":   {{Number: "99"}},
	}}
	second := staticProgram{name: "b", channels: map[string][]device.Channel{
		"antenna": {{Number: "5.1"}, {Number: "2.2"}},
	}}
	n, _, _ := newTestNMS(t, newMemScheduler("antenna"), first, second)
	channels, err := n.GetRecordableChannels(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var numbers []string
	for _, ch := range channels {
		numbers = append(numbers, ch.Number)
	}
	want := []string{"2.1", "2.2", "5.1", "10.1"}
	if !reflect.DeepEqual(numbers, want) {
		t.Fatalf("channels = %v, want %v", numbers, want)
	}
}

func TestOverrideUpcoming(t *testing.T) {
	sched := newMemScheduler()
	n, _, _ := newTestNMS(t, sched)
	ctx := context.Background()
	up := Upcoming{Show: Show{ID: "ep-42", Title: "Show"}}

	if err := n.OverrideUpcoming(ctx, up, StatusWillRecord); err != nil {
		t.Fatal(err)
	}
	if ok, _ := sched.RecordedHistory(ctx, "ep-42"); !ok {
		t.Fatal("override of a will-record airing should add it to history")
	}
	if err := n.OverrideUpcoming(ctx, up, StatusPreviouslyRecorded); err != nil {
		t.Fatal(err)
	}
	if ok, _ := sched.RecordedHistory(ctx, "ep-42"); ok {
		t.Fatal("override of a previously recorded airing should clear history")
	}
	if len(sched.reschedules) != 2 {
		t.Fatalf("each override requests rescheduling, got %v", sched.reschedules)
	}
	if err := n.OverrideUpcoming(ctx, Upcoming{}, StatusWillRecord); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReconcileSettlesFinishedRecordings(t *testing.T) {
	sched := newMemScheduler()
	n, events, _ := newTestNMS(t, sched)
	rec := &fakeRecorder{title: "A", key: "a"}
	n.Registry().Add(rec)
	ctx := context.Background()
	recording, err := n.StartRecording(ctx, RecordRequest{Device: "a", Channel: device.Channel{Number: "4.1", Frequency: 3}, DurationSeconds: 60, Title: "Match"})
	if err != nil {
		t.Fatal(err)
	}
	sched.AddRecording(ctx, Recording{ID: "orphan", Device: "gone", Status: StatusRecording})

	if settled, _ := n.Reconcile(ctx); settled != 1 {
		t.Fatalf("only the orphan should settle while capturing, got %d", settled)
	}
	rec.finish()
	if settled, _ := n.Reconcile(ctx); settled != 1 {
		t.Fatalf("finished recording should settle, got %d", settled)
	}
	stored, _, _ := sched.Recording(ctx, recording.ID)
	orphan, _, _ := sched.Recording(ctx, "orphan")
	if stored.Status != StatusCompleted || orphan.Status != StatusFailed {
		t.Fatalf("statuses = %s, %s", stored.Status, orphan.Status)
	}
	if ok, _ := sched.RecordedHistory(ctx, "Match"); !ok {
		t.Fatal("completed show should enter history")
	}
	if got := events.types(); got[len(got)-1] != EventRecordingCompleted {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestPerformScanRequiresSupport(t *testing.T) {
	n, _, _ := newTestNMS(t, newMemScheduler())
	n.Registry().Add(&fakeRecorder{title: "Card", key: "/dev/video0"})
	if _, err := n.PerformScan(context.Background(), "/dev/video0"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	n.Registry().Add(&fakeRecorder{title: "Box", key: "1020FA3C-0", scan: true})
	if _, err := n.PerformScan(context.Background(), "1020FA3C-0"); err != nil {
		t.Fatal(err)
	}
}

func TestCompareChannelNumbers(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"2.1", "10.1", -1},
		{"5.2", "5.10", -1},
		{"7", "7.1", -1},
		{"12", "12", 0},
		{"A", "B", -1},
	}
	for _, tc := range cases {
		if got := CompareChannelNumbers(tc.a, tc.b); got != tc.want {
			t.Errorf("CompareChannelNumbers(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
