package nms

import (
	"context"
	"sort"
	"sync"

	"tvrec/internal/device"
	"tvrec/internal/recorder"
	"tvrec/internal/services"
)

type memScheduler struct {
	mu          sync.Mutex
	recordings  map[string]Recording
	history     map[string]bool
	listings    []string
	reschedules []string
}

func newMemScheduler(listings ...string) *memScheduler {
	return &memScheduler{
		recordings: make(map[string]Recording),
		history:    make(map[string]bool),
		listings:   listings,
	}
}

func (s *memScheduler) Recordings(context.Context) ([]Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Recording, 0, len(s.recordings))
	for _, rec := range s.recordings {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memScheduler) Recording(_ context.Context, id string) (Recording, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recordings[id]
	return rec, ok, nil
}

func (s *memScheduler) AddRecording(_ context.Context, rec Recording) (Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordings[rec.ID] = rec
	return rec, nil
}

func (s *memScheduler) UpdateRecordingStatus(_ context.Context, id string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recordings[id]
	if !ok {
		return services.ErrNotFound
	}
	rec.Status = status
	s.recordings[id] = rec
	return nil
}

func (s *memScheduler) DeleteRecording(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recordings, id)
	return nil
}

func (s *memScheduler) RecordingRules(context.Context) ([]RecordingRule, error) { return nil, nil }

func (s *memScheduler) ConfiguredListingNames(context.Context) ([]string, error) {
	return s.listings, nil
}

func (s *memScheduler) AddRecordedHistory(_ context.Context, showID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[showID] = true
	return nil
}

func (s *memScheduler) RemoveRecordedHistory(_ context.Context, showID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.history, showID)
	return nil
}

func (s *memScheduler) RecordedHistory(_ context.Context, showID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history[showID], nil
}

func (s *memScheduler) RequestRescheduling(_ context.Context, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reschedules = append(s.reschedules, reason)
	return nil
}

type staticProgram struct {
	name     string
	channels map[string][]device.Channel
}

func (p staticProgram) Name() string { return p.name }

func (p staticProgram) ListingNames() []string {
	names := make([]string, 0, len(p.channels))
	for name := range p.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p staticProgram) Channels(listing string) []device.Channel { return p.channels[listing] }

func (p staticProgram) Show(string) (Show, bool) { return Show{}, false }

type fakeRecorder struct {
	title  string
	key    string
	scan   bool
	mu     sync.Mutex
	sess   recorder.Session
	starts []recorder.Request
	stops  int
}

func (f *fakeRecorder) Title() string                                   { return f.title }
func (f *fakeRecorder) Device() string                                  { return f.key }
func (f *fakeRecorder) Family() device.Family                           { return device.FamilyHDHomeRun }
func (f *fakeRecorder) Configuration() *recorder.Configuration          { return nil }
func (f *fakeRecorder) SupportsScan() bool                              { return f.scan }
func (f *fakeRecorder) QuickTune(context.Context, device.Channel) error { return nil }

func (f *fakeRecorder) StartRecording(req recorder.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sess.Recording {
		return services.Wrap(services.ErrBusy, "fake", "start", f.key, nil)
	}
	f.starts = append(f.starts, req)
	f.sess = recorder.Session{RecordingID: req.RecordingID, Channel: req.Channel, DestinationFile: req.DestinationFile, Recording: true}
	return nil
}

func (f *fakeRecorder) StopRecording() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.sess.Recording = false
}

func (f *fakeRecorder) finish() { f.StopRecording() }

func (f *fakeRecorder) StartStreaming(device.Channel, string, int) error { return nil }
func (f *fakeRecorder) StopStreaming()                                   {}

func (f *fakeRecorder) IsRecording() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sess.Recording || f.sess.Streaming
}

func (f *fakeRecorder) Session() recorder.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sess
}

func (f *fakeRecorder) PerformScan(_ context.Context, channels []device.Channel) ([]device.Channel, error) {
	return channels, nil
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Send(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventType, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Type)
	}
	return out
}
