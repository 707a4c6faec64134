package nms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tvrec/internal/device"
	"tvrec/internal/fileutil"
	"tvrec/internal/logging"
	"tvrec/internal/recorder"
	"tvrec/internal/services"
	"tvrec/internal/textutil"
)

// DefaultDeleteDelay gives recorders time to release file handles before a
// removed recording's files are deleted.
const DefaultDeleteDelay = time.Second

// Options configures the coordination layer.
type Options struct {
	RecordingsDir      string
	RecordingExtension string
	IndexExtension     string
	DeleteDelay        time.Duration
	Logger             *slog.Logger

	// Now and AfterFunc default to the time package.
	Now       func() time.Time
	AfterFunc func(time.Duration, func())
}

// NMS coordinates recorders, scheduler storage and program data.
type NMS struct {
	registry  *Registry
	scheduler Scheduler
	programs  []ProgramData
	events    EventSender
	opts      Options
	logger    *slog.Logger

	pending sync.WaitGroup
}

// New wires the coordination layer. A nil events sender drops events.
func New(registry *Registry, scheduler Scheduler, programs []ProgramData, events EventSender, opts Options) *NMS {
	if registry == nil {
		registry = NewRegistry()
	}
	if events == nil {
		events = nopSender{}
	}
	if opts.DeleteDelay < 0 {
		opts.DeleteDelay = DefaultDeleteDelay
	}
	if opts.RecordingExtension == "" {
		opts.RecordingExtension = "mpg"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
	return &NMS{
		registry:  registry,
		scheduler: scheduler,
		programs:  programs,
		events:    events,
		opts:      opts,
		logger:    logging.NewComponentLogger(opts.Logger, "nms"),
	}
}

// Registry returns the recorder registry.
func (n *NMS) Registry() *Registry { return n.registry }

// Recorders lists the registered recorders ordered by title, then device.
func (n *NMS) Recorders() []recorder.Recorder { return n.registry.Recorders() }

// RecorderByDevice looks a recorder up by device key.
func (n *NMS) RecorderByDevice(key string) (recorder.Recorder, bool) {
	return n.registry.Lookup(key)
}

// Recordings returns every recording the scheduler knows about.
func (n *NMS) Recordings(ctx context.Context) ([]Recording, error) {
	return n.scheduler.Recordings(ctx)
}

func (n *NMS) send(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = n.opts.Now()
	}
	n.events.Send(ev)
}

// resolve returns the scheduler's instance of the recording with id.
func (n *NMS) resolve(ctx context.Context, id string) (Recording, error) {
	if strings.TrimSpace(id) == "" {
		return Recording{}, services.Wrap(services.ErrValidation, "nms", "resolve recording", "recording id is empty", nil)
	}
	rec, ok, err := n.scheduler.Recording(ctx, id)
	if err != nil {
		return Recording{}, services.Wrap(services.ErrTransient, "nms", "resolve recording", id, err)
	}
	if !ok {
		return Recording{}, services.Wrap(services.ErrNotFound, "nms", "resolve recording", id, nil)
	}
	return rec, nil
}

// recorderFor finds the recorder currently capturing recording id.
func (n *NMS) recorderFor(id string) (recorder.Recorder, bool) {
	for _, rec := range n.registry.Recorders() {
		if rec.IsRecording() && rec.Session().RecordingID == id {
			return rec, true
		}
	}
	return nil, false
}

// RecordRequest asks for an immediate recording on one device.
type RecordRequest struct {
	Device          string
	Channel         device.Channel
	DurationSeconds int
	Title           string
	ShowID          string
}

// DestinationFile names the recording file for title started at start:
// <recordings_dir>/<title>_<YYYYMMDD>_<HHMM>.<ext>.
func (n *NMS) DestinationFile(title string, start time.Time) string {
	base := textutil.Underscored(title)
	if base == "" {
		base = "recording"
	}
	name := fmt.Sprintf("%s_%s.%s", base, start.Format("20060102_1504"), strings.TrimPrefix(n.opts.RecordingExtension, "."))
	return filepath.Join(n.opts.RecordingsDir, name)
}

// StartRecording records req.Channel on req.Device now. The recording is
// persisted before the pipeline starts and marked failed when it cannot start.
func (n *NMS) StartRecording(ctx context.Context, req RecordRequest) (Recording, error) {
	if req.DurationSeconds <= 0 {
		return Recording{}, services.Wrap(services.ErrValidation, "nms", "start recording", "duration must be positive", nil)
	}
	if strings.TrimSpace(req.Title) == "" {
		return Recording{}, services.Wrap(services.ErrValidation, "nms", "start recording", "title is required", nil)
	}
	rec, ok := n.registry.Lookup(req.Device)
	if !ok {
		return Recording{}, services.Wrap(services.ErrNotFound, "nms", "start recording", "no recorder for "+req.Device, nil)
	}
	if rec.IsRecording() {
		return Recording{}, services.Wrap(services.ErrBusy, "nms", "start recording", req.Device, nil)
	}
	if n.opts.RecordingsDir != "" {
		if err := os.MkdirAll(n.opts.RecordingsDir, 0o755); err != nil {
			return Recording{}, services.Wrap(services.ErrConfiguration, "nms", "start recording", "create recordings directory", err)
		}
	}

	now := n.opts.Now()
	showID := strings.TrimSpace(req.ShowID)
	if showID == "" {
		showID = req.Title
	}
	recording := Recording{
		ID:              uuid.NewString(),
		ShowID:          showID,
		Title:           req.Title,
		Device:          req.Device,
		Channel:         n.resolveChannel(req.Channel),
		StartTime:       now,
		DurationSeconds: req.DurationSeconds,
		DestinationFile: n.DestinationFile(req.Title, now),
		Status:          StatusRecording,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	saved, err := n.scheduler.AddRecording(ctx, recording)
	if err != nil {
		return Recording{}, services.Wrap(services.ErrTransient, "nms", "start recording", "persist recording", err)
	}

	err = rec.StartRecording(recorder.Request{
		RecordingID:     saved.ID,
		Channel:         saved.Channel,
		DurationSeconds: saved.DurationSeconds,
		DestinationFile: saved.DestinationFile,
	})
	if err != nil {
		if updateErr := n.scheduler.UpdateRecordingStatus(ctx, saved.ID, StatusFailed); updateErr != nil {
			n.logger.Warn("failed to mark recording failed", logging.RecordingID(saved.ID), logging.Error(updateErr))
		}
		return Recording{}, err
	}

	ctx = services.WithRecordingID(services.WithDevice(ctx, saved.Device), saved.ID)
	logging.WithContext(ctx, n.logger).Info("recording started",
		logging.String("channel", saved.Channel.Number),
		logging.Int("duration_seconds", saved.DurationSeconds),
		logging.String("destination", saved.DestinationFile),
	)
	n.send(Event{Type: EventRecordingStarted, Device: saved.Device, RecordingID: saved.ID, Title: saved.Title})
	return saved, nil
}

// resolveChannel fills in tuning data from the program data when the caller
// only named a channel number.
func (n *NMS) resolveChannel(ch device.Channel) device.Channel {
	if ch.Frequency != 0 || ch.ReferenceNumber != "" {
		return ch
	}
	for _, program := range n.programs {
		for _, listing := range program.ListingNames() {
			for _, candidate := range program.Channels(listing) {
				if candidate.Number == ch.Number {
					if ch.Name != "" {
						candidate.Name = ch.Name
					}
					return candidate
				}
			}
		}
	}
	return ch
}

// StopRecording stops the recorder currently capturing rec.
func (n *NMS) StopRecording(ctx context.Context, rec Recording) error {
	canonical, err := n.resolve(ctx, rec.ID)
	if err != nil {
		return err
	}
	target, ok := n.recorderFor(canonical.ID)
	if !ok {
		return services.Wrap(services.ErrNotFound, "nms", "stop recording", "no recorder is capturing "+canonical.ID, nil)
	}
	target.StopRecording()
	if err := n.scheduler.UpdateRecordingStatus(ctx, canonical.ID, StatusStopped); err != nil {
		n.logger.Warn("failed to mark recording stopped", logging.RecordingID(canonical.ID), logging.Error(err))
	}
	n.logger.Info("recording stopped",
		logging.RecordingID(canonical.ID),
		logging.Device(target.Device()),
	)
	n.send(Event{Type: EventRecordingStopped, Device: target.Device(), RecordingID: canonical.ID, Title: canonical.Title})
	return nil
}

// RemoveRecording deletes rec and, after the configured delay, its files.
// File deletion is best effort: failures are logged only. With
// allowRerecord the show leaves the recorded history and the scheduler is
// asked to reschedule.
func (n *NMS) RemoveRecording(ctx context.Context, rec Recording, allowRerecord bool) error {
	canonical, err := n.resolve(ctx, rec.ID)
	if err != nil {
		return err
	}
	if target, ok := n.recorderFor(canonical.ID); ok {
		n.logger.Info("stopping recording before removal", logging.RecordingID(canonical.ID))
		target.StopRecording()
	}

	protected := make(map[string]struct{})
	if others, err := n.scheduler.Recordings(ctx); err != nil {
		n.logger.Warn("could not list recordings; sibling files are not protected", logging.Error(err))
	} else {
		for _, other := range others {
			if other.ID != canonical.ID && other.DestinationFile != "" {
				protected[filepath.Clean(other.DestinationFile)] = struct{}{}
			}
		}
	}

	if err := n.scheduler.DeleteRecording(ctx, canonical.ID); err != nil {
		return services.Wrap(services.ErrTransient, "nms", "remove recording", canonical.ID, err)
	}
	if canonical.DestinationFile != "" {
		n.scheduleDelete(canonical, protected)
	}

	var errs []error
	if allowRerecord && canonical.ShowID != "" {
		if err := n.scheduler.RemoveRecordedHistory(ctx, canonical.ShowID); err != nil {
			errs = append(errs, err)
		}
		if err := n.scheduler.RequestRescheduling(ctx, "recording removed: "+canonical.Title); err != nil {
			errs = append(errs, err)
		}
	}
	n.send(Event{Type: EventRecordingRemoved, Device: canonical.Device, RecordingID: canonical.ID, Title: canonical.Title})
	if len(errs) > 0 {
		return services.Wrap(services.ErrTransient, "nms", "remove recording", "rerecord request", errors.Join(errs...))
	}
	return nil
}

func (n *NMS) scheduleDelete(rec Recording, protected map[string]struct{}) {
	n.pending.Add(1)
	n.opts.AfterFunc(n.opts.DeleteDelay, func() {
		defer n.pending.Done()
		n.deleteArtifacts(rec, protected)
	})
}

func (n *NMS) deleteArtifacts(rec Recording, protected map[string]struct{}) {
	logger := n.logger.With(logging.RecordingID(rec.ID))
	files, err := fileutil.RecordingArtifacts(rec.DestinationFile, n.opts.IndexExtension)
	if err != nil {
		logger.Warn("could not list recording artifacts", logging.Error(err))
	}
	removed := 0
	for _, file := range files {
		if isProtected(file, protected) {
			logger.Debug("keeping file of another recording", logging.String("file", file))
			continue
		}
		if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(logger, "recording artifact not deleted", "artifact_delete_failed",
				logging.String("file", file),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on the recordings directory"),
				logging.String(logging.FieldImpact, "file left on disk"),
			)
			continue
		}
		removed++
	}
	logger.Info("recording files deleted", logging.Int("files", removed))
}

func isProtected(file string, protected map[string]struct{}) bool {
	file = filepath.Clean(file)
	for other := range protected {
		if file == other || strings.HasPrefix(file, other+".") {
			return true
		}
	}
	return false
}

// Flush waits until every deferred deletion has run.
func (n *NMS) Flush() {
	n.pending.Wait()
}

// GetRecordableChannels intersects the scheduler's configured listings with
// the listings of every program data source and returns their channels,
// de-duplicated by number and sorted.
func (n *NMS) GetRecordableChannels(ctx context.Context) ([]device.Channel, error) {
	names, err := n.scheduler.ConfiguredListingNames(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "nms", "recordable channels", "listing names", err)
	}
	configured := make(map[string]struct{}, len(names))
	for _, name := range names {
		configured[name] = struct{}{}
	}
	seen := make(map[string]struct{})
	var out []device.Channel
	for _, program := range n.programs {
		for _, listing := range program.ListingNames() {
			if _, ok := configured[listing]; !ok {
				continue
			}
			for _, ch := range program.Channels(listing) {
				if _, dup := seen[ch.Number]; dup {
					continue
				}
				seen[ch.Number] = struct{}{}
				out = append(out, ch)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return CompareChannelNumbers(out[i].Number, out[j].Number) < 0
	})
	return out, nil
}

// CompareChannelNumbers orders "2.1" before "10.1" by comparing each dotted
// or dashed part numerically when both parts are numbers.
func CompareChannelNumbers(a, b string) int {
	split := func(s string) []string {
		return strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == '-' })
	}
	pa, pb := split(a), split(b)
	for i := 0; i < len(pa) && i < len(pb); i++ {
		na, errA := strconv.Atoi(pa[i])
		nb, errB := strconv.Atoi(pb[i])
		switch {
		case errA == nil && errB == nil:
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
		case pa[i] != pb[i]:
			return strings.Compare(pa[i], pb[i])
		}
	}
	switch {
	case len(pa) < len(pb):
		return -1
	case len(pa) > len(pb):
		return 1
	}
	return strings.Compare(a, b)
}

// OverrideUpcoming flips what the scheduler does with an upcoming airing. An
// airing currently marked previously recorded leaves the recorded history so
// it will be recorded; any other status adds it so it will be skipped.
func (n *NMS) OverrideUpcoming(ctx context.Context, upcoming Upcoming, status Status) error {
	showID := strings.TrimSpace(upcoming.Show.ID)
	if showID == "" {
		showID = strings.TrimSpace(upcoming.Show.Title)
	}
	if showID == "" {
		return services.Wrap(services.ErrValidation, "nms", "override upcoming", "show has no id or title", nil)
	}

	var err error
	action := "skip"
	if status == StatusPreviouslyRecorded {
		action = "record"
		err = n.scheduler.RemoveRecordedHistory(ctx, showID)
	} else {
		err = n.scheduler.AddRecordedHistory(ctx, showID)
	}
	if err != nil {
		return services.Wrap(services.ErrTransient, "nms", "override upcoming", showID, err)
	}
	if err := n.scheduler.RequestRescheduling(ctx, "override "+action+": "+showID); err != nil {
		return services.Wrap(services.ErrTransient, "nms", "override upcoming", "request rescheduling", err)
	}
	n.logger.Info("upcoming recording overridden",
		logging.String("show_id", showID),
		logging.String("status", string(status)),
		logging.String("action", action),
	)
	n.send(Event{Type: EventUpcomingOverridden, Title: upcoming.Show.Title, Message: action})
	return nil
}

// PerformScan scans the channels of one recorder, keeping only recordable
// channels when any are configured.
func (n *NMS) PerformScan(ctx context.Context, key string) ([]device.Channel, error) {
	rec, ok := n.registry.Lookup(key)
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "nms", "scan", "no recorder for "+key, nil)
	}
	if !rec.SupportsScan() {
		return nil, services.Wrap(services.ErrValidation, "nms", "scan", key+" does not support channel scans", nil)
	}
	channels, err := n.GetRecordableChannels(ctx)
	if err != nil {
		n.logger.Warn("scanning without channel filter", logging.Error(err))
		channels = nil
	}
	found, err := rec.PerformScan(ctx, channels)
	if err != nil {
		return nil, err
	}
	n.send(Event{Type: EventScanCompleted, Device: key, Message: fmt.Sprintf("%d channels", len(found))})
	return found, nil
}

// Reconcile settles recordings still marked as recording whose pipeline has
// ended. Finished captures become completed and enter the recorded history;
// captures whose recorder disappeared become failed.
func (n *NMS) Reconcile(ctx context.Context) (int, error) {
	recordings, err := n.scheduler.Recordings(ctx)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, recording := range recordings {
		if !recording.Active() {
			continue
		}
		rec, ok := n.registry.Lookup(recording.Device)
		if ok && rec.IsRecording() && rec.Session().RecordingID == recording.ID {
			continue
		}
		status := StatusCompleted
		if !ok {
			status = StatusFailed
		}
		if err := n.scheduler.UpdateRecordingStatus(ctx, recording.ID, status); err != nil {
			n.logger.Warn("failed to settle recording", logging.RecordingID(recording.ID), logging.Error(err))
			continue
		}
		if status == StatusCompleted && recording.ShowID != "" {
			if err := n.scheduler.AddRecordedHistory(ctx, recording.ShowID); err != nil {
				n.logger.Warn("failed to record history", logging.String("show_id", recording.ShowID), logging.Error(err))
			}
			n.send(Event{Type: EventRecordingCompleted, Device: recording.Device, RecordingID: recording.ID, Title: recording.Title})
		}
		settled++
	}
	return settled, nil
}

// StopAll stops every active recorder and marks its recording stopped.
func (n *NMS) StopAll(ctx context.Context) int {
	stopped := 0
	for _, rec := range n.registry.Recorders() {
		if !rec.IsRecording() {
			continue
		}
		id := rec.Session().RecordingID
		rec.StopRecording()
		stopped++
		if id == "" {
			continue
		}
		if err := n.scheduler.UpdateRecordingStatus(ctx, id, StatusStopped); err != nil && !errors.Is(err, services.ErrNotFound) {
			n.logger.Warn("failed to mark recording stopped", logging.RecordingID(id), logging.Error(err))
		}
	}
	return stopped
}
