package nms

import (
	"context"
	"strings"
	"time"

	"tvrec/internal/device"
)

// Status represents the lifecycle of a recording.
type Status string

const (
	StatusScheduled          Status = "scheduled"
	StatusRecording          Status = "recording"
	StatusCompleted          Status = "completed"
	StatusStopped            Status = "stopped"
	StatusFailed             Status = "failed"
	StatusPreviouslyRecorded Status = "previously_recorded"
	StatusWillRecord         Status = "will_record"
	StatusWillNotRecord      Status = "will_not_record"
)

var allStatuses = []Status{
	StatusScheduled,
	StatusRecording,
	StatusCompleted,
	StatusStopped,
	StatusFailed,
	StatusPreviouslyRecorded,
	StatusWillRecord,
	StatusWillNotRecord,
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// Recording is one capture persisted by the scheduler.
type Recording struct {
	ID              string         `json:"id"`
	ShowID          string         `json:"show_id"`
	Title           string         `json:"title"`
	Device          string         `json:"device"`
	Channel         device.Channel `json:"channel"`
	StartTime       time.Time      `json:"start_time"`
	DurationSeconds int            `json:"duration_seconds"`
	DestinationFile string         `json:"destination_file"`
	Status          Status         `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Active reports whether the recording may still have a pipeline running.
func (r Recording) Active() bool {
	return r.Status == StatusRecording
}

// RecordingRule asks the scheduler to record a show.
type RecordingRule struct {
	ID      int64  `json:"id"`
	ShowID  string `json:"show_id"`
	Title   string `json:"title"`
	Listing string `json:"listing"`
	Channel string `json:"channel,omitempty"`
}

// Show is a program in a listing.
type Show struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Episode string `json:"episode,omitempty"`
}

// Upcoming is a scheduled airing the scheduler would (or would not) record.
type Upcoming struct {
	Show            Show           `json:"show"`
	Channel         device.Channel `json:"channel"`
	StartTime       time.Time      `json:"start_time"`
	DurationSeconds int            `json:"duration_seconds"`
	Status          Status         `json:"status"`
}

// Scheduler is the recording-rule storage and rescheduling trigger.
type Scheduler interface {
	Recordings(ctx context.Context) ([]Recording, error)
	Recording(ctx context.Context, id string) (Recording, bool, error)
	AddRecording(ctx context.Context, rec Recording) (Recording, error)
	UpdateRecordingStatus(ctx context.Context, id string, status Status) error
	DeleteRecording(ctx context.Context, id string) error

	RecordingRules(ctx context.Context) ([]RecordingRule, error)
	ConfiguredListingNames(ctx context.Context) ([]string, error)

	AddRecordedHistory(ctx context.Context, showID string) error
	RemoveRecordedHistory(ctx context.Context, showID string) error
	RecordedHistory(ctx context.Context, showID string) (bool, error)

	RequestRescheduling(ctx context.Context, reason string) error
}

// ProgramData is a source of listings, their channels and shows.
type ProgramData interface {
	Name() string
	ListingNames() []string
	Channels(listing string) []device.Channel
	Show(id string) (Show, bool)
}

// EventType names a state change reported to the EventSender.
type EventType string

const (
	EventRecordingStarted   EventType = "recording_started"
	EventRecordingStopped   EventType = "recording_stopped"
	EventRecordingCompleted EventType = "recording_completed"
	EventRecordingRemoved   EventType = "recording_removed"
	EventUpcomingOverridden EventType = "upcoming_overridden"
	EventScanCompleted      EventType = "scan_completed"
	EventRecordersChanged   EventType = "recorders_changed"
)

// Event describes a state change.
type Event struct {
	Type        EventType `json:"type"`
	Device      string    `json:"device,omitempty"`
	RecordingID string    `json:"recording_id,omitempty"`
	Title       string    `json:"title,omitempty"`
	Message     string    `json:"message,omitempty"`
	Time        time.Time `json:"time"`
}

// EventSender is notified of state changes. Send must not block.
type EventSender interface {
	Send(Event)
}

type nopSender struct{}

func (nopSender) Send(Event) {}
