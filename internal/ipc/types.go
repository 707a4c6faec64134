package ipc

import (
	"time"

	"tvrec/internal/device"
	"tvrec/internal/nms"
	"tvrec/internal/recorder"
)

// Recording mirrors the persisted recording for IPC callers.
type Recording = nms.Recording

// Channel mirrors a device channel for IPC callers.
type Channel = device.Channel

// StopRequest stops the daemon's background loops and active recordings.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// RecorderInfo describes one registered recorder.
type RecorderInfo struct {
	Device    string           `json:"device"`
	Title     string           `json:"title"`
	Family    string           `json:"family"`
	Recording bool             `json:"recording"`
	Session   recorder.Session `json:"session"`
}

// DependencyStatus describes availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail"`
}

// StatusResponse represents combined daemon and recorder status information.
type StatusResponse struct {
	Running         bool               `json:"running"`
	PID             int                `json:"pid"`
	Recorders       []RecorderInfo     `json:"recorders"`
	NetworkDevices  int                `json:"network_devices"`
	LocalDevices    int                `json:"local_devices"`
	LastDiscovery   time.Time          `json:"last_discovery"`
	DiscoveryErrors []string           `json:"discovery_errors"`
	HotplugActive   bool               `json:"hotplug_active"`
	Reschedules     int                `json:"reschedules"`
	Listings        []string           `json:"listings"`
	Dependencies    []DependencyStatus `json:"dependencies"`
	LockPath        string             `json:"lock_path"`
	DatabasePath    string             `json:"database_path"`
	LineupFile      string             `json:"lineup_file"`
}

// RecordersRequest lists registered recorders.
type RecordersRequest struct{}

// RecordersResponse contains the registry in title order.
type RecordersResponse struct {
	Recorders []RecorderInfo `json:"recorders"`
}

// RecordingsRequest filters recordings by status. Empty means all.
type RecordingsRequest struct {
	Statuses []string `json:"statuses"`
}

// RecordingsResponse contains persisted recordings.
type RecordingsResponse struct {
	Recordings []Recording `json:"recordings"`
}

// RecordRequest starts an immediate recording.
type RecordRequest struct {
	Device          string `json:"device"`
	Channel         string `json:"channel"`
	DurationSeconds int    `json:"duration_seconds"`
	Title           string `json:"title"`
	ShowID          string `json:"show_id"`
}

// RecordResponse returns the recording that was started.
type RecordResponse struct {
	Recording Recording `json:"recording"`
}

// StopRecordingRequest stops a running recording.
type StopRecordingRequest struct {
	ID string `json:"id"`
}

// StopRecordingResponse indicates stop result.
type StopRecordingResponse struct {
	Stopped bool `json:"stopped"`
}

// RemoveRecordingRequest deletes a recording and its files.
type RemoveRecordingRequest struct {
	ID            string `json:"id"`
	AllowRerecord bool   `json:"allow_rerecord"`
}

// RemoveRecordingResponse indicates removal result.
type RemoveRecordingResponse struct {
	Removed bool `json:"removed"`
}

// OverrideRequest flips what the scheduler does with an upcoming airing.
// Status is the airing's current status.
type OverrideRequest struct {
	ShowID  string `json:"show_id"`
	Title   string `json:"title"`
	Channel string `json:"channel"`
	Status  string `json:"status"`
}

// OverrideResponse indicates override result.
type OverrideResponse struct {
	Overridden bool `json:"overridden"`
}

// DiscoverRequest runs a discovery pass immediately.
type DiscoverRequest struct{}

// DiscoverResponse summarizes the pass.
type DiscoverResponse struct {
	Network    int      `json:"network"`
	Local      int      `json:"local"`
	Registered []string `json:"registered"`
	Skipped    []string `json:"skipped"`
	Errors     []string `json:"errors"`
}

// ScanRequest scans the channels of one recorder.
type ScanRequest struct {
	Device string `json:"device"`
}

// ScanResponse contains the channels found.
type ScanResponse struct {
	Channels []Channel `json:"channels"`
}

// ChannelsRequest lists recordable channels.
type ChannelsRequest struct{}

// ChannelsResponse contains recordable channels in channel-number order.
type ChannelsResponse struct {
	Channels []Channel `json:"channels"`
}

// RecordingRule mirrors a scheduler rule for IPC callers.
type RecordingRule = nms.RecordingRule

// ListingsRequest lists program data listings.
type ListingsRequest struct{}

// ListingInfo describes one listing of the loaded program data.
type ListingInfo struct {
	Name       string `json:"name"`
	Channels   int    `json:"channels"`
	Configured bool   `json:"configured"`
}

// ListingsResponse contains the listings in lineup order.
type ListingsResponse struct {
	Listings []ListingInfo `json:"listings"`
}

// SetListingRequest adds or removes a listing from the scheduler's set.
type SetListingRequest struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
}

// SetListingResponse indicates the update result.
type SetListingResponse struct {
	Updated bool `json:"updated"`
}

// RulesRequest lists recording rules.
type RulesRequest struct{}

// RulesResponse contains the recording rules.
type RulesResponse struct {
	Rules []RecordingRule `json:"rules"`
}

// AddRuleRequest creates a recording rule.
type AddRuleRequest struct {
	Rule RecordingRule `json:"rule"`
}

// AddRuleResponse returns the stored rule.
type AddRuleResponse struct {
	Rule RecordingRule `json:"rule"`
}

// DeleteRuleRequest removes a recording rule.
type DeleteRuleRequest struct {
	ID int64 `json:"id"`
}

// DeleteRuleResponse indicates removal result.
type DeleteRuleResponse struct {
	Deleted bool `json:"deleted"`
}
