// Package device holds the hardware-agnostic types shared by both tuner
// families: channels, discovered device descriptors, read modes and the
// configuration source naming rule.
package device

import (
	"fmt"
	"strings"

	"tvrec/internal/textutil"
)

// Family identifies a hardware family and its pipeline.
type Family string

const (
	FamilyHDHomeRun Family = "hdhr"
	FamilyV4L2      Family = "v4l2"
)

// ReadMode is the capture strategy used to move device bytes to the destination.
type ReadMode string

const (
	ReadCopy      ReadMode = "copy"
	ReadUDP       ReadMode = "udp"
	ReadTranscode ReadMode = "transcode"
)

// ParseReadMode accepts the configuration spellings of a read mode. Unknown
// values fall back to copy.
func ParseReadMode(value string) ReadMode {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "udp", "relay", "udp-relay":
		return ReadUDP
	case "transcode", "direct":
		return ReadTranscode
	default:
		return ReadCopy
	}
}

// Channel is a tunable channel. Number is what users see ("5.1"), Frequency
// is what the tuner is set to and ReferenceNumber links listings to scans.
type Channel struct {
	Number          string `json:"number" yaml:"number"`
	Name            string `json:"name,omitempty" yaml:"name,omitempty"`
	Frequency       int    `json:"frequency" yaml:"frequency"`
	ReferenceNumber string `json:"reference_number,omitempty" yaml:"reference"`
}

func (c Channel) String() string {
	if c.Name != "" {
		return fmt.Sprintf("%s %s", c.Number, c.Name)
	}
	return c.Number
}

// NetworkDescriptor describes one network tuner box found by discovery.
type NetworkDescriptor struct {
	ID        string `json:"id"`
	IPAddress string `json:"ip_address"`
	Model     string `json:"model"`
}

// Key returns the device key for one tuner on this box.
func (d NetworkDescriptor) Key(tuner int) string {
	return NetworkKey(d.ID, tuner)
}

// NetworkKey formats "{id}-{tuner}".
func NetworkKey(id string, tuner int) string {
	return fmt.Sprintf("%s-%d", id, tuner)
}

// LocalDescriptor describes one capture card node such as /dev/video0.
type LocalDescriptor struct {
	Path          string   `json:"path"`
	DriverName    string   `json:"driver_name"`
	CardType      string   `json:"card_type"`
	BusInfo       string   `json:"bus_info"`
	DriverVersion string   `json:"driver_version"`
	Capabilities  []string `json:"capabilities,omitempty"`
}

// Key is the device node path.
func (d LocalDescriptor) Key() string { return d.Path }

// HasCapability reports whether any capability line contains value, ignoring case.
func (d LocalDescriptor) HasCapability(value string) bool {
	value = strings.ToLower(value)
	for _, capability := range d.Capabilities {
		if strings.Contains(strings.ToLower(capability), value) {
			return true
		}
	}
	return false
}

// Source names the persisted configuration of one physical device instance.
// The title has its spaces replaced with underscores and the device key is
// appended, so two identical cards never share a configuration.
func Source(title, key string) string {
	name := textutil.Underscored(title)
	if name == "" {
		name = "unknown"
	}
	keyPart := strings.Trim(textutil.SanitizeFileName(key), "-")
	if keyPart == "" {
		return name
	}
	return name + "-" + keyPart
}
