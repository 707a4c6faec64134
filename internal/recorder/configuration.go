package recorder

import (
	"bytes"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/magiconair/properties"

	"tvrec/internal/device"
)

// Configuration keys shared by both families.
const (
	KeyTitle                 = "title"
	KeyDevice                = "device"
	KeyAudioInput            = "audio_input"
	KeyAudioInputChoices     = "audio_input.choices"
	KeyVideoInput            = "video_input"
	KeyVideoInputChoices     = "video_input.choices"
	KeyFrequencyTable        = "frequency_table"
	KeyFrequencyTableChoices = "frequency_table.choices"
	KeyChannelChangeScript   = "channel_change_script"
	KeyCustomChannels        = "custom_channel_list"
	KeyCustomChannelMode     = "custom_channel_mode"
	KeyReadMode              = "read_mode"
	KeyChannelMap            = "channel_map"
	KeyChannelMapChoices     = "channel_map.choices"

	// ControlPrefix starts every device control key: "ctrl.<name>" holds the
	// value, "ctrl.<name>.type" and "ctrl.<name>.choices" describe it.
	ControlPrefix = "ctrl."
)

// Custom channel list modes.
const (
	ModeWhitelist = "whitelist"
	ModeBlacklist = "blacklist"
)

// Configuration is the persisted key/value set of one recorder. It is safe
// for concurrent use.
type Configuration struct {
	Source string
	Family device.Family

	mu    sync.RWMutex
	props *properties.Properties
}

// NewConfiguration returns an empty configuration for source.
func NewConfiguration(source string, family device.Family) *Configuration {
	props := properties.NewProperties()
	props.DisableExpansion = true
	return &Configuration{Source: source, Family: family, props: props}
}

// Get returns the value for key, or "" when absent.
func (c *Configuration) Get(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, _ := c.props.Get(key)
	return strings.TrimSpace(value)
}

// Lookup returns the value for key and whether it is present.
func (c *Configuration) Lookup(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.props.Get(key)
	return strings.TrimSpace(value), ok
}

// Set stores value under key.
func (c *Configuration) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _, _ = c.props.Set(key, value)
}

// SetDefault stores value only when key is absent.
func (c *Configuration) SetDefault(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.props.Get(key); ok {
		return
	}
	_, _, _ = c.props.Set(key, value)
}

// Int parses key as an integer, returning def on absence or parse failure.
func (c *Configuration) Int(key string, def int) int {
	value := c.Get(key)
	if value == "" {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return n
}

// Choices splits a comma-separated list value.
func (c *Configuration) Choices(key string) []string {
	return splitList(c.Get(key))
}

// SetChoices stores values as a comma-separated list.
func (c *Configuration) SetChoices(key string, values []string) {
	c.Set(key, strings.Join(values, ","))
}

// ReadMode returns the configured capture strategy.
func (c *Configuration) ReadMode() device.ReadMode {
	return device.ParseReadMode(c.Get(KeyReadMode))
}

// Controls returns device control values keyed by control name.
func (c *Configuration) Controls() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := map[string]string{}
	for _, key := range c.props.Keys() {
		if !strings.HasPrefix(key, ControlPrefix) {
			continue
		}
		name := strings.TrimPrefix(key, ControlPrefix)
		if name == "" || strings.Contains(name, ".") {
			continue
		}
		value, _ := c.props.Get(key)
		if value = strings.TrimSpace(value); value != "" {
			out[name] = value
		}
	}
	return out
}

// ControlNames returns the sorted names of all configured controls.
func (c *Configuration) ControlNames() []string {
	controls := c.Controls()
	names := make([]string, 0, len(controls))
	for name := range controls {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Keys returns every key in insertion order.
func (c *Configuration) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.props.Keys()
}

// String renders the configuration in properties file format.
func (c *Configuration) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var buf bytes.Buffer
	_, _ = c.props.Write(&buf, properties.UTF8)
	return buf.String()
}

// FilterChannels applies the custom channel list. In whitelist mode only the
// listed channel numbers survive; in blacklist mode they are removed. An empty
// list leaves channels untouched.
func (c *Configuration) FilterChannels(channels []device.Channel) []device.Channel {
	listed := splitList(c.Get(KeyCustomChannels))
	if len(listed) == 0 {
		return channels
	}
	set := make(map[string]struct{}, len(listed))
	for _, number := range listed {
		set[number] = struct{}{}
	}
	whitelist := !strings.EqualFold(c.Get(KeyCustomChannelMode), ModeBlacklist)
	out := make([]device.Channel, 0, len(channels))
	for _, ch := range channels {
		_, ok := set[ch.Number]
		if ok == whitelist {
			out = append(out, ch)
		}
	}
	return out
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
