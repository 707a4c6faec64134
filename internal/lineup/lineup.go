// Package lineup reads program data from a YAML file: named listings, the
// channels each listing carries and the shows airing on them.
package lineup

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"tvrec/internal/device"
	"tvrec/internal/fileutil"
	"tvrec/internal/nms"
)

// File is the on-disk YAML document.
type File struct {
	Name     string    `yaml:"name"`
	Listings []Listing `yaml:"listings"`
}

// Listing is one channel lineup, e.g. an antenna or a cable provider.
type Listing struct {
	Name     string           `yaml:"name"`
	Channels []device.Channel `yaml:"channels"`
	Shows    []Show           `yaml:"shows,omitempty"`
}

// Show is a program airing on a listing.
type Show struct {
	ID      string `yaml:"id"`
	Title   string `yaml:"title"`
	Episode string `yaml:"episode,omitempty"`
}

// Lineup is the program data loaded from one YAML file.
type Lineup struct {
	name     string
	listings map[string]Listing
	order    []string
	shows    map[string]nms.Show
}

var _ nms.ProgramData = (*Lineup)(nil)

// Load reads and validates the lineup at path.
func Load(path string) (*Lineup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// LoadOptional returns an empty lineup when path does not exist.
func LoadOptional(path string) (*Lineup, error) {
	l, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(File{Name: "empty"}), nil
	}
	return l, err
}

// Parse decodes a YAML lineup document.
func Parse(data []byte) (*Lineup, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse lineup: %w", err)
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return New(file), nil
}

// Validate rejects listings without a name and duplicate listing names.
func (f File) Validate() error {
	seen := make(map[string]struct{}, len(f.Listings))
	for i, listing := range f.Listings {
		name := strings.TrimSpace(listing.Name)
		if name == "" {
			return fmt.Errorf("lineup listings[%d].name must be set", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("lineup listing %q is defined twice", name)
		}
		seen[name] = struct{}{}
		for j, ch := range listing.Channels {
			if strings.TrimSpace(ch.Number) == "" {
				return fmt.Errorf("lineup listing %q channels[%d].number must be set", name, j)
			}
		}
	}
	return nil
}

// New builds a lineup from a decoded document.
func New(file File) *Lineup {
	l := &Lineup{
		name:     file.Name,
		listings: make(map[string]Listing, len(file.Listings)),
		shows:    make(map[string]nms.Show),
	}
	for _, listing := range file.Listings {
		name := strings.TrimSpace(listing.Name)
		l.listings[name] = listing
		l.order = append(l.order, name)
		for _, show := range listing.Shows {
			id := show.ID
			if id == "" {
				id = show.Title
			}
			l.shows[id] = nms.Show{ID: id, Title: show.Title, Episode: show.Episode}
		}
	}
	sort.Strings(l.order)
	return l
}

// Name identifies the lineup in logs.
func (l *Lineup) Name() string {
	if l.name == "" {
		return "lineup"
	}
	return l.name
}

// ListingNames returns the listing names sorted.
func (l *Lineup) ListingNames() []string {
	return append([]string(nil), l.order...)
}

// Channels returns the channels of listing in file order.
func (l *Lineup) Channels(listing string) []device.Channel {
	return append([]device.Channel(nil), l.listings[listing].Channels...)
}

// Show looks a show up by id.
func (l *Lineup) Show(id string) (nms.Show, bool) {
	show, ok := l.shows[id]
	return show, ok
}

// Write saves file as YAML at path.
func Write(path string, file File) error {
	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode lineup: %w", err)
	}
	return fileutil.WriteFileAtomic(path, data, 0o644)
}

// Sample is the template written by "tvrec config init".
func Sample() File {
	return File{
		Name: "home",
		Listings: []Listing{{
			Name: "antenna",
			Channels: []device.Channel{
				{Number: "5.1", Name: "KXYZ-HD", Frequency: 21, ReferenceNumber: "5.1"},
				{Number: "7.1", Name: "KABC-HD", Frequency: 33, ReferenceNumber: "7.1"},
			},
			Shows: []Show{{ID: "evening-news", Title: "Evening News"}},
		}},
	}
}
