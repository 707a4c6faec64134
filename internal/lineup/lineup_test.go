package lineup

import (
	"path/filepath"
	"reflect"
	"testing"

	"tvrec/internal/device"
)

const sampleYAML = `
name: home
listings:
  - name: cable
    channels:
      - number: "99"
        name: Shopping
  - name: antenna
    channels:
      - number: "5.1"
        name: KXYZ-HD
        frequency: 21
        reference: "5.1"
      - number: "7.1"
        frequency: 33
    shows:
      - id: news-1
        title: Evening News
      - title: Late Movie
`

func TestParse(t *testing.T) {
	l, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if l.Name() != "home" {
		t.Fatalf("name = %q", l.Name())
	}
	if got := l.ListingNames(); !reflect.DeepEqual(got, []string{"antenna", "cable"}) {
		t.Fatalf("listing names = %v", got)
	}
	want := []device.Channel{
		{Number: "5.1", Name: "KXYZ-HD", Frequency: 21, ReferenceNumber: "5.1"},
		{Number: "7.1", Frequency: 33},
	}
	if got := l.Channels("antenna"); !reflect.DeepEqual(got, want) {
		t.Fatalf("channels = %+v", got)
	}
	if show, ok := l.Show("news-1"); !ok || show.Title != "Evening News" {
		t.Fatalf("show lookup failed: %+v", show)
	}
	if _, ok := l.Show("Late Movie"); !ok {
		t.Fatal("show without id should be keyed by title")
	}
	if len(l.Channels("missing")) != 0 {
		t.Fatal("unknown listing should have no channels")
	}
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"missing name":      "listings:\n  - channels: []\n",
		"duplicate listing": "listings:\n  - name: a\n  - name: a\n",
		"channel number":    "listings:\n  - name: a\n    channels:\n      - name: x\n",
		"not yaml":          "listings: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestWriteAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lineup.yaml")
	if err := Write(path, Sample()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	l, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := l.Channels("antenna"); len(got) != 2 || got[0].Frequency != 21 {
		t.Fatalf("unexpected channels %+v", got)
	}
}

func TestLoadOptionalMissingFile(t *testing.T) {
	l, err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if len(l.ListingNames()) != 0 {
		t.Fatal("expected empty lineup")
	}
}
