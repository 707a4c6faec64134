package textutil

import (
	"reflect"
	"testing"
)

func TestLinesDropsBlanksAndKeepsIndent(t *testing.T) {
	got := Lines("first\r\n\n  \t\n\t\tindented: 1\r\nlast")
	want := []string{"first", "\t\tindented: 1", "last"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Lines = %#v, want %#v", got, want)
	}
}

func TestKeyValue(t *testing.T) {
	tests := []struct {
		line      string
		key       string
		value     string
		wantMatch bool
	}{
		{line: "\tDriver name   : ivtv", key: "Driver name", value: "ivtv", wantMatch: true},
		{line: "Bus info: PCI:0000:03:00.0", key: "Bus info", value: "PCI:0000:03:00.0", wantMatch: true},
		{line: "Video Capture", wantMatch: false},
		{line: ": orphan", wantMatch: false},
	}
	for _, tt := range tests {
		key, value, ok := KeyValue(tt.line)
		if ok != tt.wantMatch {
			t.Fatalf("KeyValue(%q) ok = %v, want %v", tt.line, ok, tt.wantMatch)
		}
		if ok && (key != tt.key || value != tt.value) {
			t.Fatalf("KeyValue(%q) = %q, %q", tt.line, key, value)
		}
	}
}

func TestUnderscored(t *testing.T) {
	if got := Underscored("  Hauppauge WinTV  PVR 150 "); got != "Hauppauge_WinTV_PVR_150" {
		t.Fatalf("Underscored = %q", got)
	}
	if got := Underscored("Card: A/B"); got != "Card-_A-B" {
		t.Fatalf("Underscored = %q", got)
	}
}

func TestSanitizeFileName(t *testing.T) {
	if got := SanitizeFileName(` News: "Live" 5/7 `); got != "News- Live 5-7" {
		t.Fatalf("SanitizeFileName = %q", got)
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{
		0:             "0 B",
		1023:          "1023 B",
		1024:          "1.0 KiB",
		3 << 29:       "1.5 GiB",
		5 * (1 << 40): "5.0 TiB",
	}
	for in, want := range cases {
		if got := FormatBytes(in); got != want {
			t.Fatalf("FormatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
