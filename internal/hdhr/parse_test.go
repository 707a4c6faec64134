package hdhr

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"tvrec/internal/device"
)

const sampleScan = `SCANNING: 57000000 (us-bcast:2)
LOCK: none (ss=45 snq=0 seq=0)
SCANNING: 521000000 (us-bcast:21)
LOCK: 8vsb (ss=100 snq=83 seq=100)
TSID: 0x0421
PROGRAM 3: 5.1 WABC-HD
PROGRAM 4: 5.2 LiveWel
PROGRAM 5: 0 (control)
SCANNING: 527000000 (us-bcast:22)
LOCK: 8vsb (ss=90 snq=70 seq=100)
PROGRAM 1: 7.1 KABC
PROGRAM 2: 7.2 (encrypted)
`

func TestParseDiscover(t *testing.T) {
	out := "hdhomerun device 1020fa3c found at 192.168.1.50\nno devices\nhdhomerun device 1020FA3C found at 192.168.1.50\nhdhomerun device 10A0BEEF found at 192.168.1.51\n"
	got := ParseDiscover(out)
	want := []device.NetworkDescriptor{
		{ID: "1020FA3C", IPAddress: "192.168.1.50"},
		{ID: "10A0BEEF", IPAddress: "192.168.1.51"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseDiscover = %+v, want %+v", got, want)
	}
}

func TestParseModel(t *testing.T) {
	cases := map[string]string{
		"hdhomerun3_atsc\n":                       "hdhomerun3_atsc",
		"":                                        UnknownModel,
		"ERROR: unknown getset variable '/sys'\n": UnknownModel,
	}
	for in, want := range cases {
		if got := ParseModel(in); got != want {
			t.Fatalf("ParseModel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDisplayTitle(t *testing.T) {
	cases := map[string]string{
		"hdhomerun3_atsc": "HDHomeRun3 ATSC",
		"hdhomerun_dvbt":  "HDHomeRun DVBT",
		UnknownModel:      "HDHomeRun",
	}
	for in, want := range cases {
		if got := DisplayTitle(in); got != want {
			t.Fatalf("DisplayTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseScanLog(t *testing.T) {
	got := ParseScanLog(sampleScan)
	want := []ScanResult{
		{Program: "5.1", Name: "WABC-HD", Frequency: 21, Lock: "8vsb"},
		{Program: "5.2", Name: "LiveWel", Frequency: 21, Lock: "8vsb"},
		{Program: "7.1", Name: "KABC", Frequency: 22, Lock: "8vsb"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseScanLog = %+v, want %+v", got, want)
	}
}

func TestScanMapRoundTrip(t *testing.T) {
	channels := []device.Channel{
		{Number: "5.1", ReferenceNumber: "5.1"},
		{Number: "12", ReferenceNumber: "7.1"},
		{Number: "9.1", ReferenceNumber: "9.1"},
	}
	merged := MergeScan(ParseScanLog(sampleScan), channels)
	if len(merged) != 2 {
		t.Fatalf("expected 2 merged entries, got %+v", merged)
	}
	if merged["12"].Frequency != 22 || merged["12"].Reference != "7.1" {
		t.Fatalf("unexpected entry %+v", merged["12"])
	}

	var buf bytes.Buffer
	if err := merged.Write(&buf); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "5.1=5.1:21\n12=7.1:22\n" {
		t.Fatalf("unexpected scan file %q", buf.String())
	}
	parsed, err := ParseScanMap(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(parsed, merged) {
		t.Fatalf("round trip = %+v, want %+v", parsed, merged)
	}
}

func TestMergeScanWithoutChannelsKeepsEveryProgram(t *testing.T) {
	merged := MergeScan(ParseScanLog(sampleScan), nil)
	numbers := merged.Numbers()
	if !reflect.DeepEqual(numbers, []string{"5.1", "5.2", "7.1"}) {
		t.Fatalf("unexpected numbers %v", numbers)
	}
}

func TestLoadScanMapFallsBack(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := LoadScanMap(dir, "1020FA3C-0"); err == nil {
		t.Fatal("expected not found without any scan file")
	}
	if err := os.WriteFile(filepath.Join(dir, DefaultScanFile), []byte("# generic\n2.1=2.1:8\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	m, path, err := LoadScanMap(dir, "1020FA3C-0")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != DefaultScanFile || m["2.1"].Frequency != 8 {
		t.Fatalf("unexpected fallback %s %+v", path, m)
	}

	if _, err := SaveScanMap(dir, "1020FA3C-0", ScanMap{"5.1": {Number: "5.1", Reference: "5.1", Frequency: 21}}); err != nil {
		t.Fatal(err)
	}
	m, path, err = LoadScanMap(dir, "1020FA3C-0")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "1020FA3C-0-scan.conf" || m["5.1"].Frequency != 21 {
		t.Fatalf("device scan file not preferred: %s %+v", path, m)
	}
}

func TestParseScanMapRejectsMalformedLines(t *testing.T) {
	if _, err := ParseScanMap(strings.NewReader("5.1-21\n")); err == nil {
		t.Fatal("expected error for missing '='")
	}
	if _, err := ParseScanMap(strings.NewReader("5.1=5.1:x\n")); err == nil {
		t.Fatal("expected error for bad frequency")
	}
}

func TestCLIArgumentShapes(t *testing.T) {
	cli := CLI{Binary: "hdhomerun_config"}
	cases := []struct {
		got  []string
		want string
	}{
		{cli.Discover().Args, "discover"},
		{cli.Model("1020FA3C").Args, "1020FA3C get /sys/hwmodel"},
		{cli.SetChannel("1020FA3C", 1, FrequencyValue(21)).Args, "1020FA3C set /tuner1/channel auto:21"},
		{cli.SetChannel("1020FA3C", 1, FrequencyValue(0)).Args, "1020FA3C set /tuner1/channel none"},
		{cli.SetProgram("1020FA3C", 0, "5.1").Args, "1020FA3C set /tuner0/program 5.1"},
		{cli.SetTarget("1020FA3C", 0, TargetURL("10.0.0.2", 5000)).Args, "1020FA3C set /tuner0/target udp://10.0.0.2:5000"},
		{cli.SetChannelMap("1020FA3C", 0, "us-cable").Args, "1020FA3C set /tuner0/channelmap us-cable"},
		{cli.Save("1020FA3C", 0, "/rec/a.mpg").Args, "1020FA3C save /tuner0 /rec/a.mpg"},
		{cli.Scan("1020FA3C", 0, "/tmp/scan.log").Args, "1020FA3C scan /tuner0 /tmp/scan.log"},
	}
	for _, tc := range cases {
		if got := strings.Join(tc.got, " "); got != tc.want {
			t.Fatalf("args = %q, want %q", got, tc.want)
		}
	}
	if HTTPURL("192.168.1.50", 5004, 1, "5.1", "mobile") != "http://192.168.1.50:5004/tuner1/v5.1?transcode=mobile" {
		t.Fatal("unexpected HTTP url")
	}
}
