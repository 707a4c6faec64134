package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/jedib0t/go-pretty/v6/text"

	"tvrec/internal/ipc"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("tvrecd", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "tvrecd:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("tvrecd", statusOK, "Running", true)
	if !strings.HasPrefix(got, text.FgGreen.EscapeSeq()) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, text.Reset.EscapeSeq()) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	deps := []ipc.DependencyStatus{
		{Name: "FFmpeg", Available: false},
		{Name: "hdhomerun_config", Available: true, Command: "hdhomerun_config"},
		{Name: "v4l2-ctl", Available: false, Optional: true, Detail: "not found"},
	}
	lines := dependencyLines(deps, false)
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[ERROR] 1/3 available") || !strings.Contains(lines[0], "Summary") {
		t.Fatalf("expected summary line first, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "[ERROR] not available") {
		t.Fatalf("expected error detail in second line, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "[OK] Ready (command: hdhomerun_config)") {
		t.Fatalf("expected ready detail in third line, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "[WARN] not found") {
		t.Fatalf("expected warn detail in fourth line, got %q", lines[3])
	}
	if !strings.Contains(lines[4], "Missing dependencies:") {
		t.Fatalf("expected missing dependencies summary, got %q", lines[4])
	}
}

func TestDependencyLinesEmpty(t *testing.T) {
	lines := dependencyLines(nil, false)
	if len(lines) != 1 || !strings.Contains(lines[0], "[INFO] No dependency checks configured") {
		t.Fatalf("unexpected lines: %q", lines)
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]column{{title: "Device"}, {title: "State", state: true}}, [][]string{{"10A0B0C0-0"}}, false)
	if !strings.Contains(out, "10A0B0C0-0") || !strings.Contains(strings.ToUpper(out), "STATE") {
		t.Fatalf("unexpected table output:\n%s", out)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestRenderTableColorsStateColumn(t *testing.T) {
	rows := [][]string{{"10A0B0C0-0", "recording"}, {"/dev/video1", "idle"}}
	out := renderTable([]column{{title: "Device"}, {title: "State", state: true}}, rows, true)
	if !strings.Contains(out, text.FgGreen.Sprint("recording")) {
		t.Fatalf("expected recording state in green:\n%s", out)
	}
	if strings.Contains(out, text.FgGreen.Sprint("idle")) {
		t.Fatalf("idle state should not be green:\n%s", out)
	}
}

func TestStateKind(t *testing.T) {
	cases := map[string]statusKind{
		"recording":       statusOK,
		"streaming":       statusOK,
		"failed":          statusError,
		"stopped":         statusWarn,
		"scheduled":       statusInfo,
		"will_not_record": statusWarn,
	}
	for state, want := range cases {
		if got := stateKind(state); got != want {
			t.Fatalf("stateKind(%q) = %d, want %d", state, got, want)
		}
	}
}
