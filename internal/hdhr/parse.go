package hdhr

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"tvrec/internal/device"
	"tvrec/internal/textutil"
)

// UnknownModel is reported when the model query fails or prints nothing useful.
const UnknownModel = "unknown"

// ParseDiscover reads "hdhomerun device <id> found at <ip>" lines. Lines with
// fewer than six tokens are ignored, and each id is reported once.
func ParseDiscover(output string) []device.NetworkDescriptor {
	var out []device.NetworkDescriptor
	seen := make(map[string]struct{})
	for _, line := range textutil.Lines(output) {
		tokens := strings.Fields(line)
		if len(tokens) < 6 || !strings.EqualFold(tokens[1], "device") {
			continue
		}
		id := strings.ToUpper(tokens[2])
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, device.NetworkDescriptor{ID: id, IPAddress: tokens[5]})
	}
	return out
}

// ParseModel returns the first output line, or UnknownModel when the helper
// printed nothing or an error.
func ParseModel(output string) string {
	for _, line := range textutil.Lines(output) {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "error") || strings.Contains(lower, "unknown getset variable") {
			return UnknownModel
		}
		return line
	}
	return UnknownModel
}

// DisplayTitle turns a model string such as "hdhomerun3_atsc" into
// "HDHomeRun3 ATSC".
func DisplayTitle(model string) string {
	model = strings.TrimSpace(model)
	if model == "" || model == UnknownModel {
		return "HDHomeRun"
	}
	rest := strings.TrimPrefix(strings.ToLower(model), "hdhomerun")
	parts := strings.FieldsFunc(rest, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	if len(parts) == 0 {
		return "HDHomeRun"
	}
	upper := cases.Upper(language.Und)
	title := "HDHomeRun"
	for i, part := range parts {
		part = upper.String(part)
		if i == 0 && isDigits(part) {
			title += part
			continue
		}
		title += " " + part
	}
	return title
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ScanResult is one usable program found by a channel scan.
type ScanResult struct {
	Program   string
	Name      string
	Frequency int
	Lock      string
}

var parenChannel = regexp.MustCompile(`\(([^)]*)\)`)

// ParseScanLog walks scan output, remembering the most recent SCANNING and
// LOCK lines. Every PROGRAM line without an encrypted or control marker yields
// a result keyed by its third whitespace token.
//
//	SCANNING: 57000000 (us-bcast:2)
//	LOCK: 8vsb (ss=100 snq=83 seq=100)
//	PROGRAM 3: 5.1 WABC-HD
func ParseScanLog(output string) []ScanResult {
	var (
		out       []ScanResult
		frequency int
		lock      string
	)
	for _, line := range textutil.Lines(output) {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "SCANNING:"):
			frequency = scanFrequency(strings.TrimSpace(strings.TrimPrefix(line, "SCANNING:")))
			lock = ""
		case strings.HasPrefix(line, "LOCK:"):
			fields := strings.Fields(strings.TrimPrefix(line, "LOCK:"))
			lock = ""
			if len(fields) > 0 {
				lock = fields[0]
			}
		case strings.HasPrefix(line, "PROGRAM"):
			lower := strings.ToLower(line)
			if strings.Contains(lower, "encrypted") || strings.Contains(lower, "control") {
				continue
			}
			if lock == "none" {
				continue
			}
			tokens := strings.Fields(line)
			if len(tokens) < 3 {
				continue
			}
			out = append(out, ScanResult{
				Program:   tokens[2],
				Name:      strings.Join(tokens[3:], " "),
				Frequency: frequency,
				Lock:      lock,
			})
		}
	}
	return out
}

// scanFrequency prefers the channel number in "(map:N)"; otherwise the first
// numeric token is used as is.
func scanFrequency(value string) int {
	if m := parenChannel.FindStringSubmatch(value); m != nil {
		inner := m[1]
		if idx := strings.LastIndexByte(inner, ':'); idx >= 0 {
			inner = inner[idx+1:]
		}
		if n, err := strconv.Atoi(strings.TrimSpace(inner)); err == nil {
			return n
		}
	}
	fields := strings.Fields(value)
	if len(fields) > 0 {
		if n, err := strconv.Atoi(fields[0]); err == nil {
			return n
		}
	}
	return 0
}
