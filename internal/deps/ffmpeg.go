package deps

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CheckFFmpegEncoders reports whether command provides every encoder in
// codecs. The capture pipelines transcode to the configured video and audio
// codecs, so a build lacking one of them fails only once a recording starts.
func CheckFFmpegEncoders(ctx context.Context, command string, codecs ...string) Status {
	result := Status{
		Name:        "FFmpeg encoders",
		Command:     strings.TrimSpace(command),
		Description: "Encoders used by capture pipelines",
	}
	if result.Command == "" {
		result.Detail = "command not configured"
		return result
	}
	resolved, err := exec.LookPath(result.Command)
	if err != nil {
		result.Detail = fmt.Sprintf("binary %q not found", result.Command)
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, resolved, "-hide_banner", "-encoders").Output()
	if err != nil {
		result.Detail = fmt.Sprintf("list encoders: %v", err)
		return result
	}

	available := ParseEncoders(string(out))
	var missing []string
	for _, codec := range codecs {
		codec = strings.TrimSpace(codec)
		if codec == "" || codec == "copy" {
			continue
		}
		if _, ok := available[codec]; !ok {
			missing = append(missing, codec)
		}
	}
	if len(missing) > 0 {
		result.Detail = "missing encoders: " + strings.Join(missing, ", ")
		return result
	}
	result.Available = true
	return result
}

// ParseEncoders extracts encoder names from `ffmpeg -encoders` output. Lines
// after the " ------" separator look like " V....D mpeg2video  MPEG-2 video".
func ParseEncoders(output string) map[string]struct{} {
	encoders := make(map[string]struct{})
	scanner := bufio.NewScanner(strings.NewReader(output))
	listing := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "------") {
			listing = true
			continue
		}
		if !listing {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		encoders[fields[1]] = struct{}{}
	}
	return encoders
}
