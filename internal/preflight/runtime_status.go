package preflight

import (
	"context"
	"fmt"
	"strings"

	"tvrec/internal/config"
	"tvrec/internal/v4l"
)

// CheckNtfyFromConfig evaluates notification status from config and connectivity.
func CheckNtfyFromConfig(ctx context.Context, cfg *config.Config) Result {
	const name = "ntfy"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	return CheckNtfy(ctx, cfg.Notifications.NtfyTopic)
}

// DeviceProbe reports the video device nodes present for local capture.
type DeviceProbe struct {
	Dir   string
	Nodes []string
	Err   error
}

// ProbeDevices lists the capture nodes in dir without opening them.
func ProbeDevices(dir string, maxIndex int) DeviceProbe {
	if strings.TrimSpace(dir) == "" {
		dir = v4l.DefaultDeviceDir
	}
	nodes, err := v4l.Enumerate(dir, maxIndex)
	return DeviceProbe{Dir: dir, Nodes: nodes, Err: err}
}

// Result converts the probe into a preflight result. No nodes is a failure
// because an enabled local family then has nothing to record from.
func (p DeviceProbe) Result() Result {
	const name = "Capture devices"
	if p.Err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", p.Dir, p.Err)}
	}
	if len(p.Nodes) == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("no video nodes in %s", p.Dir)}
	}
	return Result{Name: name, Passed: true, Detail: p.DeviceDetail()}
}

// DeviceDetail renders a display-friendly summary for status UIs.
func (p DeviceProbe) DeviceDetail() string {
	if len(p.Nodes) == 0 {
		return "No capture devices detected"
	}
	return fmt.Sprintf("%d node(s): %s", len(p.Nodes), strings.Join(p.Nodes, ", "))
}
