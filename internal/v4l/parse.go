package v4l

import (
	"regexp"
	"strconv"
	"strings"

	"tvrec/internal/device"
	"tvrec/internal/textutil"
)

// ParseInfo reads --info output. "key : value" lines fill the descriptor;
// lines without a colon are capability names.
func ParseInfo(path, output string) device.LocalDescriptor {
	desc := device.LocalDescriptor{Path: path}
	for _, line := range textutil.Lines(output) {
		key, value, ok := textutil.KeyValue(line)
		if !ok {
			if capability := strings.TrimSpace(line); capability != "" {
				desc.Capabilities = append(desc.Capabilities, capability)
			}
			continue
		}
		switch strings.ToLower(key) {
		case "driver name":
			desc.DriverName = value
		case "card type":
			desc.CardType = value
		case "bus info":
			desc.BusInfo = value
		case "driver version":
			desc.DriverVersion = value
		}
	}
	return desc
}

// Input is one entry of an input listing.
type Input struct {
	Index int
	Name  string
}

// ParseInputs reads --list-inputs or --list-audio-inputs output. Every
// "Name:" line adds an input, indexed by the preceding "Input:" line or by
// position when that is missing.
func ParseInputs(output string) []Input {
	var out []Input
	index := -1
	for _, line := range textutil.Lines(output) {
		key, value, ok := textutil.KeyValue(line)
		if !ok {
			continue
		}
		switch strings.ToLower(key) {
		case "input":
			if n, err := strconv.Atoi(value); err == nil {
				index = n
			}
		case "name":
			if index < 0 {
				index = len(out)
			}
			out = append(out, Input{Index: index, Name: value})
			index = -1
		}
	}
	return out
}

// Control types accepted from --list-ctrls-menus.
const (
	ControlInt  = "int"
	ControlBool = "bool"
	ControlMenu = "menu"
)

// MenuItem is one choice of a menu control.
type MenuItem struct {
	Index int
	Label string
}

// Control is one device control definition.
type Control struct {
	Name     string
	Type     string
	Attrs    map[string]string
	Menu     []MenuItem
	ReadOnly bool
}

// Value returns the current value attribute, falling back to default.
func (c Control) Value() string {
	if v, ok := c.Attrs["value"]; ok {
		return v
	}
	return c.Attrs["default"]
}

var (
	controlLine = regexp.MustCompile(`^\s*(\S+)\s+(?:0x[0-9a-fA-F]+\s+)?\((\w+)\)\s*:\s*(.*)$`)
	menuLine    = regexp.MustCompile(`^\s+(\d+):\s*(.*)$`)
)

// ParseControls reads --list-ctrls-menus output. Control lines have the form
// "label (type): k=v k=v"; an indented "N: label" line after a menu control
// adds a choice to it. Types other than int, bool and menu are ignored.
func ParseControls(output string) []Control {
	var out []Control
	current := -1
	for _, line := range textutil.Lines(output) {
		if m := menuLine.FindStringSubmatch(line); m != nil {
			if current >= 0 && out[current].Type == ControlMenu {
				n, _ := strconv.Atoi(m[1])
				out[current].Menu = append(out[current].Menu, MenuItem{Index: n, Label: strings.TrimSpace(m[2])})
			}
			continue
		}
		m := controlLine.FindStringSubmatch(line)
		if m == nil {
			current = -1
			continue
		}
		kind := strings.ToLower(m[2])
		if kind != ControlInt && kind != ControlBool && kind != ControlMenu {
			current = -1
			continue
		}
		ctrl := Control{Name: m[1], Type: kind, Attrs: parseAttrs(m[3])}
		if flags := ctrl.Attrs["flags"]; strings.Contains(flags, "read-only") || strings.Contains(flags, "inactive") {
			ctrl.ReadOnly = true
		}
		out = append(out, ctrl)
		current = len(out) - 1
	}
	return out
}

func parseAttrs(value string) map[string]string {
	attrs := map[string]string{}
	for _, field := range strings.Fields(value) {
		k, v, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		attrs[k] = v
	}
	return attrs
}
