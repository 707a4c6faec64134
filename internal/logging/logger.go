package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Options describes logger construction parameters. Outputs holds "stdout",
// "stderr" or file paths; every record is written to each of them.
type Options struct {
	Level   string
	Format  string
	Outputs []string
}

// New constructs a console or JSON logger. Source locations are attached at
// debug level only.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	w, err := openOutputs(opts.Outputs)
	if err != nil {
		return nil, err
	}
	addSource := level <= slog.LevelDebug

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "console":
		return slog.New(&consoleHandler{shared: &consoleOutput{w: w}, level: level, addSource: addSource}), nil
	case "json":
		return slog.New(newJSONHandler(w, level, addSource)), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openOutputs(outputs []string) (io.Writer, error) {
	seen := map[string]struct{}{}
	var writers []io.Writer
	for _, out := range outputs {
		out = strings.TrimSpace(out)
		if out == "" {
			continue
		}
		if _, ok := seen[out]; ok {
			continue
		}
		seen[out] = struct{}{}
		switch out {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return nil, fmt.Errorf("ensure log directory: %w", err)
			}
			file, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", out, err)
			}
			writers = append(writers, file)
		}
	}
	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	default:
		return io.MultiWriter(writers...), nil
	}
}

func newJSONHandler(w io.Writer, level slog.Level, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: addSource,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				attr.Key = "ts"
				if attr.Value.Kind() == slog.KindTime {
					attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
				}
			case slog.LevelKey:
				attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
			case slog.SourceKey:
				if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
					attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
				}
			}
			return attr
		},
	})
}

type consoleOutput struct {
	mu sync.Mutex
	w  io.Writer
}

// consoleHandler renders one line per record:
//
//	2026-10-17T20:00:00Z INFO hdhr-pipeline [1020FA3C-0 capture] rec=3f2a9c1e: save> line key=value
//
// The bracket holds the device and pipeline stage, rec the short recording
// id, and "name>" marks output relayed from a job.
type consoleHandler struct {
	shared    *consoleOutput
	level     slog.Level
	attrs     []slog.Attr
	group     string
	addSource bool
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

type field struct {
	key   string
	value slog.Value
}

type prefix struct {
	component, device, stage, recording, job string
}

// take moves the well-known domain keys out of fields into the line prefix.
func (p *prefix) take(f field) bool {
	var dst *string
	switch f.key {
	case FieldComponent:
		dst = &p.component
	case FieldDevice:
		dst = &p.device
	case FieldStage:
		dst = &p.stage
	case FieldRecordingID:
		dst = &p.recording
	case FieldJob:
		dst = &p.job
	default:
		return false
	}
	if *dst == "" {
		*dst = plain(f.value)
	}
	return true
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	var pre prefix
	var fields []field
	collect := func(group string, attr slog.Attr) {
		for _, f := range flatten(group, attr) {
			if !pre.take(f) {
				fields = append(fields, f)
			}
		}
	}
	for _, attr := range h.attrs {
		collect("", attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		collect(h.group, attr)
		return true
	})

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var buf bytes.Buffer
	buf.WriteString(ts.UTC().Format(time.RFC3339))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(record.Level))
	buf.WriteByte(' ')
	pre.write(&buf)

	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	if pre.job != "" {
		buf.WriteString(pre.job)
		buf.WriteString("> ")
	}
	buf.WriteString(msg)

	if h.addSource {
		if src := record.Source(); src != nil {
			fmt.Fprintf(&buf, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	for _, f := range fields {
		buf.WriteByte(' ')
		buf.WriteString(f.key)
		buf.WriteByte('=')
		buf.WriteString(quoted(f.value))
	}
	buf.WriteByte('\n')

	h.shared.mu.Lock()
	defer h.shared.mu.Unlock()
	_, err := h.shared.w.Write(buf.Bytes())
	return err
}

func (p prefix) write(buf *bytes.Buffer) {
	var scope []string
	if p.device != "" {
		scope = append(scope, p.device)
	}
	if p.stage != "" {
		scope = append(scope, p.stage)
	}
	parts := make([]string, 0, 3)
	if p.component != "" {
		parts = append(parts, p.component)
	}
	if len(scope) > 0 {
		parts = append(parts, "["+strings.Join(scope, " ")+"]")
	}
	if p.recording != "" {
		parts = append(parts, "rec="+shortID(p.recording))
	}
	if len(parts) == 0 {
		return
	}
	buf.WriteString(strings.Join(parts, " "))
	buf.WriteString(": ")
}

// shortID trims uuid recording ids to their first block.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i == 8 {
		return id[:i]
	}
	return id
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, attr := range attrs {
		if h.group != "" {
			attr = slog.Attr{Key: h.group + "." + attr.Key, Value: attr.Value}
		}
		clone.attrs = append(clone.attrs, attr)
	}
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if clone.group != "" {
		clone.group += "." + name
	} else {
		clone.group = name
	}
	return &clone
}

func flatten(group string, attr slog.Attr) []field {
	if attr.Equal(slog.Attr{}) {
		return nil
	}
	key := attr.Key
	if group != "" {
		key = group + "." + key
	}
	value := attr.Value.Resolve()
	if value.Kind() != slog.KindGroup {
		return []field{{key: key, value: value}}
	}
	var out []field
	for _, inner := range value.Group() {
		out = append(out, flatten(strings.Trim(key, "."), inner)...)
	}
	return out
}

func plain(v slog.Value) string {
	if v.Kind() == slog.KindAny {
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	}
	return v.String()
}

func quoted(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	default:
		s = plain(v)
	}
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
