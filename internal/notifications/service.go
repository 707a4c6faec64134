package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"tvrec/internal/config"
	"tvrec/internal/logging"
	"tvrec/internal/nms"
)

const userAgent = "tvrec/0.1.0"

// Sender is the nms.EventSender backed by ntfy.
type Sender interface {
	nms.EventSender
	Publish(ctx context.Context, ev nms.Event) error
	Close()
}

// NewSender builds an ntfy sender when a topic is configured and a no-op
// sender otherwise.
func NewSender(cfg *config.Config, logger *slog.Logger) Sender {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopSender{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfySender{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		timeout:  timeout,
		logger:   logging.NewComponentLogger(logger, "notifications"),
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

func format(ev nms.Event) payload {
	subject := strings.TrimSpace(ev.Title)
	if subject == "" {
		subject = ev.RecordingID
	}
	switch ev.Type {
	case nms.EventRecordingStarted:
		return payload{
			title:   "tvrec - Recording",
			message: fmt.Sprintf("🔴 Recording %s on %s", subject, ev.Device),
			tags:    []string{"tvrec", "recording", "started"},
		}
	case nms.EventRecordingCompleted:
		return payload{
			title:    "tvrec - Recorded",
			message:  fmt.Sprintf("✅ Recorded: %s", subject),
			tags:     []string{"tvrec", "recording", "completed"},
			priority: "high",
		}
	case nms.EventRecordingStopped:
		return payload{
			title:   "tvrec - Stopped",
			message: fmt.Sprintf("⏹ Stopped: %s", subject),
			tags:    []string{"tvrec", "recording", "stopped"},
		}
	case nms.EventRecordingRemoved:
		return payload{
			title:   "tvrec - Removed",
			message: fmt.Sprintf("🗑 Removed: %s", subject),
			tags:    []string{"tvrec", "recording", "removed"},
		}
	case nms.EventScanCompleted:
		return payload{
			title:   "tvrec - Scan Complete",
			message: fmt.Sprintf("📡 Scan on %s found %s", ev.Device, ev.Message),
			tags:    []string{"tvrec", "scan", "completed"},
		}
	case nms.EventUpcomingOverridden:
		return payload{
			title:   "tvrec - Override",
			message: fmt.Sprintf("Upcoming %s set to %s", subject, ev.Message),
			tags:    []string{"tvrec", "override"},
		}
	default:
		message := strings.TrimSpace(ev.Message)
		if message == "" {
			message = string(ev.Type)
		}
		return payload{
			title:   "tvrec",
			message: message,
			tags:    []string{"tvrec", string(ev.Type)},
		}
	}
}

type ntfySender struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
	logger   *slog.Logger
	inflight sync.WaitGroup
}

// Send publishes ev in the background.
func (n *ntfySender) Send(ev nms.Event) {
	n.inflight.Add(1)
	go func() {
		defer n.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.Publish(ctx, ev); err != nil {
			n.logger.Warn("notification not delivered",
				logging.Error(err),
				logging.String(logging.FieldEventType, "notification_failed"),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
				logging.String(logging.FieldImpact, "event not pushed"),
				logging.String("event", string(ev.Type)),
			)
		}
	}()
}

// Close waits for in-flight notifications.
func (n *ntfySender) Close() {
	n.inflight.Wait()
}

// Publish sends ev synchronously.
func (n *ntfySender) Publish(ctx context.Context, ev nms.Event) error {
	if n == nil || n.client == nil {
		return nil
	}
	data := format(ev)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopSender struct{}

func (noopSender) Send(nms.Event)                           {}
func (noopSender) Publish(context.Context, nms.Event) error { return nil }
func (noopSender) Close()                                   {}
