package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"tvrec/internal/config"
	"tvrec/internal/nms"
	"tvrec/internal/notifications"
)

func TestNewSenderReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	sender := notifications.NewSender(&cfg, nil)
	if err := sender.Publish(context.Background(), nms.Event{Type: nms.EventRecordingStarted}); err != nil {
		t.Fatalf("expected noop sender to return nil, got %v", err)
	}
	sender.Send(nms.Event{Type: nms.EventRecordingStarted})
	sender.Close()
}

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newServer(t *testing.T) (*httptest.Server, func() []captured) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []captured
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), reqs...)
	}
}

func TestNtfySenderFormatsEvents(t *testing.T) {
	tests := []struct {
		name           string
		event          nms.Event
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "recording started",
			event:         nms.Event{Type: nms.EventRecordingStarted, Title: "Evening News", Device: "1020FA3C-0"},
			expectTitle:   "tvrec - Recording",
			expectMessage: "🔴 Recording Evening News on 1020FA3C-0",
			expectTags:    "tvrec,recording,started",
		},
		{
			name:           "recording completed",
			event:          nms.Event{Type: nms.EventRecordingCompleted, Title: "Evening News"},
			expectTitle:    "tvrec - Recorded",
			expectMessage:  "✅ Recorded: Evening News",
			expectTags:     "tvrec,recording,completed",
			expectPriority: "high",
		},
		{
			name:          "scan completed",
			event:         nms.Event{Type: nms.EventScanCompleted, Device: "1020FA3C-1", Message: "12 channels"},
			expectTitle:   "tvrec - Scan Complete",
			expectMessage: "📡 Scan on 1020FA3C-1 found 12 channels",
			expectTags:    "tvrec,scan,completed",
		},
		{
			name:          "fallback uses message",
			event:         nms.Event{Type: nms.EventRecordersChanged, Message: "2 recorders"},
			expectTitle:   "tvrec",
			expectMessage: "2 recorders",
			expectTags:    "tvrec,recorders_changed",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, requests := newServer(t)
			cfg := config.Default()
			cfg.Notifications.NtfyTopic = srv.URL
			sender := notifications.NewSender(&cfg, nil)
			if err := sender.Publish(context.Background(), tc.event); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			got := requests()
			if len(got) != 1 {
				t.Fatalf("expected one request, got %d", len(got))
			}
			if got[0].title != tc.expectTitle || got[0].body != tc.expectMessage || got[0].tags != tc.expectTags || got[0].priority != tc.expectPriority {
				t.Fatalf("unexpected request %+v", got[0])
			}
		})
	}
}

func TestSendIsAsynchronous(t *testing.T) {
	srv, requests := newServer(t)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	sender := notifications.NewSender(&cfg, nil)
	sender.Send(nms.Event{Type: nms.EventRecordingRemoved, Title: "Movie"})
	sender.Close()
	if got := requests(); len(got) != 1 || got[0].body != "🗑 Removed: Movie" {
		t.Fatalf("unexpected requests %+v", got)
	}
}

func TestPublishReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic disabled", http.StatusForbidden)
	}))
	defer srv.Close()
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	if err := notifications.NewSender(&cfg, nil).Publish(context.Background(), nms.Event{Type: nms.EventRecordingStopped}); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
