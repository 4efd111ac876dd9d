/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/skuld_tv/internal/events"
	"github.com/friendsincode/skuld_tv/internal/logbuffer"
)

func newTestServer(t *testing.T) (*Server, *events.Bus, *logbuffer.Buffer) {
	t.Helper()
	bus := events.NewBus()
	buf := logbuffer.New(100)
	srv := New(bus, buf, zerolog.Nop())
	return srv, bus, buf
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %q", body["status"])
	}
}

func TestStatusReflectsBusEvents(t *testing.T) {
	srv, bus, _ := newTestServer(t)

	bus.Publish(events.EventNowPlaying, events.Payload{
		"label": "archer - s01e01.mp4",
		"kind":  "EPISODE",
	})
	bus.Publish(events.EventQueueRefilled, events.Payload{
		"depth": 3,
		"clips": []string{"a", "b", "c"},
	})

	waitFor(t, func() bool {
		srv.mu.RLock()
		defer srv.mu.RUnlock()
		return srv.status.NowPlaying != nil && srv.status.QueueDepth == 3
	})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var status Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if status.NowPlaying["label"] != "archer - s01e01.mp4" {
		t.Fatalf("unexpected now playing: %v", status.NowPlaying)
	}
	if status.QueueDepth != 3 || len(status.Queue) != 3 {
		t.Fatalf("unexpected queue state: depth=%d queue=%v", status.QueueDepth, status.Queue)
	}
}

func TestStatusTracksSkippedAndErrors(t *testing.T) {
	srv, bus, _ := newTestServer(t)

	bus.Publish(events.EventClipSkipped, events.Payload{"path": "/media/gone.mp4"})
	bus.Publish(events.EventClipSkipped, events.Payload{"path": "/media/gone2.mp4"})
	bus.Publish(events.EventCycleError, events.Payload{"error": "caspar unreachable"})

	waitFor(t, func() bool {
		srv.mu.RLock()
		defer srv.mu.RUnlock()
		return srv.status.SkippedClips == 2 && srv.status.LastError != ""
	})

	srv.mu.RLock()
	defer srv.mu.RUnlock()
	if srv.status.LastError != "caspar unreachable" {
		t.Fatalf("unexpected last error: %q", srv.status.LastError)
	}
}

func TestLogsEndpoint(t *testing.T) {
	srv, _, buf := newTestServer(t)

	buf.Add(logbuffer.Entry{Timestamp: time.Now(), Level: "info", Message: "queue refilled"})
	buf.Add(logbuffer.Entry{Timestamp: time.Now(), Level: "error", Message: "probe failed"})

	req := httptest.NewRequest(http.MethodGet, "/api/logs?level=error", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Entries []logbuffer.Entry `json:"entries"`
		Count   int               `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Count != 1 || body.Entries[0].Message != "probe failed" {
		t.Fatalf("unexpected filtered logs: %+v", body)
	}
}

func TestLogsLimit(t *testing.T) {
	srv, _, buf := newTestServer(t)
	for i := 0; i < 20; i++ {
		buf.Add(logbuffer.Entry{Timestamp: time.Now(), Level: "info", Message: "line"})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/logs?limit=5", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Count != 5 {
		t.Fatalf("expected 5 entries, got %d", body.Count)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
