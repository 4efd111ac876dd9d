/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/skuld_tv/internal/events"
	"github.com/friendsincode/skuld_tv/internal/media"
	"github.com/friendsincode/skuld_tv/internal/schedule"
)

type fakeTransport struct {
	played []string
	err    error
}

func (f *fakeTransport) PlayClip(path string) (string, error) {
	f.played = append(f.played, path)
	return "202 PLAY OK", f.err
}

type stubProber struct {
	durations map[string]float64
}

func (s *stubProber) Duration(_ context.Context, path string) (float64, error) {
	return s.durations[filepath.Base(path)], nil
}

type harness struct {
	ctrl      *Controller
	transport *fakeTransport
	prober    *stubProber
	clock     *schedule.SlotClock
	queue     *schedule.PlayQueue
	root      string
	sleeps    []time.Duration
}

func newHarness(t *testing.T, now time.Time) *harness {
	t.Helper()
	root := t.TempDir()
	logger := zerolog.Nop()
	rng := rand.New(rand.NewSource(7))

	catalog := media.NewCatalog(
		filepath.Join(root, "episodes"),
		filepath.Join(root, "filler"),
		filepath.Join(root, "slot_clips_ts"),
		"slot_clip.ts",
		logger,
	)
	prober := &stubProber{durations: map[string]float64{}}
	clock := schedule.NewSlotClock(18, 65*time.Second)
	rotator := schedule.NewFillerRotator(catalog, rng, logger)
	selector := schedule.NewFittingSelector(catalog, prober, rotator, rng, logger)
	queue := schedule.NewPlayQueue(catalog, prober, rng, 1, 1, logger)
	transport := &fakeTransport{}

	ctrl := NewController(Options{
		Catalog:           catalog,
		Prober:            prober,
		Clock:             clock,
		Selector:          selector,
		Rotator:           rotator,
		Queue:             queue,
		Transport:         transport,
		Bus:               events.NewBus(),
		Rand:              rng,
		SlotVideoFallback: filepath.Join(root, "slot_clips_ts", "slot_clip.ts"),
		CommercialPadding: 120 * time.Second,
	}, logger)

	h := &harness{ctrl: ctrl, transport: transport, prober: prober, clock: clock, queue: queue, root: root}
	ctrl.now = func() time.Time { return now }
	ctrl.sleep = func(_ context.Context, d time.Duration) bool {
		h.sleeps = append(h.sleeps, d)
		return true
	}
	return h
}

func (h *harness) addFile(t *testing.T, rel string, duration float64) string {
	t.Helper()
	path := filepath.Join(h.root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	h.prober.durations[filepath.Base(path)] = duration
	return path
}

func (h *harness) maxSleep() time.Duration {
	var max time.Duration
	for _, d := range h.sleeps {
		if d > max {
			max = d
		}
	}
	return max
}

func TestCycleWaitsWhenEpisodesRootMissing(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 30, 0, 0, time.UTC)
	h := newHarness(t, now)

	if err := h.ctrl.runCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(h.transport.played) != 0 {
		t.Fatalf("nothing should play without an episodes root, got %v", h.transport.played)
	}
	if h.maxSleep() != missingRootWait {
		t.Fatalf("expected %s wait, sleeps were %v", missingRootWait, h.sleeps)
	}
}

func TestQueueBranchPlaysAndPaces(t *testing.T) {
	// 12:30 is far from the 18-minute slot, so fitting is skipped and the
	// queued episode plays paced by its duration.
	now := time.Date(2026, 3, 9, 12, 30, 0, 0, time.UTC)
	h := newHarness(t, now)
	h.addFile(t, "episodes/cosmos/ep1.mp4", 100)

	h.queue.Refill(context.Background())
	if h.queue.Len() != 1 {
		t.Fatalf("expected 1 queued clip, got %d", h.queue.Len())
	}

	if err := h.ctrl.runCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(h.transport.played) != 1 {
		t.Fatalf("expected 1 play, got %v", h.transport.played)
	}

	// Pacing sleep is duration minus the decision margin.
	if h.maxSleep() != 98*time.Second {
		t.Fatalf("expected 98s pacing sleep, sleeps were %v", h.sleeps)
	}
}

func TestQueueBranchSkipsMissingFileWithoutSleeping(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 30, 0, 0, time.UTC)
	h := newHarness(t, now)
	path := h.addFile(t, "episodes/cosmos/ep1.mp4", 100)

	h.queue.Refill(context.Background())
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if err := h.ctrl.runCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(h.transport.played) != 0 {
		t.Fatalf("missing file must not play, got %v", h.transport.played)
	}
	if h.queue.Len() != 0 {
		t.Fatalf("missing clip should have been consumed, queue len %d", h.queue.Len())
	}
	if h.maxSleep() >= starveWait {
		t.Fatalf("skip must not incur a pacing sleep, sleeps were %v", h.sleeps)
	}
}

func TestFittingBranchNearSlot(t *testing.T) {
	// 12:10 is 480s from the slot, inside the fitting lookahead. The 300s
	// episode fits the 413s budget and plays immediately.
	now := time.Date(2026, 3, 9, 12, 10, 0, 0, time.UTC)
	h := newHarness(t, now)
	h.addFile(t, "episodes/cosmos/ep1.mp4", 300)

	if err := h.ctrl.runCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(h.transport.played) != 1 {
		t.Fatalf("expected fitting play, got %v", h.transport.played)
	}
}

func TestSlotFiresOnceWithinTolerance(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 17, 30, 0, time.UTC)
	h := newHarness(t, now)
	h.addFile(t, "slot_clips_ts/promo1.ts", 0)

	h.ctrl.maybeFireSlot(context.Background())
	if len(h.transport.played) != 1 {
		t.Fatalf("expected slot play, got %v", h.transport.played)
	}
	if h.clock.LastFiredHour() != 12 {
		t.Fatalf("expected last-fired hour 12, got %d", h.clock.LastFiredHour())
	}

	// A second check in the same hour must not fire again.
	h.ctrl.maybeFireSlot(context.Background())
	if len(h.transport.played) != 1 {
		t.Fatalf("slot fired twice in one hour: %v", h.transport.played)
	}
}

func TestSlotFallsBackToReservedVideo(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 17, 30, 0, time.UTC)
	h := newHarness(t, now)
	// No slot clips root at all; the fallback video path is used.

	h.ctrl.fireSlot(context.Background())
	if len(h.transport.played) != 1 {
		t.Fatalf("expected fallback slot play, got %v", h.transport.played)
	}
	if filepath.Base(h.transport.played[0]) != "slot_clip.ts" {
		t.Fatalf("expected reserved slot video, got %s", h.transport.played[0])
	}
}

func TestFillUntilSlotConsumesBudget(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 30, 0, 0, time.UTC)
	h := newHarness(t, now)
	h.addFile(t, "filler/a.mp4", 30)
	h.addFile(t, "filler/b.mp4", 30)
	h.addFile(t, "filler/c.mp4", 30)

	h.ctrl.fillUntilSlot(context.Background(), 200)

	// Budget 200 with 30s fillers: plays until remaining <= 65, i.e. at
	// least 4 and at most 5 fillers.
	if n := len(h.transport.played); n < 4 || n > 5 {
		t.Fatalf("unexpected filler count %d: %v", n, h.transport.played)
	}
}

func TestRunCycleRecoversFromTransportFailure(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 30, 0, 0, time.UTC)
	h := newHarness(t, now)
	h.addFile(t, "episodes/cosmos/ep1.mp4", 100)
	h.transport.err = os.ErrDeadlineExceeded

	h.queue.Refill(context.Background())
	if err := h.ctrl.runCycle(context.Background()); err != nil {
		t.Fatalf("a transport failure must not fail the cycle: %v", err)
	}
	if len(h.transport.played) != 1 {
		t.Fatalf("dispatch should still have been attempted, got %v", h.transport.played)
	}
}
