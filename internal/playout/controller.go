/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playout drives the scheduling cycle: it reconciles slot timing, the
// fitting selector, the play queue, and filler rotation, and dispatches every
// decision to the playout server.
package playout

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/skuld_tv/internal/events"
	"github.com/friendsincode/skuld_tv/internal/media"
	"github.com/friendsincode/skuld_tv/internal/schedule"
	"github.com/friendsincode/skuld_tv/internal/telemetry"
)

const (
	// paceMargin is shaved off each pacing sleep to leave room for the next
	// decision before the clip actually ends.
	paceMargin = 2 * time.Second

	// settleDelay follows every dispatched transport command.
	settleDelay = 1 * time.Second

	// fittingLookahead is how close to the slot the fitting selector runs.
	fittingLookahead = 600.0 // seconds

	starveWait      = 5 * time.Second
	missingRootWait = 30 * time.Second
	cycleBackoff    = 10 * time.Second

	// fillerRejectLimit bounds consecutive non-fitting filler picks before a
	// fill pass gives up for this cycle.
	fillerRejectLimit = 10
)

// Transport dispatches playout commands. *caspar.Client is the production
// implementation.
type Transport interface {
	PlayClip(path string) (string, error)
}

// Options wires the controller's collaborators and timing parameters.
type Options struct {
	Catalog           *media.Catalog
	Prober            schedule.DurationProber
	Clock             *schedule.SlotClock
	Selector          *schedule.FittingSelector
	Rotator           *schedule.FillerRotator
	Queue             *schedule.PlayQueue
	Transport         Transport
	Bus               *events.Bus
	Rand              *rand.Rand
	SlotVideoFallback string // played when the slot clip root is empty
	CommercialPadding time.Duration
}

// Controller runs the playout decision loop. All scheduling state is owned by
// the single goroutine inside Run; nothing here needs locking.
type Controller struct {
	catalog           *media.Catalog
	prober            schedule.DurationProber
	clock             *schedule.SlotClock
	selector          *schedule.FittingSelector
	rotator           *schedule.FillerRotator
	queue             *schedule.PlayQueue
	transport         Transport
	bus               *events.Bus
	rng               *rand.Rand
	slotVideoFallback string
	commercialPadding time.Duration
	logger            zerolog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

// NewController creates the playout controller.
func NewController(opts Options, logger zerolog.Logger) *Controller {
	return &Controller{
		catalog:           opts.Catalog,
		prober:            opts.Prober,
		clock:             opts.Clock,
		selector:          opts.Selector,
		rotator:           opts.Rotator,
		queue:             opts.Queue,
		transport:         opts.Transport,
		bus:               opts.Bus,
		rng:               opts.Rand,
		slotVideoFallback: opts.SlotVideoFallback,
		commercialPadding: opts.CommercialPadding,
		logger:            logger.With().Str("component", "playout").Logger(),
		now:               time.Now,
		sleep:             sleepCtx,
	}
}

// sleepCtx waits for d or until ctx is cancelled. Returns false on cancel so
// the loop can wind down without waiting out a clip.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Run executes scheduling cycles until ctx is cancelled. Unexpected cycle
// failures are logged and followed by a backoff; the loop never exits on its
// own.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.Info().Msg("playout controller started")

	refillStart := c.now()
	c.refill(ctx)
	if elapsed := c.now().Sub(refillStart); elapsed > 10*time.Second {
		c.logger.Warn().Dur("elapsed", elapsed).Msg("initial queue refill took unusually long")
	}

	for {
		if ctx.Err() != nil {
			c.logger.Info().Msg("playout controller stopped")
			return ctx.Err()
		}
		if err := c.runCycle(ctx); err != nil {
			telemetry.CycleErrors.Inc()
			c.logger.Error().Err(err).Msg("scheduler cycle failed")
			c.bus.Publish(events.EventCycleError, events.Payload{"error": err.Error()})
			c.sleep(ctx, cycleBackoff)
		}
	}
}

// runCycle performs one scheduling decision. Panics are converted to errors
// at this boundary so a bad cycle degrades into a backoff instead of killing
// the process.
func (c *Controller) runCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()

	ctx, span := telemetry.StartSpan(ctx, "playout.cycle")
	defer span.End()

	if !c.catalog.EpisodesRootExists() {
		telemetry.SpanAttrString(span, "branch", "missing_root")
		c.logger.Warn().Msg("episodes root missing, waiting")
		c.sleep(ctx, missingRootWait)
		return nil
	}

	secondsToSlot := c.clock.SecondsUntilNextSlot(c.now())
	telemetry.SecondsToSlot.Set(secondsToSlot)
	telemetry.SpanAttrFloat(span, "seconds_to_slot", secondsToSlot)

	if secondsToSlot <= fittingLookahead {
		maxEpisode := secondsToSlot - c.clock.SlotDuration().Seconds() - paceMargin.Seconds()
		if fitting := c.selector.SelectFitting(ctx, maxEpisode); fitting != nil {
			telemetry.SpanAttrString(span, "branch", "fitting")
			c.playFitting(ctx, fitting)
			c.maybeFireSlot(ctx)
			c.refill(ctx)
			return nil
		}
		c.logger.Info().Msg("no fitting content, draining queue")
	}

	if c.clock.SlotDue(c.now()) {
		telemetry.SpanAttrString(span, "branch", "slot")
		c.fireSlot(ctx)
		c.refill(ctx)
		return nil
	}

	telemetry.SpanAttrString(span, "branch", "queue")
	return c.playFromQueue(ctx, secondsToSlot)
}

// playFitting plays each selected clip in order, pacing by measured duration.
func (c *Controller) playFitting(ctx context.Context, clips []media.ClipRef) {
	for _, clip := range clips {
		if !fileExists(clip.Path) {
			c.skipMissing(clip)
			continue
		}
		c.logger.Info().Str("clip", clip.Label).Float64("duration", clip.Duration).Msg("playing fitting selection")
		c.dispatch(ctx, clip)
		if clip.Kind == media.KindFiller {
			c.rotator.MarkPlayed(clip.Path)
		}
		c.pace(ctx, clip.Duration)
	}
}

// playFromQueue drains one (opportunistically two) queued clips, guarding the
// slot window with filler and commercial padding.
func (c *Controller) playFromQueue(ctx context.Context, secondsToSlot float64) error {
	if c.queue.Len() == 0 {
		c.refill(ctx)
	}
	current := c.queue.Pop()
	if current == nil {
		c.logger.Warn().Msg("nothing to play, waiting briefly")
		c.sleep(ctx, starveWait)
		return nil
	}

	if !fileExists(current.Path) {
		c.skipMissing(*current)
		return nil
	}

	slotSeconds := c.clock.SlotDuration().Seconds()
	if current.Duration >= secondsToSlot-slotSeconds {
		c.logger.Info().Str("clip", current.Label).Msg("slot too close for queued clip, playing filler")
		c.fillUntilSlot(ctx, secondsToSlot-slotSeconds)
		c.maybeFireSlot(ctx)
		c.refill(ctx)
		return nil
	}

	c.logger.Info().Str("clip", current.Label).Float64("duration", current.Duration).Msg("playing from queue")
	c.dispatch(ctx, *current)
	c.pace(ctx, current.Duration)

	// Opportunistically play the next queued clip if it still fits.
	remaining := c.clock.SecondsUntilNextSlot(c.now())
	if next := c.queue.Peek(); next != nil {
		if next.Duration < remaining-slotSeconds {
			c.logger.Info().Str("clip", next.Label).Msg("playing next queued clip")
			c.queue.Pop()
			if fileExists(next.Path) {
				c.dispatch(ctx, *next)
				c.sleep(ctx, secondsDuration(next.Duration))
			} else {
				c.skipMissing(*next)
			}
			c.refill(ctx)
		} else {
			c.logger.Info().Msg("slot too close after current clip, leaving queue untouched")
		}
	}

	remaining = c.clock.SecondsUntilNextSlot(c.now())
	if remaining > slotSeconds+c.commercialPadding.Seconds() {
		c.logger.Info().Dur("padding", c.commercialPadding).Msg("playing commercial padding block")
		c.fillUntilSlot(ctx, c.commercialPadding.Seconds())
		remaining = c.clock.SecondsUntilNextSlot(c.now())
	}

	if remaining > slotSeconds {
		c.logger.Info().Float64("remaining", remaining).Msg("playing filler until slot")
		c.fillUntilSlot(ctx, remaining-slotSeconds)
		c.maybeFireSlot(ctx)
	}
	return nil
}

// fillUntilSlot plays fillers until budget seconds are consumed, the rotation
// starves, or too many consecutive picks fail the duration check.
func (c *Controller) fillUntilSlot(ctx context.Context, budget float64) {
	rejects := 0
	for budget > c.clock.SlotDuration().Seconds() && ctx.Err() == nil {
		filler := c.rotator.Next()
		if filler == nil || !fileExists(filler.Path) {
			c.logger.Warn().Msg("no valid filler found")
			return
		}
		clip := *filler
		clip.Duration, _ = c.prober.Duration(ctx, clip.Path)
		if !clip.Playable() || clip.Duration >= budget-paceMargin.Seconds() {
			rejects++
			if rejects >= fillerRejectLimit {
				c.logger.Warn().Float64("budget", budget).Msg("no filler fits remaining budget")
				return
			}
			continue
		}
		rejects = 0

		c.logger.Info().Str("clip", clip.Label).Float64("duration", clip.Duration).Msg("playing filler")
		c.dispatch(ctx, clip)
		c.rotator.MarkPlayed(clip.Path)
		if !c.sleep(ctx, secondsDuration(clip.Duration)) {
			return
		}
		budget -= clip.Duration
	}
}

// maybeFireSlot fires the slot when due. The once-per-hour guard lives in the
// slot clock.
func (c *Controller) maybeFireSlot(ctx context.Context) {
	if c.clock.SlotDue(c.now()) {
		c.fireSlot(ctx)
	}
}

// fireSlot plays a randomly chosen slot clip paced by the fixed slot duration
// and records the fired hour.
func (c *Controller) fireSlot(ctx context.Context) {
	remaining := c.clock.SecondsUntilNextSlot(c.now())
	c.logger.Info().Float64("offset", remaining).Msg("firing slot")

	clip := c.pickSlotClip()
	c.dispatch(ctx, clip)
	hour := c.clock.MarkFired(c.now())

	telemetry.SlotFires.Inc()
	c.bus.Publish(events.EventSlotFired, events.Payload{
		"clip":  clip.Label,
		"hour":  hour,
		"fired": c.now(),
	})

	c.sleep(ctx, c.clock.SlotDuration())
}

// pickSlotClip chooses a random pre-rendered slot segment, falling back to
// the reserved slot video when the slot root is empty or unreadable.
func (c *Controller) pickSlotClip() media.ClipRef {
	clips, err := c.catalog.ListSlotClips()
	if err != nil || len(clips) == 0 {
		if err != nil {
			c.logger.Error().Err(err).Msg("slot clip listing failed")
		}
		return media.ClipRef{
			Path:     media.NormalizePath(c.slotVideoFallback),
			Kind:     media.KindSlot,
			Label:    filepath.Base(c.slotVideoFallback),
			Duration: c.clock.SlotDuration().Seconds(),
		}
	}
	clip := clips[c.rng.Intn(len(clips))]
	clip.Duration = c.clock.SlotDuration().Seconds()
	return clip
}

// dispatch sends the PLAY command and publishes the now playing event. A
// transport failure is logged and counted; pacing continues regardless
// because the controller never verifies on-air success.
func (c *Controller) dispatch(ctx context.Context, clip media.ClipRef) {
	if _, err := c.transport.PlayClip(clip.Path); err != nil {
		telemetry.CasparErrors.Inc()
		c.logger.Error().Err(err).Str("clip", clip.Label).Msg("transport command failed")
	}
	telemetry.ClipsPlayed.WithLabelValues(string(clip.Kind)).Inc()
	c.bus.Publish(events.EventNowPlaying, events.Payload{
		"event_id": uuid.NewString(),
		"path":     clip.Path,
		"kind":     string(clip.Kind),
		"label":    clip.Label,
		"duration": clip.Duration,
		"started":  c.now(),
	})
	c.sleep(ctx, settleDelay)
}

// pace sleeps for the clip duration minus the decision margin.
func (c *Controller) pace(ctx context.Context, durationSeconds float64) {
	c.sleep(ctx, secondsDuration(durationSeconds)-paceMargin)
}

func (c *Controller) refill(ctx context.Context) {
	c.queue.Refill(ctx)
	telemetry.QueueDepth.Set(float64(c.queue.Len()))

	snapshot := c.queue.Snapshot()
	labels := make([]string, 0, len(snapshot))
	for _, clip := range snapshot {
		labels = append(labels, clip.Label)
	}
	c.bus.Publish(events.EventQueueRefilled, events.Payload{
		"depth": len(snapshot),
		"clips": labels,
	})
}

func (c *Controller) skipMissing(clip media.ClipRef) {
	telemetry.ClipsSkipped.Inc()
	c.logger.Warn().Str("clip", clip.Label).Msg("skipping missing file")
	c.bus.Publish(events.EventClipSkipped, events.Payload{"path": clip.Path, "label": clip.Label})
}

func fileExists(path string) bool {
	_, err := os.Stat(filepath.FromSlash(path))
	return err == nil
}

func secondsDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
