/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package schedule holds the scheduling decision engine: slot timing, the
// fitting selector, filler rotation, and the bounded play queue.
package schedule

import (
	"time"
)

// slotTolerance is the window around the slot minute inside which the slot
// may fire, slightly early or slightly late.
const slotTolerance = 60 * time.Second

// HourUnset marks that the slot has not fired yet in this process.
const HourUnset = -1

// SlotClock computes time remaining until the next mandatory slot trigger and
// tracks the hour it last fired in.
type SlotClock struct {
	slotMinute   int
	slotDuration time.Duration
	lastFired    int // hour 0-23, or HourUnset
}

// NewSlotClock creates a slot clock for the configured minute-of-hour.
func NewSlotClock(slotMinute int, slotDuration time.Duration) *SlotClock {
	return &SlotClock{
		slotMinute:   slotMinute,
		slotDuration: slotDuration,
		lastFired:    HourUnset,
	}
}

// SecondsUntilNextSlot returns seconds until the next wall-clock instant whose
// minute equals the slot minute with second zero. Past that minute in the
// current hour, the target rolls to the next hour. The result is clamped to
// [0, 3600); a sub-second overshoot at the slot instant clamps to 0, anything
// further negative falls back to the slot duration.
func (s *SlotClock) SecondsUntilNextSlot(now time.Time) float64 {
	target := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), s.slotMinute, 0, 0, now.Location())
	if now.Minute() > s.slotMinute || (now.Minute() == s.slotMinute && now.Second() > 0) {
		target = target.Add(time.Hour)
	}

	remaining := target.Sub(now).Seconds()
	if remaining < 0 {
		if remaining > -1 {
			// Nanosecond residue at xx:slotMinute:00 exactly.
			return 0
		}
		// Safe fallback, never negative and never unbounded.
		return s.slotDuration.Seconds()
	}
	return remaining
}

// SlotDue reports whether the slot should fire now: not yet fired this hour
// and within the tolerance window of the slot minute.
func (s *SlotClock) SlotDue(now time.Time) bool {
	if now.Hour() == s.lastFired {
		return false
	}
	remaining := s.SecondsUntilNextSlot(now)
	return remaining <= slotTolerance.Seconds()
}

// MarkFired records now's hour as the last-fired hour and returns it.
func (s *SlotClock) MarkFired(now time.Time) int {
	s.lastFired = now.Hour()
	return s.lastFired
}

// LastFiredHour returns the hour the slot last fired in, or HourUnset.
func (s *SlotClock) LastFiredHour() int {
	return s.lastFired
}

// SlotDuration returns the fixed pacing duration for a slot segment.
func (s *SlotClock) SlotDuration() time.Duration {
	return s.slotDuration
}
