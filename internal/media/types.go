/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package media provides the live filesystem view of playable content and
// ffprobe duration measurement.
package media

// ClipKind classifies a playable unit.
type ClipKind string

const (
	KindEpisode ClipKind = "EPISODE"
	KindFiller  ClipKind = "FILLER"
	KindSlot    ClipKind = "SLOT"
)

// ClipRef identifies a playable unit. Immutable once constructed; a duration
// of 0 means unplayable or unknown.
type ClipRef struct {
	Path     string
	Kind     ClipKind
	Label    string
	Duration float64 // seconds, probed lazily
}

// Playable reports whether the clip's probed duration allows scheduling.
// Durations at or below one second are treated as unplayable.
func (c ClipRef) Playable() bool {
	return c.Duration > 1
}

// Show is a directory grouping episode clips, identified by folder name.
type Show struct {
	Name string
	Path string
}
