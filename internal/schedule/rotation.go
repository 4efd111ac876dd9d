/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/friendsincode/skuld_tv/internal/media"
)

// recentWindowSize bounds how many recently played filler paths are excluded
// from selection.
const recentWindowSize = 5

// FillerRotator picks filler clips while avoiding recent repeats.
type FillerRotator struct {
	catalog *media.Catalog
	rng     *rand.Rand
	logger  zerolog.Logger

	recent []string // oldest first, len <= recentWindowSize
}

// NewFillerRotator creates a filler rotator over the catalog.
func NewFillerRotator(catalog *media.Catalog, rng *rand.Rand, logger zerolog.Logger) *FillerRotator {
	return &FillerRotator{
		catalog: catalog,
		rng:     rng,
		logger:  logger.With().Str("component", "filler").Logger(),
	}
}

// Next selects a filler uniformly at random among candidates not in the
// recent window. When every filler is recent, the window is cleared wholesale
// and selection runs against the full catalog again. Returns nil when the
// filler catalog is empty or unreadable.
func (f *FillerRotator) Next() *media.ClipRef {
	fillers, err := f.catalog.ListFillers()
	if err != nil {
		f.logger.Warn().Err(err).Msg("filler listing failed")
		return nil
	}
	if len(fillers) == 0 {
		return nil
	}

	candidates := f.excludeRecent(fillers)
	if len(candidates) == 0 {
		// Rotation exhausted: reset and allow any filler to repeat.
		f.recent = f.recent[:0]
		candidates = fillers
	}

	pick := candidates[f.rng.Intn(len(candidates))]
	return &pick
}

// MarkPlayed appends path to the recent window, evicting the oldest entry on
// overflow. Callers invoke this after playback begins, not before.
func (f *FillerRotator) MarkPlayed(path string) {
	f.recent = append(f.recent, path)
	if len(f.recent) > recentWindowSize {
		f.recent = f.recent[1:]
	}
}

// RecentCount returns how many paths the window currently holds.
func (f *FillerRotator) RecentCount() int {
	return len(f.recent)
}

func (f *FillerRotator) excludeRecent(fillers []media.ClipRef) []media.ClipRef {
	recent := make(map[string]struct{}, len(f.recent))
	for _, p := range f.recent {
		recent[p] = struct{}{}
	}

	var out []media.ClipRef
	for _, clip := range fillers {
		if _, ok := recent[clip.Path]; !ok {
			out = append(out, clip)
		}
	}
	return out
}
