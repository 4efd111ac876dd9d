/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"context"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/friendsincode/skuld_tv/internal/media"
)

// DurationProber supplies memoized clip durations. *media.Prober is the
// production implementation.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// FittingSelector picks episodic content whose duration best matches a
// remaining time budget, falling back to a filler block when nothing fits.
type FittingSelector struct {
	catalog *media.Catalog
	prober  DurationProber
	rotator *FillerRotator
	rng     *rand.Rand
	logger  zerolog.Logger
}

// NewFittingSelector creates a fitting selector.
func NewFittingSelector(catalog *media.Catalog, prober DurationProber, rotator *FillerRotator, rng *rand.Rand, logger zerolog.Logger) *FittingSelector {
	return &FittingSelector{
		catalog: catalog,
		prober:  prober,
		rotator: rotator,
		rng:     rng,
		logger:  logger.With().Str("component", "fitting").Logger(),
	}
}

// SelectFitting returns an ordered sequence of clips consuming as much of
// maxSeconds as possible without exceeding it. A qualifying pair is always
// preferred over a single episode, even when the pair's leftover gap is
// larger; this asymmetry is deliberate, observable behavior. With no single
// and no pair, one filler clip is returned as a fallback block. Returns nil
// when nothing at all is available.
func (s *FittingSelector) SelectFitting(ctx context.Context, maxSeconds float64) []media.ClipRef {
	shows, err := s.catalog.ListShows()
	if err != nil {
		s.logger.Warn().Err(err).Msg("show listing failed")
	}
	s.rng.Shuffle(len(shows), func(i, j int) { shows[i], shows[j] = shows[j], shows[i] })

	bestSingle := s.bestSingle(ctx, shows, maxSeconds)
	bestPair := s.bestPair(ctx, shows, maxSeconds)

	if len(bestPair) > 0 {
		return bestPair
	}
	if len(bestSingle) > 0 {
		return bestSingle
	}

	filler := s.rotator.Next()
	if filler == nil {
		s.logger.Warn().Msg("no fallback filler available")
		return nil
	}
	duration, _ := s.prober.Duration(ctx, filler.Path)
	return []media.ClipRef{{
		Path:     filler.Path,
		Kind:     media.KindFiller,
		Label:    "FALLBACK - " + filler.Label,
		Duration: duration,
	}}
}

// bestSingle tracks the single episode with the smallest gap below the
// budget. Later candidates win only when strictly better, so randomized
// traversal breaks ties non-deterministically.
func (s *FittingSelector) bestSingle(ctx context.Context, shows []media.Show, maxSeconds float64) []media.ClipRef {
	var best []media.ClipRef
	smallestGap := maxSeconds

	for _, show := range shows {
		episodes, err := s.catalog.ListEpisodes(show)
		if err != nil {
			continue
		}
		s.rng.Shuffle(len(episodes), func(i, j int) { episodes[i], episodes[j] = episodes[j], episodes[i] })

		for _, ep := range episodes {
			ep.Duration, _ = s.prober.Duration(ctx, ep.Path)
			if !ep.Playable() || ep.Duration > maxSeconds {
				continue
			}
			gap := maxSeconds - ep.Duration
			if gap < smallestGap {
				best = []media.ClipRef{ep}
				smallestGap = gap
			}
		}
	}
	return best
}

// bestPair evaluates every unordered pair of episodes across all shows.
// Quadratic in episode count; catalogs are tens to low hundreds of clips.
func (s *FittingSelector) bestPair(ctx context.Context, shows []media.Show, maxSeconds float64) []media.ClipRef {
	var all []media.ClipRef
	for _, show := range shows {
		episodes, err := s.catalog.ListEpisodes(show)
		if err != nil {
			continue
		}
		all = append(all, episodes...)
	}
	s.rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })

	var best []media.ClipRef
	smallestGap := maxSeconds

	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			d1, _ := s.prober.Duration(ctx, all[i].Path)
			d2, _ := s.prober.Duration(ctx, all[j].Path)
			total := d1 + d2
			if total <= 2 || total > maxSeconds {
				continue
			}
			gap := maxSeconds - total
			if gap < smallestGap {
				first, second := all[i], all[j]
				first.Duration = d1
				second.Duration = d2
				best = []media.ClipRef{first, second}
				smallestGap = gap
			}
		}
	}
	return best
}
