/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/friendsincode/skuld_tv/internal/media"
)

// PlayQueue is a bounded FIFO lookahead of upcoming clips, refilled
// round-robin across shows.
type PlayQueue struct {
	catalog         *media.Catalog
	prober          DurationProber
	rng             *rand.Rand
	logger          zerolog.Logger
	maxSize         int
	episodesPerShow int

	items     []media.ClipRef
	showIndex int // rotating cursor into the live show listing
	pulled    int // episodes pulled from the current show
}

// NewPlayQueue creates a play queue with the configured bound.
func NewPlayQueue(catalog *media.Catalog, prober DurationProber, rng *rand.Rand, maxSize, episodesPerShow int, logger zerolog.Logger) *PlayQueue {
	return &PlayQueue{
		catalog:         catalog,
		prober:          prober,
		rng:             rng,
		logger:          logger.With().Str("component", "queue").Logger(),
		maxSize:         maxSize,
		episodesPerShow: episodesPerShow,
	}
}

// Refill appends candidate episodes until the queue reaches its bound or the
// catalog stops yielding candidates. Best effort: an empty catalog leaves the
// queue short without error.
func (q *PlayQueue) Refill(ctx context.Context) {
	for len(q.items) < q.maxSize {
		clip := q.nextEpisode(ctx)
		if clip == nil {
			return
		}
		q.items = append(q.items, *clip)
	}
}

// Pop removes and returns the front entry, or nil if empty.
func (q *PlayQueue) Pop() *media.ClipRef {
	if len(q.items) == 0 {
		return nil
	}
	front := q.items[0]
	q.items = q.items[1:]
	return &front
}

// Peek returns the front entry without removal, or nil if empty.
func (q *PlayQueue) Peek() *media.ClipRef {
	if len(q.items) == 0 {
		return nil
	}
	front := q.items[0]
	return &front
}

// Len returns the current queue length.
func (q *PlayQueue) Len() int {
	return len(q.items)
}

// Snapshot returns a copy of the queued entries, front first.
func (q *PlayQueue) Snapshot() []media.ClipRef {
	return append([]media.ClipRef(nil), q.items...)
}

// nextEpisode picks one episode via round-robin across shows: a random
// episode from the current show, rotating to the next show after
// episodesPerShow pulls, skipping shows with no eligible episodes. Returns
// nil once every show has been tried without a playable candidate.
func (q *PlayQueue) nextEpisode(ctx context.Context) *media.ClipRef {
	shows, err := q.catalog.ListShows()
	if err != nil || len(shows) == 0 {
		if err != nil {
			q.logger.Warn().Err(err).Msg("show listing failed during refill")
		}
		return nil
	}

	for tried := 0; tried < len(shows); {
		if q.showIndex >= len(shows) {
			q.showIndex = 0
		}
		show := shows[q.showIndex]

		episodes, err := q.catalog.ListEpisodes(show)
		if err != nil || len(episodes) == 0 {
			q.rotate(len(shows))
			tried++
			continue
		}

		clip := episodes[q.rng.Intn(len(episodes))]
		q.pulled++
		if q.pulled >= q.episodesPerShow {
			q.rotate(len(shows))
		}

		if _, statErr := os.Stat(filepath.FromSlash(clip.Path)); statErr != nil {
			tried++
			continue
		}
		clip.Duration, _ = q.prober.Duration(ctx, clip.Path)
		if !clip.Playable() {
			tried++
			continue
		}

		return &clip
	}
	return nil
}

func (q *PlayQueue) rotate(showCount int) {
	q.showIndex = (q.showIndex + 1) % showCount
	q.pulled = 0
}
