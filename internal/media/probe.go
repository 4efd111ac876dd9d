/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/skuld_tv/internal/telemetry"
)

const probeTimeout = 5 * time.Second

// Prober measures clip durations with ffprobe and memoizes the result for the
// process lifetime. A failed probe is cached as 0 and never retried, which
// marks the clip unplayable until restart. Not safe for concurrent use; the
// control loop is the sole caller.
type Prober struct {
	ffprobeBin string
	cache      map[string]float64
	logger     zerolog.Logger
}

// NewProber creates a duration prober.
func NewProber(logger zerolog.Logger) *Prober {
	return &Prober{
		ffprobeBin: "ffprobe",
		cache:      make(map[string]float64),
		logger:     logger.With().Str("component", "probe").Logger(),
	}
}

// Duration returns the probed duration in seconds for path. The cache is
// consulted first; cached values, including the degraded 0 after a failure,
// are returned without a second external invocation. The returned error is
// non-nil only on the invocation that failed.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	if cached, ok := p.cache[path]; ok {
		return cached, nil
	}

	duration, err := p.invoke(ctx, path)
	if err != nil {
		telemetry.ProbeFailures.Inc()
		p.logger.Error().Err(err).Str("path", path).Msg("duration probe failed")
		p.cache[path] = 0
		return 0, err
	}

	p.cache[path] = duration
	return duration, nil
}

// Cached reports whether path already has a memoized duration.
func (p *Prober) Cached(path string) bool {
	_, ok := p.cache[path]
	return ok
}

func (p *Prober) invoke(ctx context.Context, path string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.ffprobeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %q: %w", path, err)
	}

	return ParseDuration(output)
}

// ParseDuration extracts the container duration from ffprobe JSON output.
// Exported for testing without a real ffprobe binary.
func ParseDuration(output []byte) (float64, error) {
	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &probe); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if probe.Format.Duration == "" {
		return 0, fmt.Errorf("ffprobe output missing format.duration")
	}

	secs, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", probe.Format.Duration, err)
	}
	return secs, nil
}
