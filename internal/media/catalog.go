/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Catalog enumerates shows, episodes, fillers, and slot clips from storage.
// Every listing re-reads the filesystem; nothing is cached.
type Catalog struct {
	episodesRoot  string
	fillerRoot    string
	slotClipsRoot string
	slotVideoFile string
	logger        zerolog.Logger
}

// NewCatalog creates a catalog over the three storage roots.
func NewCatalog(episodesRoot, fillerRoot, slotClipsRoot, slotVideoFile string, logger zerolog.Logger) *Catalog {
	return &Catalog{
		episodesRoot:  episodesRoot,
		fillerRoot:    fillerRoot,
		slotClipsRoot: slotClipsRoot,
		slotVideoFile: slotVideoFile,
		logger:        logger.With().Str("component", "catalog").Logger(),
	}
}

// EpisodesRootExists reports whether the episodes root is present on storage.
func (c *Catalog) EpisodesRootExists() bool {
	info, err := os.Stat(c.episodesRoot)
	return err == nil && info.IsDir()
}

// ListShows returns one Show per subdirectory of the episodes root.
func (c *Catalog) ListShows() ([]Show, error) {
	entries, err := os.ReadDir(c.episodesRoot)
	if err != nil {
		return nil, fmt.Errorf("list shows: %w", err)
	}

	var shows []Show
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		shows = append(shows, Show{
			Name: entry.Name(),
			Path: filepath.Join(c.episodesRoot, entry.Name()),
		})
	}
	return shows, nil
}

// ListEpisodes returns episode candidates inside a show directory. Durations
// are not probed here; callers consult the prober when they need one.
func (c *Catalog) ListEpisodes(show Show) ([]ClipRef, error) {
	return c.listClips(show.Path, KindEpisode, show.Name)
}

// ListFillers returns filler candidates from the filler root.
func (c *Catalog) ListFillers() ([]ClipRef, error) {
	return c.listClips(c.fillerRoot, KindFiller, "")
}

// ListSlotClips returns pre-rendered slot segments, sorted by filename.
func (c *Catalog) ListSlotClips() ([]ClipRef, error) {
	entries, err := os.ReadDir(c.slotClipsRoot)
	if err != nil {
		return nil, fmt.Errorf("list slot clips: %w", err)
	}

	var clips []ClipRef
	for _, entry := range entries {
		if entry.IsDir() || strings.ToLower(filepath.Ext(entry.Name())) != ".ts" {
			continue
		}
		clips = append(clips, ClipRef{
			Path:  NormalizePath(filepath.Join(c.slotClipsRoot, entry.Name())),
			Kind:  KindSlot,
			Label: entry.Name(),
		})
	}
	sort.Slice(clips, func(i, j int) bool { return clips[i].Label < clips[j].Label })
	return clips, nil
}

func (c *Catalog) listClips(dir string, kind ClipKind, showName string) ([]ClipRef, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var clips []ClipRef
	for _, entry := range entries {
		if entry.IsDir() || !IsMediaFile(entry.Name()) {
			continue
		}
		if entry.Name() == c.slotVideoFile {
			continue
		}
		label := entry.Name()
		if showName != "" {
			label = showName + " - " + entry.Name()
		}
		clips = append(clips, ClipRef{
			Path:  NormalizePath(filepath.Join(dir, entry.Name())),
			Kind:  kind,
			Label: label,
		})
	}
	return clips, nil
}

// IsMediaFile reports whether name carries an allowed media extension.
func IsMediaFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4", ".mkv", ".mov", ".ts", ".avi":
		return true
	default:
		return false
	}
}

// NormalizePath resolves path to an absolute, forward-slash form suitable for
// the playout server. A path that cannot be resolved is returned slash-fixed.
func NormalizePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(abs)
}
