/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string

	// Storage roots
	EpisodesRoot  string // one subdirectory per show
	FillerRoot    string // flat directory of filler clips
	SlotClipsRoot string // pre-rendered slot segments (.ts)
	SlotVideoFile string // reserved slot filename, excluded from episode/filler listings

	// Slot timing
	SlotMinute        int           // minute-of-hour the slot must air at
	SlotDuration      time.Duration // fixed pacing for a slot segment
	CommercialPadding time.Duration // opportunistic padding block length

	// Queue behaviour
	QueueMaxSize    int
	EpisodesPerShow int // episodes pulled from a show before rotating to the next

	// CasparCG server
	CasparHost      string
	CasparPort      int
	CasparChannel   int
	CasparLayer     int
	CaptionLayer    int
	CaptionTemplate string
	AudioChannels   int    // 0 means omit --audioChannels
	AudioMap        string // empty means omit --audioMap

	// Status/metrics HTTP surface
	HTTPBind string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("SKULD_ENV", "development"),

		EpisodesRoot:  getEnv("SKULD_EPISODES_ROOT", "./episodes"),
		FillerRoot:    getEnv("SKULD_FILLER_ROOT", "./filler"),
		SlotClipsRoot: getEnv("SKULD_SLOT_CLIPS_ROOT", "./slot_clips_ts"),
		SlotVideoFile: getEnv("SKULD_SLOT_VIDEO_FILE", "slot_clip.ts"),

		SlotMinute:        getEnvInt("SKULD_SLOT_MINUTE", 18),
		SlotDuration:      time.Duration(getEnvInt("SKULD_SLOT_DURATION_SECONDS", 65)) * time.Second,
		CommercialPadding: time.Duration(getEnvInt("SKULD_COMMERCIAL_PADDING_SECONDS", 120)) * time.Second,

		QueueMaxSize:    getEnvInt("SKULD_QUEUE_MAX_SIZE", 5),
		EpisodesPerShow: getEnvInt("SKULD_EPISODES_PER_SHOW", 1),

		CasparHost:      getEnv("SKULD_CASPAR_HOST", "localhost"),
		CasparPort:      getEnvInt("SKULD_CASPAR_PORT", 5250),
		CasparChannel:   getEnvInt("SKULD_CASPAR_CHANNEL", 1),
		CasparLayer:     getEnvInt("SKULD_CASPAR_LAYER", 10),
		CaptionLayer:    getEnvInt("SKULD_CAPTION_LAYER", 20),
		CaptionTemplate: getEnv("SKULD_CAPTION_TEMPLATE", "timestamp_template"),
		AudioChannels:   getEnvInt("SKULD_AUDIO_CHANNELS", 0),
		AudioMap:        getEnv("SKULD_AUDIO_MAP", ""),

		HTTPBind: getEnv("SKULD_HTTP_BIND", "127.0.0.1:9350"),

		TracingEnabled:    getEnvBool("SKULD_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("SKULD_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("SKULD_TRACING_SAMPLE_RATE", 1.0),
	}

	if cfg.SlotMinute < 0 || cfg.SlotMinute > 59 {
		return nil, fmt.Errorf("SKULD_SLOT_MINUTE must be 0-59, got %d", cfg.SlotMinute)
	}
	if cfg.SlotDuration <= 0 {
		return nil, fmt.Errorf("SKULD_SLOT_DURATION_SECONDS must be positive")
	}
	if cfg.QueueMaxSize <= 0 {
		return nil, fmt.Errorf("SKULD_QUEUE_MAX_SIZE must be positive, got %d", cfg.QueueMaxSize)
	}
	if cfg.EpisodesPerShow <= 0 {
		return nil, fmt.Errorf("SKULD_EPISODES_PER_SHOW must be positive, got %d", cfg.EpisodesPerShow)
	}
	if cfg.CasparPort <= 0 || cfg.CasparPort > 65535 {
		return nil, fmt.Errorf("SKULD_CASPAR_PORT out of range: %d", cfg.CasparPort)
	}
	if cfg.EpisodesRoot == "" || cfg.FillerRoot == "" || cfg.SlotClipsRoot == "" {
		return nil, fmt.Errorf("storage roots must not be empty")
	}

	return cfg, nil
}

// CasparAddr returns the host:port of the playout server.
func (c *Config) CasparAddr() string {
	return fmt.Sprintf("%s:%d", c.CasparHost, c.CasparPort)
}

// SlotVideoPath is the reserved slot clip played when the slot root is empty.
func (c *Config) SlotVideoPath() string {
	return filepath.Join(c.SlotClipsRoot, c.SlotVideoFile)
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "true" || v == "1" || v == "yes" {
			return true
		}
		if v == "false" || v == "0" || v == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}
