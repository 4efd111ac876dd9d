/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/skuld_tv/internal/caspar"
	"github.com/friendsincode/skuld_tv/internal/config"
	"github.com/friendsincode/skuld_tv/internal/events"
	"github.com/friendsincode/skuld_tv/internal/logbuffer"
	"github.com/friendsincode/skuld_tv/internal/logging"
	"github.com/friendsincode/skuld_tv/internal/media"
	"github.com/friendsincode/skuld_tv/internal/playout"
	"github.com/friendsincode/skuld_tv/internal/schedule"
	"github.com/friendsincode/skuld_tv/internal/server"
	"github.com/friendsincode/skuld_tv/internal/telemetry"
	"github.com/friendsincode/skuld_tv/internal/version"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "skuldtv",
	Short: "Skuld TV - Continuous playout scheduler for CasparCG",
	Long:  "Skuld TV drives a 24/7 broadcast channel: it rotates episodes across shows, packs filler around a fixed hourly slot, and dispatches playout commands to a CasparCG server.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the playout scheduler",
	Long:  "Start the control loop and the status HTTP server",
	RunE:  runServe,
}

var probeCmd = &cobra.Command{
	Use:   "probe <file>...",
	Short: "Probe media durations with ffprobe",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runProbe,
}

var captionCmd = &cobra.Command{
	Use:   "caption <text>",
	Short: "Push a caption overlay to the configured CasparCG server",
	Args:  cobra.ExactArgs(1),
	RunE:  runCaption,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(captionCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(logWriter *logbuffer.Writer) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if logWriter != nil {
		logger = logging.SetupWithWriter(cfg.Environment, logWriter)
	} else {
		logger = logging.Setup(cfg.Environment)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	logBuffer := logbuffer.New(2000)
	if err := loadConfig(logbuffer.NewWriter(logBuffer, nil)); err != nil {
		return err
	}

	logger.Info().Str("version", version.Version).Msg("Skuld TV starting")

	tracerProvider, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "skuld-tv",
		ServiceVersion: version.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	bus := events.NewBus()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	catalog := media.NewCatalog(cfg.EpisodesRoot, cfg.FillerRoot, cfg.SlotClipsRoot, cfg.SlotVideoFile, logger)
	prober := media.NewProber(logger)
	clock := schedule.NewSlotClock(cfg.SlotMinute, cfg.SlotDuration)
	rotator := schedule.NewFillerRotator(catalog, rng, logger)
	selector := schedule.NewFittingSelector(catalog, prober, rotator, rng, logger)
	queue := schedule.NewPlayQueue(catalog, prober, rng, cfg.QueueMaxSize, cfg.EpisodesPerShow, logger)

	transport := caspar.NewClient(caspar.Options{
		Addr:            cfg.CasparAddr(),
		Channel:         cfg.CasparChannel,
		Layer:           cfg.CasparLayer,
		CaptionLayer:    cfg.CaptionLayer,
		CaptionTemplate: cfg.CaptionTemplate,
		AudioChannels:   cfg.AudioChannels,
		AudioMap:        cfg.AudioMap,
	}, logger)

	controller := playout.NewController(playout.Options{
		Catalog:           catalog,
		Prober:            prober,
		Clock:             clock,
		Selector:          selector,
		Rotator:           rotator,
		Queue:             queue,
		Transport:         transport,
		Bus:               bus,
		Rand:              rng,
		SlotVideoFallback: cfg.SlotVideoPath(),
		CommercialPadding: cfg.CommercialPadding,
	}, logger)

	statusServer := server.New(bus, logBuffer, logger)
	httpServer := statusServer.HTTPServer(cfg.HTTPBind)

	go func() {
		logger.Info().Str("addr", cfg.HTTPBind).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	controllerDone := make(chan error, 1)
	go func() {
		controllerDone <- controller.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info().Msg("shutting down gracefully...")
	case err := <-controllerDone:
		if err != nil {
			logger.Error().Err(err).Msg("control loop exited")
		}
	}

	cancel()

	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer timeoutCancel()
	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	select {
	case <-controllerDone:
	case <-timeoutCtx.Done():
	}

	logger.Info().Msg("Skuld TV stopped")
	return nil
}

func runCaption(cmd *cobra.Command, args []string) error {
	if err := loadConfig(nil); err != nil {
		return err
	}

	client := caspar.NewClient(caspar.Options{
		Addr:            cfg.CasparAddr(),
		Channel:         cfg.CasparChannel,
		Layer:           cfg.CasparLayer,
		CaptionLayer:    cfg.CaptionLayer,
		CaptionTemplate: cfg.CaptionTemplate,
	}, logger)

	resp, err := client.OverlayCaption(args[0])
	if err != nil {
		return fmt.Errorf("overlay caption: %w", err)
	}
	fmt.Println(resp)
	return nil
}

func runProbe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(nil); err != nil {
		return err
	}

	prober := media.NewProber(logger)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var failed bool
	for _, path := range args {
		duration, err := prober.Duration(ctx, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
			continue
		}
		fmt.Printf("%s\t%.2fs\n", path, duration)
	}
	if failed {
		return fmt.Errorf("one or more probes failed")
	}
	return nil
}
