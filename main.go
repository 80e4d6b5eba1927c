// Package main provides an audio level meter that measures the output of every
// audio render endpoint and shows the levels on a web dashboard.
//
// Usage:
//
//	audiometer [-config path/to/config.json]
//
// If -config is not specified, the meter looks for config.json in the same
// directory as the binary.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/oszuidwest/zwfm-audiometer/internal/config"
	"github.com/oszuidwest/zwfm-audiometer/internal/display"
	"github.com/oszuidwest/zwfm-audiometer/internal/eventlog"
	"github.com/oszuidwest/zwfm-audiometer/internal/monitor"
	"github.com/oszuidwest/zwfm-audiometer/internal/util"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: config.json next to binary)")
	showVersion := flag.Bool("version", false, "Print version information and exit")
	flag.Parse()

	if *showVersion {
		slog.Info("version info", "version", Version, "commit", Commit, "build_time", util.FormatHumanTime(BuildTime))
		return
	}

	if *configPath == "" {
		execPath, err := os.Executable()
		if err != nil {
			slog.Error("failed to get executable path", "error", err)
			os.Exit(1)
		}
		*configPath = filepath.Join(filepath.Dir(execPath), "config.json")
	}

	slog.Info("using config file", "path", *configPath)

	cfg := config.New(*configPath)
	if err := cfg.Load(); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	snap := cfg.Snapshot()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: snap.LogLevel})))

	opts := monitor.Options{
		OverridesPath: snap.OverridesPath,
		RescanEvery:   snap.RescanTicks(),
		PruneRemoved:  snap.PruneRemoved,
	}

	var events *eventlog.Logger
	if snap.EventsPath != "" {
		l, err := eventlog.NewLogger(snap.EventsPath)
		if err != nil {
			slog.Error("failed to open event log, continuing without it", "path", snap.EventsPath, "error", err)
		} else {
			events = l
			opts.Events = l
			slog.Info("recording device events", "path", l.Path())
		}
	}

	surface := display.New()
	mon := monitor.New(surface, opts)

	ctx, stop := signal.NotifyContext(context.Background(), util.ShutdownSignals()...)
	defer stop()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		mon.Run(ctx, snap.Interval)
	}()

	srv := NewServer(cfg, surface, mon)
	httpServer := srv.Start()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	<-runDone
	if err := mon.Close(); err != nil {
		slog.Error("error closing audio meter", "error", err)
	}
	if events != nil {
		if err := events.Close(); err != nil {
			slog.Error("error closing event log", "error", err)
		}
	}

	slog.Info("shutdown complete")
}
