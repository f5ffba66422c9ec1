// Command cellrun is the process shell around the Cell execution
// core: it parses flags, builds the logger and Memory Fabric, spawns
// the Scheduler/Runner worker pool, and runs until a shutdown signal
// arrives. Modeled closely on the teacher's root main.go.
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	getopt "github.com/pborman/getopt/v2"

	"github.com/cellcore/ps3emu/internal/config"
	"github.com/cellcore/ps3emu/internal/corelog"
	"github.com/cellcore/ps3emu/internal/debugconsole"
	"github.com/cellcore/ps3emu/internal/hostif"
	"github.com/cellcore/ps3emu/internal/memory"
	"github.com/cellcore/ps3emu/internal/runner"
	"github.com/cellcore/ps3emu/internal/scheduler"
)

func main() {
	optConfig := getopt.StringLong("config", 'c', "", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optDebug := getopt.BoolLong("debug", 'd', "Start the interactive debug console")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	cfg := config.Default()
	if *optConfig != "" {
		loaded, err := config.Load(*optConfig)
		if err != nil {
			slog.Error("failed to load configuration", "file", *optConfig, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	var logFile *os.File
	logPath := cfg.LogPath
	if *optLogFile != "" {
		logPath = *optLogFile
	}
	if logPath != "" {
		f, err := os.Create(logPath)
		if err != nil {
			slog.Error("failed to create log file", "path", logPath, "error", err)
			os.Exit(1)
		}
		logFile = f
	}

	var fileSink io.Writer
	if logFile != nil {
		fileSink = logFile
	}

	programLevel := new(slog.LevelVar)
	programLevel.Set(cfg.LogLevel)
	handler := corelog.NewHandler(fileSink, os.Stderr, &slog.HandlerOptions{Level: programLevel})
	if *optDebug {
		handler = handler.WithDebug()
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	logger.Info("cellrun starting",
		"quantum", cfg.Quantum, "max_cycles_per_frame", cfg.MaxCyclesPerFrame,
		"frame_rate", cfg.FrameRate, "workers", cfg.Workers, "spu_count", cfg.SPUCount)

	fabric := memory.NewFabric()
	sched := scheduler.New(cfg.Quantum)
	run := runner.New(sched, fabric, cfg.Workers)
	run.OnStop = func(id scheduler.ThreadID, outcome runner.Outcome) {
		logger.Warn("thread stopped", "thread", id, "kind", outcome.Kind)
	}

	mgr := hostif.NewManager(fabric, sched, run)
	logger.Debug("host interface ready", "manager", mgr.String())

	// A real boot sequence loads an ELF/SELF image and calls
	// mgr.SpawnPPU/SpawnSPU from the loader's entry point; cellrun
	// itself knows nothing about that format, so no threads exist yet
	// at this point without one wired in.
	var console *debugconsole.Console
	if *optDebug {
		console = debugconsole.New(fabric)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- run.RunLoop(ctx)
	}()

	if *optDebug && console != nil {
		go func() {
			if err := debugconsole.Run(console); err != nil {
				logger.Error("debug console exited", "error", err)
			}
			cancel()
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("received shutdown signal")
		cancel()
		if err := <-done; err != nil && err != context.Canceled {
			logger.Error("runner loop exited with error", "error", err)
		}
	case err := <-done:
		if err != nil && err != context.Canceled {
			logger.Error("runner loop exited with error", "error", err)
		}
	}

	logger.Info("cellrun stopped")
}
