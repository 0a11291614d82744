package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/thisisjab/sieve/config"
	"github.com/thisisjab/sieve/engine"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	// Used until the configured logger exists.
	bootLogger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger.Error("config error.", "error", err)
		os.Exit(1)
	}

	engineCfg, logger, err := cfg.Parse()
	if logger == nil {
		logger = bootLogger
	}
	if err != nil {
		logger.Error("config error.", "error", err)
		os.Exit(1)
	}

	// Panic recovery
	defer func() {
		if r := recover(); r != nil {
			logger.Error("server panic", "error", r)
		}
	}()

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling to catch Ctrl+C (SIGINT) or Terminate (SIGTERM)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received signal. shutting down.", "signal", sig)
		cancel()
	}()

	e, err := engine.New(*engineCfg, logger)
	if err != nil {
		logger.Error("engine error.", "error", err)
		os.Exit(1)
	}

	if err := e.Run(ctx); err != nil {
		logger.Error("engine error.", "error", err)
		cancel()
		os.Exit(1)
	}

	logger.Info("server stopped.")
}
