// Command recapd runs the summarization daemon: scheduler, pipeline, and the
// HTTP control API.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"

	"recap/internal/config"
	"recap/internal/daemon"
	"recap/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, path, exists, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		OutputPaths: []string{
			"stdout",
			filepath.Join(cfg.Paths.LogDir, "recapd.log"),
		},
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	if !exists {
		logger.Warn("config file not found, using defaults", logging.String("path", path))
	}

	d, err := daemon.New(cfg, logger)
	if err != nil {
		log.Fatalf("create daemon: %v", err)
	}

	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("daemon exited", logging.Error(err))
		log.Fatalf("daemon exited: %v", err)
	}
}
