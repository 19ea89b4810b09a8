// Command binderyd runs the bindery daemon: catalog reconciliation, on-demand
// conversion, and the HTTP API.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"bindery/internal/config"
	"bindery/internal/daemon"
	"bindery/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var configPath string
	flag.StringVar(&configPath, "config", "", "Configuration file path")
	flag.Parse()

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	if !runPreflight(ctx, cfg, logger) {
		os.Exit(1)
	}

	d, err := daemon.New(cfg, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("binderyd shutting down")
	d.Stop()
}
