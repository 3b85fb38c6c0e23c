// eegstored is the EEG chunk ingestion and retrieval server.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/xtxerr/eegstore/internal/loader"
	"github.com/xtxerr/eegstore/internal/logging"
	"github.com/xtxerr/eegstore/internal/server"
	"github.com/xtxerr/eegstore/internal/storage"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := flag.String("config", "config.yaml", "config file path")
	listen := flag.String("listen", "", "listen address (overrides config)")
	dataDir := flag.String("data-dir", "", "data directory (overrides config)")
	dbPath := flag.String("db", "", "database path, relative to data dir (overrides config)")
	driver := flag.String("driver", "", "database driver: duckdb or sqlite (overrides config)")
	logLevel := flag.String("log-level", "", "log level (overrides config)")
	flag.Parse()

	cfg, err := loader.Load(*cfgPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.Init(logging.ParseLevel("info"), false)
			logging.Error("load config", "path", *cfgPath, "error", err)
			return 1
		}
		cfg = loader.DefaultConfig()
	}

	// CLI overrides
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dataDir != "" {
		cfg.Storage.DataDir = *dataDir
	}
	if *dbPath != "" {
		cfg.Storage.Database.Path = *dbPath
	}
	if *driver != "" {
		cfg.Storage.Database.Driver = *driver
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logging.Init(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format == "json")
	log := logging.Component("main")

	if err != nil {
		log.Info("no config file found, using defaults", "path", *cfgPath)
	}
	if err := loader.Validate(cfg); err != nil {
		log.Error("invalid config", "error", err)
		return 1
	}

	log.Info("eegstored starting",
		"version", Version,
		"driver", cfg.Storage.Database.Driver,
		"data_dir", cfg.Storage.DataDir)
	req := cfg.Storage.CalculateRequirements()
	log.Debug("capacity estimate", "requirements", req.FormatRequirements())

	svc, err := storage.New(cfg.Storage)
	if err != nil {
		log.Error("create storage", "error", err)
		return 1
	}
	if err := svc.Start(); err != nil {
		log.Error("start storage", "error", err)
		_ = svc.Stop()
		return 1
	}
	defer func() {
		if err := svc.Stop(); err != nil {
			log.Warn("storage stop", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if n, err := svc.Counts(ctx); err != nil {
		log.Warn("count stored data", "error", err)
	} else {
		log.Info("storage opened", "patients", n.Patients, "recordings", n.Recordings, "chunks", n.Chunks, "samples", n.Samples)
	}

	srv := server.New(loader.ToServerConfig(cfg), svc)

	log.Info("listening", "addr", cfg.Listen)
	if err := srv.Run(ctx); err != nil {
		log.Error("server error", "error", err)
		return 1
	}
	log.Info("shut down")
	return 0
}
