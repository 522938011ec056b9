package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"skirmish/server/internal/arena"
	"skirmish/server/internal/config"
	"skirmish/server/internal/logging"
	"skirmish/server/internal/ops"
)

func main() {
	//1.- Optional .env overlay for local development; a missing file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.L().Fatal("invalid configuration", logging.Error(err))
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		logging.L().Fatal("logger init failed", logging.Error(err))
	}
	logging.ReplaceGlobals(logger)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := arena.NewServer(cfg, logger)
	opsServer := ops.NewServer(cfg.OpsAddr, logger, server.Stats, server.WSHandler())

	//2.- The ops surface runs beside the arena; either failing tears both down.
	errs := make(chan error, 2)
	go func() { errs <- server.Run(ctx) }()
	go func() { errs <- opsServer.Run(ctx) }()

	received := 0
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errs:
		received++
		if err != nil {
			logger.Error("server failed", logging.Error(err))
		}
	}
	stop()

	//3.- Wait for both servers to finish their teardown.
	for ; received < 2; received++ {
		if err := <-errs; err != nil {
			logger.Error("server failed", logging.Error(err))
		}
	}
	logger.Info("goodbye")
}
