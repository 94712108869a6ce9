package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/oakmere/wallcal/internal/hub"
	"github.com/oakmere/wallcal/internal/service"
	"github.com/oakmere/wallcal/internal/session"
	"github.com/oakmere/wallcal/internal/store"
	"github.com/oakmere/wallcal/pkg/config"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "wallcal.yaml", "Path to the configuration file (optional; env vars alone are enough)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, config.ErrAdminSecretMissing) {
			slog.Error("FATAL: admin password is not configured; refusing to start")
		} else {
			slog.Error("Failed to load configuration", "error", err)
		}
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	docs, err := store.New(store.Config{
		Logger:    logger,
		Directory: cfg.DataDir,
		AppCtx:    ctx,
	})
	if err != nil {
		logger.Error("Failed to open document store", "error", err)
		os.Exit(1)
	}
	defer docs.Close()

	sessions, err := session.New(session.Config{
		Logger:            logger,
		AdminPassword:     cfg.AdminPassword,
		AdminPasswordHash: cfg.AdminPasswordHash,
		TokenTTL:          cfg.Sessions.TokenTTL,
	})
	if err != nil {
		logger.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer sessions.Close()

	broadcaster := hub.New(hub.Config{
		Logger:          logger,
		AppCtx:          ctx,
		SweepInterval:   cfg.Sessions.SweepInterval,
		SendBufferSize:  cfg.Sessions.SendBufferSize,
		MaxConnections:  cfg.Sessions.MaxConnections,
		ReadBufferSize:  cfg.Sessions.WebSocketReadBufferSize,
		WriteBufferSize: cfg.Sessions.WebSocketWriteBufferSize,
	})

	svc := service.NewService(ctx, logger, cfg, docs, sessions, broadcaster)

	logger.Info("Starting wallcald", "binding", cfg.HttpBinding, "data_dir", cfg.DataDir)
	svc.Run()

	logger.Info("Application exiting.")
}
