package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/taskboard/adapter/cli"
	"github.com/felixgeelhaar/taskboard/internal/app"
	"github.com/felixgeelhaar/taskboard/pkg/config"
	"github.com/felixgeelhaar/taskboard/pkg/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		cfg = &config.Config{AppEnv: "development", LogLevel: "info"}
	}

	level := cfg.LogLevel
	if cfg.IsDevelopment() && level == "" {
		level = "debug"
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:          level,
		Format:         observability.LogFormat(cfg.LogFormat),
		Output:         os.Stderr,
		ServiceName:    "taskboard",
		ServiceVersion: cli.Version,
	})
	if err != nil {
		logger.Warn("failed to load config, using development mode", "error", err)
	}
	cli.SetLogger(logger)

	cliApp := &cli.App{Config: cfg}
	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		if !cfg.IsDevelopment() {
			logger.Error("failed to initialize container", "error", err)
			os.Exit(1)
		}
		// In development, commands that only need configuration still run.
		logger.Warn("failed to initialize container, running in limited mode", "error", err)
	} else {
		defer container.Close()
		cliApp.Container = container
	}
	cli.SetApp(cliApp)

	cli.Execute(ctx)
}
