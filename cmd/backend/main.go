package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	callcontrolimpl "github.com/vehiclecare/voicebook/external/callcontrol"
	configloader "github.com/vehiclecare/voicebook/external/config"
	dialogueimpl "github.com/vehiclecare/voicebook/external/dialogue"
	"github.com/vehiclecare/voicebook/external/httpapi"
	notifyimpl "github.com/vehiclecare/voicebook/external/notify"
	repositoryimpl "github.com/vehiclecare/voicebook/external/repository"
	speechimpl "github.com/vehiclecare/voicebook/external/speech"
	"github.com/vehiclecare/voicebook/internal/booking"
	"github.com/vehiclecare/voicebook/internal/config"
	"github.com/vehiclecare/voicebook/internal/session"
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "live_calling", cfg.LiveCallingEnabled())

	slog.Info("startup: loading service-center directory")
	directory, err := configloader.LoadDirectory(cfg.ServiceDirectoryPath)
	if err != nil {
		slog.Error("service directory load failed", "error", err, "path", cfg.ServiceDirectoryPath)
		os.Exit(1)
	}
	slog.Info("startup: service-center directory loaded", "centers", directory.Len())

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg, directory)

	runServer(injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config, directory booking.Directory) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, directory)
	do.ProvideValue(injector, slog.Default())
	repositoryimpl.RegisterDI(injector)
	speechimpl.RegisterDI(injector)
	dialogueimpl.RegisterDI(injector)
	callcontrolimpl.RegisterDI(injector)
	notifyimpl.RegisterDI(injector)
	session.RegisterDI(injector)
	httpapi.RegisterDI(injector)

	return injector
}

func runServer(injector do.Injector) {
	server, err := do.Invoke[*httpapi.Server](injector)
	if err != nil {
		slog.Error("failed to build http server", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		slog.Info("startup: entering http serve loop")
		if err := server.Run(ctx); err != nil && err != http.ErrServerClosed {
			slog.Error("http server failed", "error", err)
		}
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
		cancel()
		<-done
	case <-done:
	}
}
