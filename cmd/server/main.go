package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"route-validation-service/internal/adapters/repositories"
	"route-validation-service/internal/adapters/routes"
	"route-validation-service/internal/adapters/simulation"
	"route-validation-service/internal/api"
	"route-validation-service/internal/config"
	"route-validation-service/internal/platform/logging"
	"route-validation-service/internal/services"
	"syscall"
	"time"
)

// main is the application composition root.
// It wires concrete adapters (route file, SUMO, report store) behind ports and starts the HTTP server.
func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := repositories.Open(cfg.Storage)
	if err != nil {
		slog.Error("open report store", "driver", cfg.Storage.Driver, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	source := routes.NewXMLRouteSource(cfg.Simulation.RoutesFile)
	launcher := &simulation.SumoLauncher{
		Binary:          cfg.Simulation.SumoBinary,
		NetFile:         cfg.Simulation.NetFile,
		RoutesFile:      cfg.Simulation.RoutesFile,
		ExtraArgs:       cfg.Simulation.ExtraArgs,
		ConnectAttempts: cfg.Simulation.ConnectAttempts,
	}
	defaults := services.ValidateRoutesRequest{
		MaxSteps:   cfg.Validation.MaxSteps,
		Policy:     cfg.StallPolicy(),
		DepartTime: cfg.Simulation.DepartTime,
		NetFile:    cfg.Simulation.NetFile,
		RoutesFile: cfg.Simulation.RoutesFile,
	}

	router := api.NewRouter(repo, source, launcher, defaults)

	// A validation runs a whole simulation inside one request, hence the long write timeout.
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("server shutdown", "err", err)
		}
	}()

	slog.Info("server listening", "addr", srv.Addr, "storage", cfg.Storage.Driver)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
