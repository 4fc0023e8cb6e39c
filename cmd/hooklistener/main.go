// Entity Webhooks Listener
//
// Demo subscriber for the entity webhooks. Accepts create, update and delete
// notifications, logs the decoded payload and acknowledges with a plain
// text body.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.entityhooks.tech/internal/common/health"
	"go.entityhooks.tech/internal/common/lifecycle"
	"go.entityhooks.tech/internal/config"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cfg, err := config.LoadWithFile()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg.DevMode)

	slog.Info("Starting Entity Webhooks Listener",
		"version", version,
		"build_time", buildTime,
		"component", "listener")

	healthChecker := health.NewChecker()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Listener.Port),
		Handler:      newRouter(healthChecker),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	httpService := lifecycle.NewHTTPService("listener", httpServer)
	healthChecker.Add(health.Liveness, health.ServiceCheck(httpService.Name(), httpService.Health))

	slog.Info("Listener ready", "port", cfg.Listener.Port)

	if err := lifecycle.Run(context.Background(), httpService); err != nil {
		slog.Error("Service error", "error", err)
		os.Exit(1)
	}

	slog.Info("Entity Webhooks Listener stopped")
}

// setupLogging configures the slog default logger.
func setupLogging(dev bool) {
	logLevel := slog.LevelInfo
	if dev {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}
