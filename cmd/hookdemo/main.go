// Entity Webhooks Demo
//
// Simulates a data layer that inserts, updates and deletes rows and notifies
// the configured webhook subscribers of each mutation. Run hooklistener
// first to receive the notifications.
//
// Usage:
//
//	hookdemo                     run the demo mutations
//	hookdemo init-config [path]  write an example hooks.toml

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.entityhooks.tech/internal/common/health"
	"go.entityhooks.tech/internal/common/lifecycle"
	"go.entityhooks.tech/internal/config"
	"go.entityhooks.tech/internal/dispatch"
	"go.entityhooks.tech/internal/transport"
	"go.entityhooks.tech/internal/webhook"
	"go.entityhooks.tech/internal/webhook/filter"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// drainSlack is added to the connect and read timeouts when waiting for the
// demo deliveries
const drainSlack = 5 * time.Second

func main() {
	if len(os.Args) > 1 && os.Args[1] == "init-config" {
		path := "hooks.toml"
		if len(os.Args) > 2 {
			path = os.Args[2]
		}
		if err := config.WriteExampleConfig(path); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote example config to %s\n", path)
		return
	}

	cfg, err := config.LoadWithFile()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg.DevMode)

	slog.Info("Starting Entity Webhooks Demo",
		"version", version,
		"build_time", buildTime,
		"component", "demo")

	// ========================================
	// 1. COMPONENT WIRING
	// ========================================
	hookFilter, err := buildFilter(cfg)
	if err != nil {
		slog.Error("Invalid webhook filter", "error", err)
		os.Exit(1)
	}

	var deliveryTransport transport.Transport = transport.NewRawTransport(cfg.RawConfig())
	var breakers *transport.BreakerTransport
	if cfg.Breaker.Enabled {
		breakers = transport.NewBreakerTransport(deliveryTransport, cfg.BreakerConfig())
		deliveryTransport = breakers
	}

	pool := dispatch.NewPool(cfg.PoolConfig("webhooks"))

	registry := webhook.NewRegistry(&webhook.RegistryConfig{
		Disabled:  cfg.Disabled,
		Transport: deliveryTransport,
		Filter:    hookFilter,
		Pool:      pool,
	})

	var provider webhook.Provider = config.NewProvider(cfg)
	if len(cfg.Webhooks) == 0 {
		provider = demoSubscriptions(cfg.Listener.Port)
	}
	report := registry.Initialize(provider)
	if report.Subscribed() == 0 && !registry.Disabled() {
		slog.Warn("No webhook subscriptions registered")
	}

	// ========================================
	// 2. RUN THE DEMO
	// ========================================
	ctx := context.Background()
	s := newStore(registry)
	simulate(ctx, s)

	waitCtx, cancel := context.WithTimeout(ctx, cfg.Delivery.ConnectTimeout+cfg.Delivery.ReadTimeout+drainSlack)
	outcomes, err := s.Wait(waitCtx)
	cancel()
	if err != nil {
		slog.Warn("Gave up waiting for deliveries", "error", err)
	}
	summarize(outcomes)

	// ========================================
	// 3. OPTIONAL HOLD
	// ========================================
	var services []lifecycle.Service
	if cfg.Demo.Hold {
		healthChecker := health.NewChecker()
		healthChecker.Add(health.Readiness, health.PoolCheck(pool))
		if breakers != nil {
			healthChecker.Add(health.Readiness, health.BreakerCheck(breakers.OpenHosts))
		}

		httpService := lifecycle.NewHTTPService("metrics", &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Demo.MetricsPort),
			Handler:      metricsRouter(healthChecker),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		})
		healthChecker.Add(health.Liveness, health.ServiceCheck(httpService.Name(), httpService.Health))
		services = append(services, httpService)
		slog.Info("Holding for inspection, interrupt to exit", "metricsPort", cfg.Demo.MetricsPort)
	}

	// The registry drains last so in-flight deliveries finish before exit.
	services = append([]lifecycle.Service{registryService(registry)}, services...)

	if cfg.Demo.Hold {
		if err := lifecycle.Run(ctx, services...); err != nil {
			slog.Error("Service error", "error", err)
			os.Exit(1)
		}
	} else {
		closeCtx, cancel := context.WithTimeout(ctx, drainSlack)
		if err := registry.Close(closeCtx); err != nil {
			slog.Warn("Registry did not drain", "error", err)
		}
		cancel()
	}

	slog.Info("Entity Webhooks Demo stopped")
}

// setupLogging configures the slog default logger.
func setupLogging(dev bool) {
	logLevel := slog.LevelInfo
	if dev {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// buildFilter picks the admission filter: expression conditions when any are
// configured, otherwise configured entity lists, otherwise the demo tables.
func buildFilter(cfg *config.Config) (webhook.Filter, error) {
	if len(cfg.Filters) > 0 {
		f, err := filter.NewExpr(cfg.Filters)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	if len(cfg.AllowedEntities) > 0 {
		f, err := filter.NewEntities(cfg.AllowedEntities)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return demoEntities(), nil
}

func demoEntities() filter.Entities {
	return filter.Entities{
		webhook.EventCreate: {"this_table", "other_table"},
		webhook.EventUpdate: {"some_table", "any_table"},
		webhook.EventDelete: {"this_table", "not_that_table"},
	}
}

// demoSubscriptions points every event type at a local hooklistener
func demoSubscriptions(port int) webhook.Provider {
	base := fmt.Sprintf("tcp://localhost:%d", port)
	return webhook.StaticProvider{
		{Event: "create", URL: base + "/create"},
		{Event: "update", URL: base + "/update", Method: "PATCH"},
		{Event: "delete", URL: base + "/delete", Method: "DELETE"},
	}
}

func summarize(outcomes []webhook.Outcome) {
	counts := map[string]int{}
	for _, o := range outcomes {
		counts[o.Result()]++
	}
	slog.Info("Demo finished",
		"outcomes", len(outcomes),
		"delivered", counts["success"],
		"rejected", counts["rejected"],
		"failed", len(outcomes)-counts["success"]-counts["rejected"])
}

func registryService(registry *webhook.Registry) lifecycle.Service {
	return lifecycle.NewServiceFunc("webhook-registry", nil, registry.Close)
}

func metricsRouter(healthChecker *health.Checker) http.Handler {
	r := chi.NewRouter()
	r.Mount("/q/health", healthChecker.Routes())
	r.Handle("/metrics", promhttp.Handler())
	return r
}
