package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.entityhooks.tech/internal/common/health"
	"go.entityhooks.tech/internal/common/metrics"
)

// maxBodyBytes bounds a notification body
const maxBodyBytes = 1 << 20

func newRouter(healthChecker *health.Checker) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(countRequests)

	r.Post("/create", receive(http.MethodPost))
	r.Patch("/update", receive(http.MethodPatch))
	r.Delete("/delete", receive(http.MethodDelete))

	// Wrong method on a known path is reported like an unknown path.
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	r.Mount("/q/health", healthChecker.Routes())
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// receive logs the notification body and acknowledges it
func receive(method string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			slog.Warn("Failed to read notification body", "method", method, "error", err)
		}

		var payload map[string]any
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &payload); err != nil {
				slog.Warn("Notification body is not a JSON object",
					"method", method,
					"error", err,
					"body", string(raw))
			}
		}

		slog.Info("Received data",
			"method", method,
			"path", r.URL.Path,
			"requestId", middleware.GetReqID(r.Context()),
			"entity", payload["entity"],
			"payload", payload)

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "Data received for "+method)
	}
}

func notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	io.WriteString(w, "Not Found")
}

// countRequests records every request by route pattern
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.ListenerRequests.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
	})
}
