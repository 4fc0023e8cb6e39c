package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"
)

// shutdownTimeout bounds the whole shutdown once a signal arrives
const shutdownTimeout = 35 * time.Second

// ErrNotServing is reported by HTTPService.Health when the server is down
var ErrNotServing = errors.New("http server not serving")

// Run starts services and blocks until SIGINT, SIGTERM or cancellation of
// ctx, then stops them in reverse order.
//
// Usage:
//
//	lifecycle.Run(ctx, lifecycle.NewHTTPService("listener", server))
func Run(ctx context.Context, services ...Service) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	supervisor := NewSupervisor(services...)

	errCh := make(chan error, 1)
	go func() {
		errCh <- supervisor.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			slog.Error("Supervisor error", "error", err)
		}
		return err
	}

	select {
	case err := <-errCh:
		return err
	case <-time.After(shutdownTimeout):
		slog.Error("Shutdown timed out")
		return context.DeadlineExceeded
	}
}

// HTTPService wraps an http.Server as a Service.
type HTTPService struct {
	server  *http.Server
	name    string
	addr    atomic.Value // string
	serving atomic.Bool
}

// NewHTTPService creates a Service from an http.Server.
func NewHTTPService(name string, server *http.Server) *HTTPService {
	s := &HTTPService{
		server: server,
		name:   name,
	}
	s.addr.Store(server.Addr)
	return s
}

func (s *HTTPService) Name() string { return s.name }

// Addr returns the bound address once started, the configured one before
func (s *HTTPService) Addr() string {
	return s.addr.Load().(string)
}

func (s *HTTPService) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.addr.Store(ln.Addr().String())
	s.serving.Store(true)
	slog.Info("Starting HTTP server", "service", s.name, "addr", s.Addr())

	errCh := make(chan error, 1)
	go func() {
		defer s.serving.Store(false)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

func (s *HTTPService) Stop(ctx context.Context) error {
	slog.Info("Stopping HTTP server", "service", s.name)
	return s.server.Shutdown(ctx)
}

func (s *HTTPService) Health() error {
	if !s.serving.Load() {
		return ErrNotServing
	}
	return nil
}
