// Package lifecycle runs long-lived components with coordinated startup and
// shutdown. The demo listener and the webhook registry drain are both
// supervised as services.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrAlreadyRunning is returned when a supervisor is run twice concurrently
var ErrAlreadyRunning = errors.New("supervisor already running")

// startGrace is how long a service may take to report an immediate startup failure
const startGrace = 100 * time.Millisecond

// stopTimeout bounds each service's Stop
const stopTimeout = 30 * time.Second

// Service represents a startable/stoppable component.
type Service interface {
	// Name returns the service identifier for logging
	Name() string

	// Start begins the service. It should block until ctx is cancelled
	// or return an error if startup fails.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the service within ctx's deadline.
	Stop(ctx context.Context) error

	// Health returns nil if the service is healthy, error otherwise.
	Health() error
}

// Supervisor manages multiple services with coordinated lifecycle.
type Supervisor struct {
	services []Service
	mu       sync.RWMutex
	running  bool
}

// NewSupervisor creates a supervisor for the given services.
func NewSupervisor(services ...Service) *Supervisor {
	return &Supervisor{
		services: services,
	}
}

// Run starts all services and blocks until ctx is cancelled.
// Services are started in order and stopped in reverse order.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	var started []Service
	for _, svc := range s.services {
		slog.Info("Starting service", "service", svc.Name())

		errCh := make(chan error, 1)
		go func(service Service) {
			errCh <- service.Start(ctx)
		}(svc)

		select {
		case err := <-errCh:
			if err != nil {
				s.stopServices(started)
				return fmt.Errorf("service %s failed to start: %w", svc.Name(), err)
			}
		case <-time.After(startGrace):
		}

		started = append(started, svc)
		slog.Info("Service started", "service", svc.Name())
	}

	<-ctx.Done()
	slog.Info("Stopping services", "count", len(started))

	s.stopServices(started)
	return nil
}

// stopServices stops services in reverse order
func (s *Supervisor) stopServices(services []Service) {
	for i := len(services) - 1; i >= 0; i-- {
		svc := services[i]
		slog.Info("Stopping service", "service", svc.Name())

		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		if err := svc.Stop(stopCtx); err != nil {
			slog.Error("Service stop error", "service", svc.Name(), "error", err)
		} else {
			slog.Info("Service stopped", "service", svc.Name())
		}
		cancel()
	}
}

// Health returns nil only if all services are healthy.
func (s *Supervisor) Health() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, svc := range s.services {
		if err := svc.Health(); err != nil {
			return fmt.Errorf("service %s unhealthy: %w", svc.Name(), err)
		}
	}
	return nil
}

// ServiceFunc adapts plain functions to the Service interface.
type ServiceFunc struct {
	name      string
	startFunc func(ctx context.Context) error
	stopFunc  func(ctx context.Context) error
	healthFn  func() error
}

// NewServiceFunc creates a Service from functions. A nil start blocks until
// the context is cancelled; a nil stop does nothing.
func NewServiceFunc(name string, start func(ctx context.Context) error, stop func(ctx context.Context) error) *ServiceFunc {
	if start == nil {
		start = func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		}
	}
	if stop == nil {
		stop = func(context.Context) error { return nil }
	}
	return &ServiceFunc{
		name:      name,
		startFunc: start,
		stopFunc:  stop,
		healthFn:  func() error { return nil },
	}
}

func (s *ServiceFunc) Name() string                    { return s.name }
func (s *ServiceFunc) Start(ctx context.Context) error { return s.startFunc(ctx) }
func (s *ServiceFunc) Stop(ctx context.Context) error  { return s.stopFunc(ctx) }
func (s *ServiceFunc) Health() error                   { return s.healthFn() }

// WithHealth sets the health check
func (s *ServiceFunc) WithHealth(fn func() error) *ServiceFunc {
	s.healthFn = fn
	return s
}
