package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"go.entityhooks.tech/internal/dispatch"
	"go.entityhooks.tech/internal/transport"
	"go.entityhooks.tech/internal/webhook"
)

// Config holds all configuration for entity webhooks
type Config struct {
	// Disabled turns every trigger into a no-op
	Disabled bool

	// Delivery configuration for the raw transport
	Delivery DeliveryConfig

	// Dispatch pool configuration
	Dispatch DispatchConfig

	// Circuit breaker configuration
	Breaker BreakerConfig

	// Demo listener configuration
	Listener ListenerConfig

	// Demo driver configuration
	Demo DemoConfig

	// Webhooks are the declared subscriptions, in declaration order
	Webhooks []WebhookConfig

	// Filters maps an event name to an expression condition
	Filters map[string]string

	// AllowedEntities maps an event name to the entities it may fire for
	AllowedEntities map[string][]string

	// Development mode
	DevMode bool
}

// DeliveryConfig holds transport bounds
type DeliveryConfig struct {
	ConnectTimeout   time.Duration
	ReadTimeout      time.Duration
	MaxResponseBytes int
}

// DispatchConfig holds dispatch pool configuration
type DispatchConfig struct {
	MaxInFlight        int
	RateLimitPerMinute int // 0 disables rate limiting
}

// BreakerConfig holds per-host circuit breaker configuration
type BreakerConfig struct {
	Enabled      bool
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

// ListenerConfig holds demo listener configuration
type ListenerConfig struct {
	Port int
}

// DemoConfig holds demo driver configuration
type DemoConfig struct {
	// Hold keeps the driver serving metrics and health after the run
	Hold        bool
	MetricsPort int
}

// WebhookConfig is a single declared subscription. Event is kept as written
// so that unknown event types are reported at registry initialization.
type WebhookConfig struct {
	Event  string
	URL    string
	Method string
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	breaker := transport.DefaultBreakerConfig()
	raw := transport.DefaultRawConfig()

	return &Config{
		Delivery: DeliveryConfig{
			ConnectTimeout:   raw.ConnectTimeout,
			ReadTimeout:      raw.ReadTimeout,
			MaxResponseBytes: raw.MaxResponseBytes,
		},
		Dispatch: DispatchConfig{
			MaxInFlight: dispatch.DefaultConfig().MaxInFlight,
		},
		Breaker: BreakerConfig{
			Enabled:      breaker.Enabled,
			MaxRequests:  breaker.MaxRequests,
			Interval:     breaker.Interval,
			Timeout:      breaker.Timeout,
			FailureRatio: breaker.FailureRatio,
			MinRequests:  breaker.MinRequests,
		},
		Listener: ListenerConfig{
			Port: 3000,
		},
		Demo: DemoConfig{
			MetricsPort: 9090,
		},
		Filters:         map[string]string{},
		AllowedEntities: map[string][]string{},
	}
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := Defaults()
	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overrides cfg with every HOOKS_* variable that is set
func applyEnv(cfg *Config) {
	cfg.Disabled = getEnvBool("HOOKS_DISABLED", cfg.Disabled)
	cfg.DevMode = getEnvBool("HOOKS_DEV", cfg.DevMode)

	cfg.Delivery.ConnectTimeout = getEnvDuration("HOOKS_CONNECT_TIMEOUT", cfg.Delivery.ConnectTimeout)
	cfg.Delivery.ReadTimeout = getEnvDuration("HOOKS_READ_TIMEOUT", cfg.Delivery.ReadTimeout)
	cfg.Delivery.MaxResponseBytes = getEnvInt("HOOKS_MAX_RESPONSE_BYTES", cfg.Delivery.MaxResponseBytes)

	cfg.Dispatch.MaxInFlight = getEnvInt("HOOKS_MAX_IN_FLIGHT", cfg.Dispatch.MaxInFlight)
	cfg.Dispatch.RateLimitPerMinute = getEnvInt("HOOKS_RATE_LIMIT_PER_MINUTE", cfg.Dispatch.RateLimitPerMinute)

	cfg.Breaker.Enabled = getEnvBool("HOOKS_BREAKER_ENABLED", cfg.Breaker.Enabled)
	cfg.Breaker.Timeout = getEnvDuration("HOOKS_BREAKER_TIMEOUT", cfg.Breaker.Timeout)
	cfg.Breaker.FailureRatio = getEnvFloat("HOOKS_BREAKER_FAILURE_RATIO", cfg.Breaker.FailureRatio)

	cfg.Listener.Port = getEnvInt("HOOKS_LISTENER_PORT", cfg.Listener.Port)
	cfg.Demo.Hold = getEnvBool("HOOKS_DEMO_HOLD", cfg.Demo.Hold)
	cfg.Demo.MetricsPort = getEnvInt("HOOKS_DEMO_METRICS_PORT", cfg.Demo.MetricsPort)

	// HOOKS_WEBHOOK_<EVENT> replaces the declared URLs for that event
	for _, et := range webhook.EventTypes() {
		urls := getEnvSlice("HOOKS_WEBHOOK_"+strings.ToUpper(string(et)), nil)
		if urls == nil {
			continue
		}
		cfg.Webhooks = replaceWebhooks(cfg.Webhooks, string(et), urls)
	}
}

// replaceWebhooks drops every entry for event and appends one per url using
// the event's default method
func replaceWebhooks(hooks []WebhookConfig, event string, urls []string) []WebhookConfig {
	kept := make([]WebhookConfig, 0, len(hooks)+len(urls))
	for _, h := range hooks {
		if !strings.EqualFold(h.Event, event) {
			kept = append(kept, h)
		}
	}
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			kept = append(kept, WebhookConfig{Event: event, URL: u})
		}
	}
	return kept
}

// RawConfig returns the transport settings
func (c *Config) RawConfig() *transport.RawConfig {
	return &transport.RawConfig{
		ConnectTimeout:   c.Delivery.ConnectTimeout,
		ReadTimeout:      c.Delivery.ReadTimeout,
		MaxResponseBytes: c.Delivery.MaxResponseBytes,
	}
}

// BreakerConfig returns the circuit breaker settings
func (c *Config) BreakerConfig() *transport.BreakerConfig {
	return &transport.BreakerConfig{
		Enabled:      c.Breaker.Enabled,
		MaxRequests:  c.Breaker.MaxRequests,
		Interval:     c.Breaker.Interval,
		Timeout:      c.Breaker.Timeout,
		FailureRatio: c.Breaker.FailureRatio,
		MinRequests:  c.Breaker.MinRequests,
	}
}

// PoolConfig returns the dispatch pool settings
func (c *Config) PoolConfig(name string) *dispatch.Config {
	pc := &dispatch.Config{
		Name:        name,
		MaxInFlight: c.Dispatch.MaxInFlight,
	}
	if c.Dispatch.RateLimitPerMinute > 0 {
		limit := c.Dispatch.RateLimitPerMinute
		pc.RateLimitPerMinute = &limit
	}
	return pc
}

// Helper functions for environment variable parsing

func getEnvInt(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.Split(value, ",")
	}
	return defaultValue
}
