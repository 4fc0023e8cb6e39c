package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"go.entityhooks.tech/internal/webhook"
)

// TOMLConfig represents the TOML configuration file structure
type TOMLConfig struct {
	Disabled        bool                `toml:"disabled"`
	DevMode         bool                `toml:"dev_mode"`
	Delivery        TOMLDeliveryConfig  `toml:"delivery"`
	Dispatch        TOMLDispatchConfig  `toml:"dispatch"`
	Breaker         TOMLBreakerConfig   `toml:"breaker"`
	Listener        TOMLListenerConfig  `toml:"listener"`
	Demo            TOMLDemoConfig      `toml:"demo"`
	Webhooks        map[string]any      `toml:"webhooks"`
	Filters         map[string]string   `toml:"filters"`
	AllowedEntities map[string][]string `toml:"allowed_entities"`
}

// TOMLDeliveryConfig represents delivery configuration in TOML
type TOMLDeliveryConfig struct {
	ConnectTimeout   string `toml:"connect_timeout"`
	ReadTimeout      string `toml:"read_timeout"`
	MaxResponseBytes int    `toml:"max_response_bytes"`
}

// TOMLDispatchConfig represents dispatch configuration in TOML
type TOMLDispatchConfig struct {
	MaxInFlight        int `toml:"max_in_flight"`
	RateLimitPerMinute int `toml:"rate_limit_per_minute"`
}

// TOMLBreakerConfig represents circuit breaker configuration in TOML
type TOMLBreakerConfig struct {
	Enabled      bool    `toml:"enabled"`
	MaxRequests  uint32  `toml:"max_requests"`
	Interval     string  `toml:"interval"`
	Timeout      string  `toml:"timeout"`
	FailureRatio float64 `toml:"failure_ratio"`
	MinRequests  uint32  `toml:"min_requests"`
}

// TOMLListenerConfig represents demo listener configuration in TOML
type TOMLListenerConfig struct {
	Port int `toml:"port"`
}

// TOMLDemoConfig represents demo driver configuration in TOML
type TOMLDemoConfig struct {
	Hold        bool `toml:"hold"`
	MetricsPort int  `toml:"metrics_port"`
}

// ConfigPaths lists the paths to search for config files
var ConfigPaths = []string{
	"hooks.toml",
	"config.toml",
	"./config/hooks.toml",
	"/etc/entityhooks/hooks.toml",
}

// LoadFromFile loads configuration from a TOML file. Settings absent from
// the file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	var tomlCfg TOMLConfig

	if _, err := toml.DecodeFile(path, &tomlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return tomlConfigToConfig(&tomlCfg)
}

// LoadWithFile loads configuration from file first, then overrides with env vars
func LoadWithFile() (*Config, error) {
	// Check for explicit config file path
	configPath := os.Getenv("HOOKS_CONFIG")
	if configPath == "" {
		// Search for config file in standard locations
		for _, path := range ConfigPaths {
			if _, err := os.Stat(path); err == nil {
				configPath = path
				break
			}
		}
	}

	// If no config file found, just use env vars
	if configPath == "" {
		return Load()
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	applyEnv(cfg)
	return cfg, nil
}

// tomlConfigToConfig overlays the TOML config on the defaults
func tomlConfigToConfig(tc *TOMLConfig) (*Config, error) {
	cfg := Defaults()
	cfg.Disabled = tc.Disabled
	cfg.DevMode = tc.DevMode

	var err error
	if cfg.Delivery.ConnectTimeout, err = parseDuration("delivery.connect_timeout", tc.Delivery.ConnectTimeout, cfg.Delivery.ConnectTimeout); err != nil {
		return nil, err
	}
	if cfg.Delivery.ReadTimeout, err = parseDuration("delivery.read_timeout", tc.Delivery.ReadTimeout, cfg.Delivery.ReadTimeout); err != nil {
		return nil, err
	}
	if tc.Delivery.MaxResponseBytes > 0 {
		cfg.Delivery.MaxResponseBytes = tc.Delivery.MaxResponseBytes
	}

	if tc.Dispatch.MaxInFlight > 0 {
		cfg.Dispatch.MaxInFlight = tc.Dispatch.MaxInFlight
	}
	cfg.Dispatch.RateLimitPerMinute = tc.Dispatch.RateLimitPerMinute

	cfg.Breaker.Enabled = tc.Breaker.Enabled
	if tc.Breaker.MaxRequests > 0 {
		cfg.Breaker.MaxRequests = tc.Breaker.MaxRequests
	}
	if tc.Breaker.MinRequests > 0 {
		cfg.Breaker.MinRequests = tc.Breaker.MinRequests
	}
	if tc.Breaker.FailureRatio > 0 {
		cfg.Breaker.FailureRatio = tc.Breaker.FailureRatio
	}
	if cfg.Breaker.Interval, err = parseDuration("breaker.interval", tc.Breaker.Interval, cfg.Breaker.Interval); err != nil {
		return nil, err
	}
	if cfg.Breaker.Timeout, err = parseDuration("breaker.timeout", tc.Breaker.Timeout, cfg.Breaker.Timeout); err != nil {
		return nil, err
	}

	if tc.Listener.Port > 0 {
		cfg.Listener.Port = tc.Listener.Port
	}
	cfg.Demo.Hold = tc.Demo.Hold
	if tc.Demo.MetricsPort > 0 {
		cfg.Demo.MetricsPort = tc.Demo.MetricsPort
	}

	if cfg.Webhooks, err = parseWebhooks(tc.Webhooks); err != nil {
		return nil, err
	}
	for event, cond := range tc.Filters {
		cfg.Filters[event] = cond
	}
	for event, entities := range tc.AllowedEntities {
		cfg.AllowedEntities[event] = entities
	}

	return cfg, nil
}

func parseDuration(key, value string, defaultValue time.Duration) (time.Duration, error) {
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}

// parseWebhooks flattens the [webhooks] table. Each event maps to a URL, to
// an array whose items are either a URL or a {url, method} table, or to an
// array of tables ([[webhooks.<event>]]). Known
// event types come first in canonical order, then the rest sorted by name.
func parseWebhooks(raw map[string]any) ([]WebhookConfig, error) {
	events := make([]string, 0, len(raw))
	for event := range raw {
		events = append(events, event)
	}
	slices.SortFunc(events, func(a, b string) int {
		ra, rb := eventRank(a), eventRank(b)
		if ra != rb {
			return ra - rb
		}
		return strings.Compare(a, b)
	})

	var hooks []WebhookConfig
	for _, event := range events {
		var items []any
		switch v := raw[event].(type) {
		case []any:
			items = v
		case []map[string]any:
			// [[webhooks.<event>]] array of tables
			items = make([]any, len(v))
			for i, table := range v {
				items[i] = table
			}
		default:
			items = []any{v}
		}
		for i, item := range items {
			hook, err := parseWebhookItem(event, item)
			if err != nil {
				return nil, fmt.Errorf("webhooks.%s[%d]: %w", event, i, err)
			}
			hooks = append(hooks, hook)
		}
	}
	return hooks, nil
}

func parseWebhookItem(event string, item any) (WebhookConfig, error) {
	hook := WebhookConfig{Event: event}

	switch v := item.(type) {
	case string:
		hook.URL = v
	case map[string]any:
		url, ok := v["url"].(string)
		if !ok {
			return hook, errors.New("missing url")
		}
		hook.URL = url
		if method, present := v["method"]; present {
			if hook.Method, ok = method.(string); !ok {
				return hook, fmt.Errorf("method must be a string, got %T", method)
			}
		}
	default:
		return hook, fmt.Errorf("expected url or table, got %T", item)
	}

	if hook.URL == "" {
		return hook, errors.New("empty url")
	}
	return hook, nil
}

func eventRank(event string) int {
	for i, et := range webhook.EventTypes() {
		if string(et) == event {
			return i
		}
	}
	return len(webhook.EventTypes())
}

// Provider supplies the configured webhooks to a registry
type Provider struct {
	cfg *Config
}

// NewProvider creates a provider over cfg's webhooks
func NewProvider(cfg *Config) *Provider {
	return &Provider{cfg: cfg}
}

// Declarations returns the configured webhooks in declaration order
func (p *Provider) Declarations() []webhook.Declaration {
	decls := make([]webhook.Declaration, 0, len(p.cfg.Webhooks))
	for _, h := range p.cfg.Webhooks {
		decls = append(decls, webhook.Declaration{
			Event:  h.Event,
			URL:    h.URL,
			Method: h.Method,
		})
	}
	return decls
}

// WriteExampleConfig writes an example configuration file
func WriteExampleConfig(path string) error {
	example := `# Entity webhooks configuration
# Environment variables (HOOKS_*) override these settings

disabled = false
dev_mode = false

[delivery]
connect_timeout = "30s"
read_timeout = "5s"
max_response_bytes = 1048576

[dispatch]
max_in_flight = 16
rate_limit_per_minute = 0  # 0 disables

[breaker]
enabled = false
max_requests = 1
interval = "60s"
timeout = "30s"
failure_ratio = 0.5
min_requests = 10

[listener]
port = 3000

[demo]
hold = false
metrics_port = 9090

[webhooks]
create = ["tcp://localhost:3000/create"]
update = [{ url = "tcp://localhost:3000/update", method = "PATCH" }]
delete = [{ url = "tcp://localhost:3000/delete", method = "DELETE" }]

[allowed_entities]
create = ["this_table", "other_table"]
update = ["some_table", "any_table"]
delete = ["this_table", "not_that_table"]

# Expression conditions take precedence over allowed_entities
[filters]
# update = 'entity == "some_table" && data.status != nil'
`

	// Ensure directory exists
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	return os.WriteFile(path, []byte(example), 0644)
}
