// Package config provides configuration loading for signald.
//
// Configuration is read from a YAML file and overridden by environment
// variables. Every credential slot is optional; an adapter is only built for
// the slots that are set.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the complete signald configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Slack         TokenConfig         `koanf:"slack"`
	Asana         TokenConfig         `koanf:"asana"`
	Linear        TokenConfig         `koanf:"linear"`
	GitHub        GitHubConfig        `koanf:"github"`
	WhatsApp      WhatsAppConfig      `koanf:"whatsapp"`
	Redis         RedisConfig         `koanf:"redis"`
	Fetch         FetchConfig         `koanf:"fetch"`
	Aggregate     AggregateConfig     `koanf:"aggregate"`
	Observability ObservabilityConfig `koanf:"observability"`
	Logging       LoggingConfig       `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// TokenConfig is a source that needs only a bearer token.
type TokenConfig struct {
	Token   Secret `koanf:"token"`
	BaseURL string `koanf:"base_url"` // Override for self-hosted or test endpoints
}

// GitHubConfig selects the repositories whose issues become signals.
type GitHubConfig struct {
	Token   Secret `koanf:"token"`
	BaseURL string `koanf:"base_url"`
	// Repos limits the scan to owner/name pairs. Empty means issues
	// assigned to the authenticated user across all repositories.
	Repos []string `koanf:"repos"`
}

// WhatsAppConfig holds the WhatsApp Business Cloud API settings.
type WhatsAppConfig struct {
	Token         Secret `koanf:"token"`
	PhoneNumberID string `koanf:"phone_number_id"`
	BaseURL       string `koanf:"base_url"`
	// VerifyToken answers the webhook subscription challenge.
	VerifyToken Secret `koanf:"verify_token"`
	// AppSecret, when set, is used to check X-Hub-Signature-256 on
	// webhook deliveries.
	AppSecret Secret `koanf:"app_secret"`
	// Inbox is "memory" or "redis".
	Inbox string `koanf:"inbox"`
}

// RedisConfig holds the connection used by the redis inbox.
type RedisConfig struct {
	Addr      string `koanf:"addr"`
	Password  Secret `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
}

// FetchConfig bounds adapter fetches.
type FetchConfig struct {
	DefaultWindow time.Duration `koanf:"default_window"`
	MaxSubUnits   int           `koanf:"max_sub_units"`
	Timeout       time.Duration `koanf:"timeout"`
	RatePerSecond float64       `koanf:"rate_per_second"`
}

// AggregateConfig configures the aggregation manager.
type AggregateConfig struct {
	// HealthCacheTTL caches GetHealth results. Zero disables the cache.
	HealthCacheTTL time.Duration `koanf:"health_cache_ttl"`

	// FetchTimeout bounds one shared adapter fetch. Zero keeps the
	// manager's default.
	FetchTimeout time.Duration `koanf:"fetch_timeout"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	Endpoint        string `koanf:"endpoint"`
	Protocol        string `koanf:"protocol"`
}

// LoggingConfig holds the knobs exposed through the config file. The rest
// of the logging setup uses logging defaults.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9191
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.WhatsApp.Inbox == "" {
		cfg.WhatsApp.Inbox = "memory"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "signald"
	}

	if cfg.Fetch.DefaultWindow == 0 {
		cfg.Fetch.DefaultWindow = 24 * time.Hour
	}
	if cfg.Fetch.MaxSubUnits == 0 {
		cfg.Fetch.MaxSubUnits = 10
	}
	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = 15 * time.Second
	}
	if cfg.Fetch.RatePerSecond == 0 {
		cfg.Fetch.RatePerSecond = 5
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "signald"
	}
	if cfg.Observability.Endpoint == "" {
		cfg.Observability.Endpoint = "localhost:4317"
	}
	if cfg.Observability.Protocol == "" {
		cfg.Observability.Protocol = "grpc"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Server port is not between 1 and 65535
//   - Shutdown timeout is not positive
//   - A WhatsApp token is set without a phone number id
//   - The inbox is neither memory nor redis
//   - Fetch bounds are not positive
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	if c.WhatsApp.Token.IsSet() && c.WhatsApp.PhoneNumberID == "" {
		return errors.New("whatsapp.phone_number_id required when whatsapp.token is set")
	}
	switch c.WhatsApp.Inbox {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid whatsapp.inbox %q (must be memory or redis)", c.WhatsApp.Inbox)
	}

	if c.Fetch.MaxSubUnits < 1 {
		return fmt.Errorf("fetch.max_sub_units must be positive, got %d", c.Fetch.MaxSubUnits)
	}
	if c.Fetch.Timeout <= 0 || c.Fetch.DefaultWindow <= 0 {
		return errors.New("fetch timeout and default window must be positive")
	}
	if c.Fetch.RatePerSecond <= 0 {
		return errors.New("fetch.rate_per_second must be positive")
	}
	if c.Aggregate.HealthCacheTTL < 0 {
		return errors.New("aggregate.health_cache_ttl cannot be negative")
	}
	if c.Aggregate.FetchTimeout < 0 {
		return errors.New("aggregate.fetch_timeout cannot be negative")
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}
	switch strings.ToLower(c.Observability.Protocol) {
	case "grpc", "http":
	default:
		return fmt.Errorf("invalid observability.protocol %q (must be grpc or http)", c.Observability.Protocol)
	}

	return nil
}

// ConfiguredSources lists the credential slots that are set, in a fixed
// order. Useful for startup logging.
func (c *Config) ConfiguredSources() []string {
	var out []string
	if c.Slack.Token.IsSet() {
		out = append(out, "slack")
	}
	if c.Asana.Token.IsSet() {
		out = append(out, "asana")
	}
	if c.Linear.Token.IsSet() {
		out = append(out, "linear")
	}
	if c.GitHub.Token.IsSet() {
		out = append(out, "github")
	}
	if c.WhatsApp.Token.IsSet() {
		out = append(out, "whatsapp")
	}
	return out
}
