package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/platinummonkey/folio/pkg/observability"
	"github.com/platinummonkey/folio/pkg/search"
)

// EnvPrefix prefixes every environment variable, e.g. FOLIO_SERVER_PORT
const EnvPrefix = "FOLIO"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Search        SearchConfig        `mapstructure:"search"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// Addr is the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// StorageConfig holds the record store connection settings
type StorageConfig struct {
	Driver      string        `mapstructure:"driver"`
	URL         string        `mapstructure:"url"`
	ReplicaURLs []string      `mapstructure:"replica_urls"`
	MaxConns    int           `mapstructure:"max_conns"`
	MinConns    int           `mapstructure:"min_conns"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
	MaxIdleTime time.Duration `mapstructure:"max_idle_time"`
}

// RedisConfig holds the shared cache settings
type RedisConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	URL        string        `mapstructure:"url"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	MaxRetries int           `mapstructure:"max_retries"`
	PoolSize   int           `mapstructure:"pool_size"`
	SchemaTTL  time.Duration `mapstructure:"schema_ttl"`
}

// PropertyRule requires Scope for paths at or below Prefix of Entity
type PropertyRule struct {
	Entity string `mapstructure:"entity"`
	Prefix string `mapstructure:"prefix"`
	Scope  string `mapstructure:"scope"`
}

// SearchConfig holds engine limits and behavior
type SearchConfig struct {
	DefaultLimit       int            `mapstructure:"default_limit"`
	MaxLimit           int            `mapstructure:"max_limit"`
	MaxFilterGroups    int            `mapstructure:"max_filter_groups"`
	MaxFiltersPerGroup int            `mapstructure:"max_filters_per_group"`
	CursorSecret       string         `mapstructure:"cursor_secret"`
	SchemaCacheSize    int            `mapstructure:"schema_cache_size"`
	SchemaCacheTTL     time.Duration  `mapstructure:"schema_cache_ttl"`
	AnalyticsEnabled   bool           `mapstructure:"analytics_enabled"`
	EventTimeout       time.Duration  `mapstructure:"event_timeout"`
	PropertyPolicy     []PropertyRule `mapstructure:"property_policy"`
}

// Limits returns the engine limits
func (s SearchConfig) Limits() search.Limits {
	return search.Limits{
		DefaultLimit:       s.DefaultLimit,
		MaxLimit:           s.MaxLimit,
		MaxGroups:          s.MaxFilterGroups,
		MaxFiltersPerGroup: s.MaxFiltersPerGroup,
	}
}

// Policy returns the property policy, nil when no rules are configured
func (s SearchConfig) Policy() search.PropertyPolicy {
	if len(s.PropertyPolicy) == 0 {
		return nil
	}
	policy := search.PropertyPolicy{}
	for _, rule := range s.PropertyPolicy {
		et := search.EntityType(rule.Entity)
		if policy[et] == nil {
			policy[et] = map[string]string{}
		}
		policy[et][rule.Prefix] = rule.Scope
	}
	return policy
}

// RateLimitConfig holds per-organization request limits
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
	// Distributed shares limits across instances through Redis
	Distributed bool `mapstructure:"distributed"`
	FailOpen    bool `mapstructure:"fail_open"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel string `mapstructure:"log_level"`

	MetricsEnabled bool `mapstructure:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool   `mapstructure:"otel_enabled"`
	OTelEndpoint       string `mapstructure:"otel_endpoint"`
	OTelServiceName    string `mapstructure:"otel_service_name"`
	OTelServiceVersion string `mapstructure:"otel_service_version"`
	OTelInsecure       bool   `mapstructure:"otel_insecure"` // Use insecure gRPC connection
}

// Level returns the parsed log level
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLevel(o.LogLevel)
}

// OTel returns the OpenTelemetry provider settings
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
	}
}

var defaults = map[string]interface{}{
	"server.host":             "0.0.0.0",
	"server.port":             "8080",
	"server.read_timeout":     15 * time.Second,
	"server.write_timeout":    15 * time.Second,
	"server.idle_timeout":     60 * time.Second,
	"server.shutdown_timeout": 30 * time.Second,
	"server.request_timeout":  10 * time.Second,
	"server.max_body_bytes":   int64(1 << 20),

	"storage.driver":        "postgres",
	"storage.url":           "",
	"storage.replica_urls":  []string{},
	"storage.max_conns":     25,
	"storage.min_conns":     5,
	"storage.timeout":       5 * time.Second,
	"storage.max_lifetime":  30 * time.Minute,
	"storage.max_idle_time": 5 * time.Minute,

	"redis.enabled":     false,
	"redis.url":         "redis://localhost:6379/0",
	"redis.password":    "",
	"redis.db":          0,
	"redis.max_retries": 3,
	"redis.pool_size":   10,
	"redis.schema_ttl":  5 * time.Minute,

	"search.default_limit":         20,
	"search.max_limit":             100,
	"search.max_filter_groups":     5,
	"search.max_filters_per_group": 10,
	"search.cursor_secret":         "",
	"search.schema_cache_size":     1000,
	"search.schema_cache_ttl":      time.Minute,
	"search.analytics_enabled":     true,
	"search.event_timeout":         5 * time.Second,
	"search.property_policy":       []PropertyRule{},

	"rate_limit.enabled":             false,
	"rate_limit.requests_per_minute": 600,
	"rate_limit.burst":               20,
	"rate_limit.distributed":         false,
	"rate_limit.fail_open":           true,

	"observability.log_level":            "info",
	"observability.metrics_enabled":      true,
	"observability.otel_enabled":         false,
	"observability.otel_endpoint":        "localhost:4317",
	"observability.otel_service_name":    "folio-search",
	"observability.otel_service_version": "dev",
	"observability.otel_insecure":        true,
}

// flagKeys maps command line flags onto configuration keys
var flagKeys = map[string]string{
	"host":        "server.host",
	"port":        "server.port",
	"log-level":   "observability.log_level",
	"storage-url": "storage.url",
	"driver":      "storage.driver",
}

// Load reads configuration from defaults, an optional YAML file, FOLIO_*
// environment variables and the given flags, in increasing precedence.
// With an empty path ./folio.yaml is used when present.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("folio")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.Storage.ReplicaURLs = compact(cfg.Storage.ReplicaURLs)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func compact(values []string) []string {
	out := values[:0]
	for _, s := range values {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, fmt.Errorf("server port is required"))
	}
	if c.Server.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("server max body bytes must not be negative"))
	}

	switch strings.ToLower(c.Storage.Driver) {
	case "postgres", "postgresql", "sqlite", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("invalid storage driver: %s (must be postgres or sqlite3)", c.Storage.Driver))
	}
	if c.Storage.URL == "" {
		errs = append(errs, fmt.Errorf("storage url is required"))
	}

	s := c.Search
	if s.DefaultLimit <= 0 || s.MaxLimit <= 0 {
		errs = append(errs, fmt.Errorf("search limits must be positive"))
	} else if s.DefaultLimit > s.MaxLimit {
		errs = append(errs, fmt.Errorf("search default limit %d exceeds max limit %d", s.DefaultLimit, s.MaxLimit))
	}
	if s.MaxFilterGroups <= 0 || s.MaxFiltersPerGroup <= 0 {
		errs = append(errs, fmt.Errorf("search filter limits must be positive"))
	}
	if s.SchemaCacheSize < 0 {
		errs = append(errs, fmt.Errorf("schema cache size must not be negative"))
	}
	for i, rule := range s.PropertyPolicy {
		if _, ok := search.ParseEntityType(rule.Entity); !ok || rule.Entity == string(search.EntityAll) {
			errs = append(errs, fmt.Errorf("property policy rule %d: invalid entity %q", i, rule.Entity))
		}
		if rule.Prefix == "" || rule.Scope == "" {
			errs = append(errs, fmt.Errorf("property policy rule %d: prefix and scope are required", i))
		}
	}

	if c.Redis.Enabled && c.Redis.URL == "" {
		errs = append(errs, fmt.Errorf("redis url is required when redis is enabled"))
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, fmt.Errorf("rate limit requests per minute must be positive"))
		}
		if c.RateLimit.Distributed && !c.Redis.Enabled {
			errs = append(errs, fmt.Errorf("distributed rate limiting requires redis"))
		}
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			errs = append(errs, fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled"))
		}
		if c.Observability.OTelServiceName == "" {
			errs = append(errs, fmt.Errorf("OpenTelemetry service name is required when OTel is enabled"))
		}
	}

	return errors.Join(errs...)
}
