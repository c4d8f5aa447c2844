// Package config handles loading and validation of application configuration
// from environment variables.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/marketloop/mobile-backend/logger"
	"github.com/spf13/viper"
)

// Environment represents the application's running environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Environment    Environment `mapstructure:"ENVIRONMENT" yaml:"environment"`
	Port           string      `mapstructure:"PORT" yaml:"port"`
	AllowedOrigins []string    `mapstructure:"ALLOWED_ORIGINS" yaml:"allowed_origins"`
	Version        string      `mapstructure:"VERSION" yaml:"version"`
}

// DatabaseConfig holds PostgreSQL database connection details.
type DatabaseConfig struct {
	Host         string `mapstructure:"HOST" yaml:"host"`
	Port         int    `mapstructure:"PORT" yaml:"port"`
	User         string `mapstructure:"USER" yaml:"user"`
	Password     string `mapstructure:"PASSWORD" yaml:"password"`
	Name         string `mapstructure:"NAME" yaml:"name"`
	SSLMode      string `mapstructure:"SSL_MODE" yaml:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"MAX_OPEN_CONNS" yaml:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"MAX_IDLE_CONNS" yaml:"max_idle_conns"`
	ConnMaxLife  string `mapstructure:"CONN_MAX_LIFE" yaml:"conn_max_life"`
}

// URL returns a postgres:// connection URL suitable for golang-migrate and
// other URL-based database tools.
func (c *DatabaseConfig) URL() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		sslmode,
	)
}

// RedisConfig holds Redis connection details.
type RedisConfig struct {
	Address      string `mapstructure:"ADDRESS" yaml:"address"`
	Password     string `mapstructure:"PASSWORD" yaml:"password"`
	DB           int    `mapstructure:"DB" yaml:"db"`
	UseTLS       bool   `mapstructure:"USE_TLS" yaml:"use_tls"`
	PoolSize     int    `mapstructure:"POOL_SIZE" yaml:"pool_size"`
	MinIdleConns int    `mapstructure:"MIN_IDLE_CONNS" yaml:"min_idle_conns"`
}

// WorkerPoolConfig holds configuration for the dispatch worker pool.
type WorkerPoolConfig struct {
	// MaxWorkers is the number of concurrent workers (default: 10)
	MaxWorkers int `mapstructure:"MAX_WORKERS" yaml:"max_workers"`
	// QueueSize is the maximum number of pending jobs (default: 1000)
	QueueSize int `mapstructure:"QUEUE_SIZE" yaml:"queue_size"`
	// ShutdownTimeoutSeconds is the max time to wait for workers during shutdown (default: 30)
	ShutdownTimeoutSeconds int `mapstructure:"SHUTDOWN_TIMEOUT_SECONDS" yaml:"shutdown_timeout_seconds"`
}

// DispatchConfig holds delivery retry and transport settings.
type DispatchConfig struct {
	// MaxAttempts is the per-device transport retry budget (default: 3)
	MaxAttempts int `mapstructure:"MAX_ATTEMPTS" yaml:"max_attempts"`
	// RetryBackoffMillis is the base backoff between transport retries (default: 500)
	RetryBackoffMillis int `mapstructure:"RETRY_BACKOFF_MILLIS" yaml:"retry_backoff_millis"`
	// TransportTimeoutSeconds bounds a single transport call (default: 10)
	TransportTimeoutSeconds int `mapstructure:"TRANSPORT_TIMEOUT_SECONDS" yaml:"transport_timeout_seconds"`
	// SchedulerIntervalSeconds is how often due scheduled notifications are scanned (default: 15)
	SchedulerIntervalSeconds int `mapstructure:"SCHEDULER_INTERVAL_SECONDS" yaml:"scheduler_interval_seconds"`
	// ProviderURL is the push transport provider endpoint
	ProviderURL string `mapstructure:"PROVIDER_URL" yaml:"provider_url"`
	// SegmentDirectoryURL is the segment membership lookup endpoint
	SegmentDirectoryURL string `mapstructure:"SEGMENT_DIRECTORY_URL" yaml:"segment_directory_url"`
	// LookupTimeoutSeconds bounds segment/location lookups during targeting (default: 5)
	LookupTimeoutSeconds int `mapstructure:"LOOKUP_TIMEOUT_SECONDS" yaml:"lookup_timeout_seconds"`
}

// RetryBackoff returns the base backoff as a duration.
func (c DispatchConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMillis) * time.Millisecond
}

// SyncConfig holds sync coordinator settings.
type SyncConfig struct {
	// BatchConcurrency bounds parallel item commits within one sync call (default: 8)
	BatchConcurrency int `mapstructure:"BATCH_CONCURRENCY" yaml:"batch_concurrency"`
	// MaxBatchSize caps the number of changes accepted per sync call (default: 500)
	MaxBatchSize int `mapstructure:"MAX_BATCH_SIZE" yaml:"max_batch_size"`
}

// GeofenceConfig holds geofence evaluation settings.
type GeofenceConfig struct {
	// DwellThresholdSeconds is how long continuous presence must last before
	// a dwell event fires (default: 300)
	DwellThresholdSeconds int `mapstructure:"DWELL_THRESHOLD_SECONDS" yaml:"dwell_threshold_seconds"`
	// LocationTTLHours is how long last-known locations stay valid for
	// targeting (default: 24)
	LocationTTLHours int `mapstructure:"LOCATION_TTL_HOURS" yaml:"location_ttl_hours"`
}

// DwellThreshold returns the dwell threshold as a duration.
func (c GeofenceConfig) DwellThreshold() time.Duration {
	return time.Duration(c.DwellThresholdSeconds) * time.Second
}

// Config aggregates all application configuration sections.
type Config struct {
	Server     ServerConfig     `mapstructure:"SERVER" yaml:"server"`
	Database   DatabaseConfig   `mapstructure:"DATABASE" yaml:"database"`
	Redis      RedisConfig      `mapstructure:"REDIS" yaml:"redis"`
	WorkerPool WorkerPoolConfig `mapstructure:"WORKER_POOL" yaml:"worker_pool"`
	Dispatch   DispatchConfig   `mapstructure:"DISPATCH" yaml:"dispatch"`
	Sync       SyncConfig       `mapstructure:"SYNC" yaml:"sync"`
	Geofence   GeofenceConfig   `mapstructure:"GEOFENCE" yaml:"geofence"`
}

// IsDevelopment returns true if the application is running in development environment.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == EnvDevelopment
}

// IsProduction returns true if the application is running in production environment.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}

// bindEnvVars binds multiple environment variables to config keys.
func bindEnvVars(v *viper.Viper, bindings [][2]string) error {
	for _, b := range bindings {
		if err := v.BindEnv(b[0], b[1]); err != nil {
			return fmt.Errorf("failed to bind %s: %w", b[0], err)
		}
	}
	return nil
}

// LoadConfig loads configuration from environment variables using Viper,
// sets default values, unmarshals into the Config struct, and validates it.
func LoadConfig() (*Config, error) {
	v := viper.New()
	log := logger.GetLogger()

	v.SetDefault("SERVER.ENVIRONMENT", EnvDevelopment)
	v.SetDefault("SERVER.PORT", "8080")
	v.SetDefault("SERVER.ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("DATABASE.HOST", "localhost")
	v.SetDefault("DATABASE.PORT", 5432)
	v.SetDefault("DATABASE.USER", "postgres")
	v.SetDefault("DATABASE.PASSWORD", "")
	v.SetDefault("DATABASE.NAME", "mobile_backend_dev")
	v.SetDefault("DATABASE.SSL_MODE", "disable")
	v.SetDefault("DATABASE.MAX_OPEN_CONNS", 10)
	v.SetDefault("DATABASE.MAX_IDLE_CONNS", 2)
	v.SetDefault("DATABASE.CONN_MAX_LIFE", "1h")
	v.SetDefault("REDIS.ADDRESS", "localhost:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)
	v.SetDefault("REDIS.USE_TLS", false)
	v.SetDefault("REDIS.POOL_SIZE", 5)
	v.SetDefault("REDIS.MIN_IDLE_CONNS", 1)
	v.SetDefault("WORKER_POOL.MAX_WORKERS", 10)
	v.SetDefault("WORKER_POOL.QUEUE_SIZE", 1000)
	v.SetDefault("WORKER_POOL.SHUTDOWN_TIMEOUT_SECONDS", 30)
	v.SetDefault("DISPATCH.MAX_ATTEMPTS", 3)
	v.SetDefault("DISPATCH.RETRY_BACKOFF_MILLIS", 500)
	v.SetDefault("DISPATCH.TRANSPORT_TIMEOUT_SECONDS", 10)
	v.SetDefault("DISPATCH.SCHEDULER_INTERVAL_SECONDS", 15)
	v.SetDefault("DISPATCH.PROVIDER_URL", "")
	v.SetDefault("DISPATCH.SEGMENT_DIRECTORY_URL", "")
	v.SetDefault("DISPATCH.LOOKUP_TIMEOUT_SECONDS", 5)
	v.SetDefault("SYNC.BATCH_CONCURRENCY", 8)
	v.SetDefault("SYNC.MAX_BATCH_SIZE", 500)
	v.SetDefault("GEOFENCE.DWELL_THRESHOLD_SECONDS", 300)
	v.SetDefault("GEOFENCE.LOCATION_TTL_HOURS", 24)
	v.SetDefault("LOG_LEVEL", "info")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envBindings := [][2]string{
		{"SERVER.ENVIRONMENT", "SERVER_ENVIRONMENT"},
		{"SERVER.PORT", "PORT"},
		{"SERVER.ALLOWED_ORIGINS", "ALLOWED_ORIGINS"},
		{"SERVER.VERSION", "VERSION"},
		{"DATABASE.HOST", "DB_HOST"},
		{"DATABASE.PORT", "DB_PORT"},
		{"DATABASE.USER", "DB_USER"},
		{"DATABASE.PASSWORD", "DB_PASSWORD"},
		{"DATABASE.NAME", "DB_NAME"},
		{"DATABASE.SSL_MODE", "DB_SSL_MODE"},
		{"REDIS.ADDRESS", "REDIS_ADDRESS"},
		{"REDIS.PASSWORD", "REDIS_PASSWORD"},
		{"REDIS.DB", "REDIS_DB"},
		{"REDIS.USE_TLS", "REDIS_USE_TLS"},
		{"WORKER_POOL.MAX_WORKERS", "WORKER_POOL_MAX_WORKERS"},
		{"WORKER_POOL.QUEUE_SIZE", "WORKER_POOL_QUEUE_SIZE"},
		{"WORKER_POOL.SHUTDOWN_TIMEOUT_SECONDS", "WORKER_POOL_SHUTDOWN_TIMEOUT_SECONDS"},
		{"DISPATCH.MAX_ATTEMPTS", "DISPATCH_MAX_ATTEMPTS"},
		{"DISPATCH.RETRY_BACKOFF_MILLIS", "DISPATCH_RETRY_BACKOFF_MILLIS"},
		{"DISPATCH.TRANSPORT_TIMEOUT_SECONDS", "DISPATCH_TRANSPORT_TIMEOUT_SECONDS"},
		{"DISPATCH.SCHEDULER_INTERVAL_SECONDS", "DISPATCH_SCHEDULER_INTERVAL_SECONDS"},
		{"DISPATCH.PROVIDER_URL", "DISPATCH_PROVIDER_URL"},
		{"DISPATCH.SEGMENT_DIRECTORY_URL", "DISPATCH_SEGMENT_DIRECTORY_URL"},
		{"DISPATCH.LOOKUP_TIMEOUT_SECONDS", "DISPATCH_LOOKUP_TIMEOUT_SECONDS"},
		{"SYNC.BATCH_CONCURRENCY", "SYNC_BATCH_CONCURRENCY"},
		{"SYNC.MAX_BATCH_SIZE", "SYNC_MAX_BATCH_SIZE"},
		{"GEOFENCE.DWELL_THRESHOLD_SECONDS", "GEOFENCE_DWELL_THRESHOLD_SECONDS"},
		{"GEOFENCE.LOCATION_TTL_HOURS", "GEOFENCE_LOCATION_TTL_HOURS"},
	}

	if err := bindEnvVars(v, envBindings); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal failed: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	log.Infow("Configuration loaded",
		"environment", cfg.Server.Environment,
		"server_port", cfg.Server.Port,
		"db_host", cfg.Database.Host,
		"redis_address", cfg.Redis.Address,
		"worker_pool_max_workers", cfg.WorkerPool.MaxWorkers,
		"dispatch_max_attempts", cfg.Dispatch.MaxAttempts,
	)
	return &cfg, nil
}

// validateConfig checks if the loaded configuration values are valid.
func validateConfig(cfg *Config) error {
	if cfg.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if !containsWildcard(cfg.Server.AllowedOrigins) {
		for _, origin := range cfg.Server.AllowedOrigins {
			if _, err := url.ParseRequestURI(origin); err != nil {
				return fmt.Errorf("invalid allowed origin '%s': %w", origin, err)
			}
		}
	}
	if cfg.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if cfg.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if cfg.Redis.Address == "" {
		return fmt.Errorf("redis address is required")
	}
	if cfg.WorkerPool.MaxWorkers <= 0 {
		return fmt.Errorf("worker pool max workers must be positive")
	}
	if cfg.WorkerPool.QueueSize <= 0 {
		return fmt.Errorf("worker pool queue size must be positive")
	}
	if cfg.Dispatch.MaxAttempts <= 0 {
		return fmt.Errorf("dispatch max attempts must be positive")
	}
	if cfg.Sync.BatchConcurrency <= 0 {
		return fmt.Errorf("sync batch concurrency must be positive")
	}
	if cfg.Geofence.DwellThresholdSeconds <= 0 {
		return fmt.Errorf("geofence dwell threshold must be positive")
	}
	return nil
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
