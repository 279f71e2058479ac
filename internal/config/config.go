// Package config provides configuration management for the OncoBrief service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Storage backend constants.
const (
	// StoragePostgres persists digests, articles, journals, and podcasts in PostgreSQL.
	StoragePostgres = "postgres"
	// StorageMemory keeps everything in process memory. Intended for local
	// development and tests; all data is lost on restart.
	StorageMemory = "memory"
)

// Config holds all configuration for the OncoBrief service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Storage selects the persistence backend.
	Storage StorageConfig `mapstructure:"storage"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// PubMed contains NCBI E-utilities client settings.
	PubMed PubMedConfig `mapstructure:"pubmed"`
	// Gemini contains Gemini API client settings for summarization.
	Gemini GeminiConfig `mapstructure:"gemini"`
	// Polly contains AWS Polly text-to-speech settings.
	Polly PollyConfig `mapstructure:"polly"`
	// Email contains SMTP settings for digest delivery.
	Email EmailConfig `mapstructure:"email"`
	// Digest contains digest generation pipeline settings.
	Digest DigestConfig `mapstructure:"digest"`
	// Scheduler contains the weekly digest cron settings.
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response. Digest
	// generation runs inline in the request, so this must cover the full
	// pipeline.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	// Default is "require" for production security. Use "disable" only for local development.
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool (default: 25).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 5).
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is either "postgres" or "memory".
	Backend string `mapstructure:"backend"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json or console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout or stderr).
	Output string `mapstructure:"output"`
	// TimeFormat is the timestamp format for log entries.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is exposed.
	Enabled bool `mapstructure:"enabled"`
	// Path is the metrics endpoint path.
	Path string `mapstructure:"path"`
}

// PubMedConfig holds NCBI E-utilities client settings.
type PubMedConfig struct {
	// BaseURL is the E-utilities base URL.
	BaseURL string `mapstructure:"base_url"`
	// APIKey raises the NCBI rate limit from 3 to 10 req/s when set
	// (loaded from ONCOBRIEF_PUBMED_API_KEY).
	APIKey string `mapstructure:"-"`
	// Timeout is the timeout for E-utilities calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// MaxResults is the maximum PMIDs requested per search.
	MaxResults int `mapstructure:"max_results"`
}

// GeminiConfig holds Gemini API client settings.
type GeminiConfig struct {
	// APIKey is the Gemini API key (loaded from ONCOBRIEF_GEMINI_API_KEY).
	APIKey string `mapstructure:"-"`
	// Model is the Gemini model name.
	Model string `mapstructure:"model"`
	// BaseURL is the Generative Language API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the per-request timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the number of attempts before falling back.
	MaxRetries int `mapstructure:"max_retries"`
	// Temperature controls generation randomness.
	Temperature float64 `mapstructure:"temperature"`
}

// PollyConfig holds AWS Polly text-to-speech settings.
type PollyConfig struct {
	// Enabled controls whether podcast synthesis is available.
	Enabled bool `mapstructure:"enabled"`
	// Region is the AWS region for the Polly client. Credentials come from
	// the standard AWS credential chain.
	Region string `mapstructure:"region"`
	// VoiceID is the Polly voice used for narration.
	VoiceID string `mapstructure:"voice_id"`
	// OutputDir is the directory where audio and transcript files are written.
	OutputDir string `mapstructure:"output_dir"`
	// PublicPath is the URL path prefix under which OutputDir is served.
	PublicPath string `mapstructure:"public_path"`
}

// EmailConfig holds SMTP settings for digest delivery.
type EmailConfig struct {
	// Enabled controls whether email delivery is available.
	Enabled bool `mapstructure:"enabled"`
	// Host is the SMTP server hostname.
	Host string `mapstructure:"host"`
	// Port is the SMTP server port.
	Port int `mapstructure:"port"`
	// Username is the SMTP username.
	Username string `mapstructure:"username"`
	// Password is the SMTP password (loaded from ONCOBRIEF_EMAIL_PASSWORD).
	Password string `mapstructure:"-"`
	// From is the sender address for digest emails.
	From string `mapstructure:"from"`
	// BaseURL is the public base URL used to build links in email bodies.
	BaseURL string `mapstructure:"base_url"`
}

// DigestConfig holds digest generation pipeline settings.
type DigestConfig struct {
	// ProcessLimit caps the number of articles summarized per digest.
	ProcessLimit int `mapstructure:"process_limit"`
	// ArticleDelay is the pause between per-article summarization calls.
	ArticleDelay time.Duration `mapstructure:"article_delay"`
	// SubjectTerms are the oncology subject terms OR'd into every PubMed query.
	SubjectTerms []string `mapstructure:"subject_terms"`
}

// SchedulerConfig holds the weekly digest cron settings.
type SchedulerConfig struct {
	// Enabled controls whether the in-process scheduler runs.
	Enabled bool `mapstructure:"enabled"`
	// Spec is the cron expression for the weekly digest job.
	Spec string `mapstructure:"spec"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("ONCOBRIEF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/oncobrief")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	cfg.PubMed.APIKey = os.Getenv("ONCOBRIEF_PUBMED_API_KEY")
	cfg.Gemini.APIKey = os.Getenv("ONCOBRIEF_GEMINI_API_KEY")
	cfg.Email.Password = os.Getenv("ONCOBRIEF_EMAIL_PASSWORD")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	// Digest generation summarizes up to 50 articles inline, so responses
	// can take several minutes.
	v.SetDefault("server.write_timeout", "10m")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "oncobrief")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "oncobrief")
	// Default to "require" for production security. Use ONCOBRIEF_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)

	// Storage defaults
	v.SetDefault("storage.backend", StoragePostgres)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// PubMed defaults
	v.SetDefault("pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("pubmed.timeout", "30s")
	v.SetDefault("pubmed.rate_limit", 3.0) // NCBI recommends max 3 req/sec without API key
	v.SetDefault("pubmed.max_results", 100)

	// Gemini defaults
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("gemini.timeout", "30s")
	v.SetDefault("gemini.max_retries", 3)
	v.SetDefault("gemini.temperature", 0.2)

	// Polly defaults
	v.SetDefault("polly.enabled", false)
	v.SetDefault("polly.region", "us-east-1")
	v.SetDefault("polly.voice_id", "Matthew")
	v.SetDefault("polly.output_dir", "public/podcasts")
	v.SetDefault("polly.public_path", "/podcasts")

	// Email defaults
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.host", "")
	v.SetDefault("email.port", 587)
	v.SetDefault("email.username", "")
	v.SetDefault("email.from", "")
	v.SetDefault("email.base_url", "http://localhost:8080")

	// Digest defaults
	v.SetDefault("digest.process_limit", 50)
	v.SetDefault("digest.article_delay", "50ms")
	v.SetDefault("digest.subject_terms", []string{
		"carcinoma[Title/Abstract]",
		"adenocarcinoma[Title/Abstract]",
		"sarcoma[Title/Abstract]",
		"melanoma[Title/Abstract]",
		"cancer[Title/Abstract]",
		"tumor[Title/Abstract]",
		"oncology[Title/Abstract]",
	})

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", false)
	// Monday 06:00 covers the previous calendar week.
	v.SetDefault("scheduler.spec", "0 6 * * 1")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	// Validate storage backend
	switch c.Storage.Backend {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("invalid storage backend: %q (must be %q or %q)", c.Storage.Backend, StoragePostgres, StorageMemory)
	}

	// Postgres settings only matter when the postgres backend is selected.
	if c.Storage.Backend == StoragePostgres {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Database.Port)
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
		}
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate PubMed config
	if c.PubMed.BaseURL == "" {
		return fmt.Errorf("pubmed base_url is required")
	}
	if c.PubMed.MaxResults <= 0 {
		return fmt.Errorf("pubmed max_results must be positive")
	}
	if c.PubMed.RateLimit <= 0 {
		return fmt.Errorf("pubmed rate_limit must be positive")
	}

	// Validate Gemini config
	if c.Gemini.Model == "" {
		return fmt.Errorf("gemini model is required")
	}
	if c.Gemini.MaxRetries <= 0 {
		return fmt.Errorf("gemini max_retries must be positive")
	}

	// Validate digest config
	if c.Digest.ProcessLimit <= 0 {
		return fmt.Errorf("digest process_limit must be positive")
	}
	if len(c.Digest.SubjectTerms) == 0 {
		return fmt.Errorf("digest subject_terms must not be empty")
	}

	// Email settings are only required when delivery is enabled.
	if c.Email.Enabled {
		if c.Email.Host == "" {
			return fmt.Errorf("email host is required when email is enabled")
		}
		if c.Email.From == "" {
			return fmt.Errorf("email from address is required when email is enabled")
		}
	}

	if c.Scheduler.Enabled && c.Scheduler.Spec == "" {
		return fmt.Errorf("scheduler spec is required when the scheduler is enabled")
	}

	return nil
}
