package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment prefix of every setting, e.g. DOCUPILOT_API_URL.
const Prefix = "DOCUPILOT"

// Persistence drivers.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Config holds the configuration of a docupilot workspace.
// Environment variables are parsed from the DOCUPILOT_ prefix.
type Config struct {
	// Backend API
	APIURL          string        `envconfig:"API_URL" default:"http://localhost:8000/api"`
	HTTPTimeout     time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
	RetryMaxElapsed time.Duration `envconfig:"RETRY_MAX_ELAPSED" default:"10s"`

	// Persistence of the session and theme
	DataDir          string `envconfig:"DATA_DIR" default:""`
	PersistDriver    string `envconfig:"PERSIST_DRIVER" default:"sqlite"`
	PersistNamespace string `envconfig:"PERSIST_NAMESPACE" default:"persist:root"`
	RedisAddr        string `envconfig:"REDIS_ADDR" default:"localhost:6379"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE" default:""`
	Debug    bool   `envconfig:"DEBUG" default:"false"`

	// Request executor
	Shards    int `envconfig:"SHARDS" default:"4"`
	QueueSize int `envconfig:"QUEUE_SIZE" default:"128"`
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid API_URL %q", c.APIURL)
	}
	switch c.PersistDriver {
	case DriverSQLite, DriverMemory:
	case DriverRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("PERSIST_DRIVER=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unsupported PERSIST_DRIVER: %s", c.PersistDriver)
	}
	if c.PersistNamespace == "" {
		return fmt.Errorf("PERSIST_NAMESPACE must not be empty")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.Shards <= 0 || c.QueueSize <= 0 {
		return fmt.Errorf("SHARDS and QUEUE_SIZE must be positive")
	}
	return nil
}

// New creates a Config from the environment. A .env file in the working
// directory, when present, is loaded first; variables already set win.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv parses the environment without consulting .env files.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
