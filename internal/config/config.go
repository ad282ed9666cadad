// Package config loads the application configuration from an optional
// YAML file overlaid by SPORTSBET_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// envPrefix namespaces every environment variable, e.g.
// SPORTSBET_SERVER_PORT.
const envPrefix = "SPORTSBET"

// Config is the complete application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	WebSocket  WebSocketConfig  `yaml:"websocket" envconfig:"WEBSOCKET"`
	Wizard     WizardConfig     `yaml:"wizard" envconfig:"WIZARD"`
	DataLoader DataLoaderConfig `yaml:"dataloader" envconfig:"DATALOADER"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
}

// WebSocketConfig contains WebSocket configuration.
type WebSocketConfig struct {
	ReadBufferSize  int `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
}

// WizardConfig contains wizard controller configuration.
type WizardConfig struct {
	// FetchWorkers bounds the worker pool shared by a session's fetches.
	FetchWorkers int `yaml:"fetch_workers" envconfig:"FETCH_WORKERS" default:"4"`
	// SessionTTL evicts idle sessions.
	SessionTTL time.Duration `yaml:"session_ttl" envconfig:"SESSION_TTL" default:"2h"`
}

// DataLoaderConfig contains upstream data archive configuration.
type DataLoaderConfig struct {
	BaseURL string        `yaml:"base_url" envconfig:"BASE_URL" default:"https://www.football-data.co.uk"`
	Timeout time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"60s"`
}

// RateLimitConfig contains API rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"50"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"25"`
}

// Load reads the YAML file named by SPORTSBET_CONFIG (default
// config.yaml, missing file tolerated), then overlays environment
// variables, then validates.
func Load() (*Config, error) {
	var cfg Config

	path := os.Getenv(envPrefix + "_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Wizard.FetchWorkers < 1 {
		return fmt.Errorf("wizard fetch workers must be positive, got %d", c.Wizard.FetchWorkers)
	}
	if c.DataLoader.BaseURL == "" {
		return fmt.Errorf("dataloader base URL is required")
	}
	if c.RateLimit.Enabled && c.RateLimit.RPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive, got %v", c.RateLimit.RPS)
	}
	return nil
}
