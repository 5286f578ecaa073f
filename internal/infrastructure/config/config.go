package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all relay configuration.
type Config struct {
	Server    ServerConfig
	Shell     ShellConfig
	Breaker   BreakerConfig
	WebSocket WebSocketConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"RELAY_PORT" default:"3001"`
	Host            string        `envconfig:"RELAY_HOST" default:"0.0.0.0"`
	ShutdownTimeout time.Duration `envconfig:"RELAY_SHUTDOWN_TIMEOUT" default:"5s"`
}

// ShellConfig controls how shells are launched.
type ShellConfig struct {
	// Path is the shell executable. Empty resolves $SHELL and platform defaults.
	Path string `envconfig:"RELAY_SHELL"`
	// Mode is auto, pty or pipe.
	Mode string `envconfig:"RELAY_SHELL_MODE" default:"auto"`
	// WorkDir is the cwd for create requests that carry none. Empty is the relay's own cwd.
	WorkDir   string        `envconfig:"RELAY_SHELL_WORKDIR"`
	KillGrace time.Duration `envconfig:"RELAY_SHELL_KILL_GRACE" default:"2s"`
}

// BreakerConfig holds the spawn circuit breaker configuration.
type BreakerConfig struct {
	Failures uint32        `envconfig:"RELAY_SPAWN_BREAKER_FAILURES" default:"5"`
	Timeout  time.Duration `envconfig:"RELAY_SPAWN_BREAKER_TIMEOUT" default:"30s"`
}

// WebSocketConfig holds per-connection transport limits.
type WebSocketConfig struct {
	MaxMessageBytes int64         `envconfig:"RELAY_WS_MAX_MESSAGE_BYTES" default:"1048576"`
	WriteTimeout    time.Duration `envconfig:"RELAY_WS_WRITE_TIMEOUT" default:"10s"`
	PingInterval    time.Duration `envconfig:"RELAY_WS_PING_INTERVAL" default:"30s"`
	PongTimeout     time.Duration `envconfig:"RELAY_WS_PONG_TIMEOUT" default:"60s"`
	SendQueue       int           `envconfig:"RELAY_WS_SEND_QUEUE" default:"256"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"RELAY_LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"RELAY_LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration for the terminal endpoint.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RELAY_RATE_LIMIT_RPS" default:"5"`
	Burst             int  `envconfig:"RELAY_RATE_LIMIT_BURST" default:"10"`
	Enabled           bool `envconfig:"RELAY_RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "3001",
			Host:            "0.0.0.0",
			ShutdownTimeout: 5 * time.Second,
		},
		Shell: ShellConfig{
			Mode:      "auto",
			KillGrace: 2 * time.Second,
		},
		Breaker: BreakerConfig{
			Failures: 5,
			Timeout:  30 * time.Second,
		},
		WebSocket: WebSocketConfig{
			MaxMessageBytes: 1 << 20,
			WriteTimeout:    10 * time.Second,
			PingInterval:    30 * time.Second,
			PongTimeout:     60 * time.Second,
			SendQueue:       256,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             10,
			Enabled:           true,
		},
	}
}

// Address returns the listen address.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}

// Validate checks values envconfig cannot check on its own.
func (c *Config) Validate() error {
	var errs []error

	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %q", c.Server.Port))
	}

	switch c.Shell.Mode {
	case "auto", "pty", "pipe":
	default:
		errs = append(errs, fmt.Errorf("invalid shell mode %q (want auto, pty or pipe)", c.Shell.Mode))
	}

	if c.Shell.WorkDir != "" {
		if info, err := os.Stat(c.Shell.WorkDir); err != nil || !info.IsDir() {
			errs = append(errs, fmt.Errorf("shell workdir %q is not a directory", c.Shell.WorkDir))
		}
	}

	if c.Shell.KillGrace <= 0 {
		errs = append(errs, errors.New("shell kill grace must be positive"))
	}
	if c.Breaker.Failures == 0 {
		errs = append(errs, errors.New("spawn breaker failures must be at least 1"))
	}
	if c.WebSocket.MaxMessageBytes <= 0 {
		errs = append(errs, errors.New("websocket max message size must be positive"))
	}
	if c.WebSocket.SendQueue <= 0 {
		errs = append(errs, errors.New("websocket send queue must be positive"))
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.PingInterval >= c.WebSocket.PongTimeout {
		errs = append(errs, fmt.Errorf("websocket ping interval %s must be positive and shorter than pong timeout %s",
			c.WebSocket.PingInterval, c.WebSocket.PongTimeout))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("rate limit rps and burst must be positive when enabled"))
	}

	return errors.Join(errs...)
}
