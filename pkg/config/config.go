package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
)

const (
	DefaultPort     = 3000
	DefaultActivity = "for commands (24/7 active)"
)

// ErrMissingToken is returned by Load when DISCORD_TOKEN is unset or blank.
var ErrMissingToken = errors.New("DISCORD_TOKEN environment variable is not set")

// Config is the root runtime configuration, read entirely from the environment.
type Config struct {
	Discord   DiscordConfig
	Server    ServerConfig
	Logging   LoggingConfig
	Heartbeat HeartbeatConfig
}

type DiscordConfig struct {
	Token    string `env:"DISCORD_TOKEN"`
	Activity string `env:"DISCORD_ACTIVITY" envDefault:"for commands (24/7 active)"`
}

// ServerConfig configures the liveness HTTP listener.
type ServerConfig struct {
	Host string `env:"HOST"`
	Port int    `env:"PORT" envDefault:"3000"`
}

// Addr returns the listen address in host:port form.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LoggingConfig controls log output format and verbosity.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// HeartbeatConfig controls the periodic presence refresh.
type HeartbeatConfig struct {
	Enabled bool   `env:"HEARTBEAT_ENABLED" envDefault:"true"`
	Cron    string `env:"HEARTBEAT_CRON" envDefault:"*/30 * * * *"`
}

// Load parses the process environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.Discord.Token = strings.TrimSpace(cfg.Discord.Token)
	if cfg.Discord.Token == "" {
		return nil, ErrMissingToken
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks value ranges that the env tags cannot express.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid PORT value: %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Discord.Activity) == "" {
		c.Discord.Activity = DefaultActivity
	}
	if c.Heartbeat.Enabled && strings.TrimSpace(c.Heartbeat.Cron) == "" {
		return errors.New("HEARTBEAT_CRON is required when the heartbeat is enabled")
	}
	return nil
}
