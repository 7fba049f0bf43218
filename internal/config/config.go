// Package config provides YAML-based configuration loading for the
// supervisor hub and agent workers.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration, loaded from blown.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`
	DB     DBConfig     `yaml:"db"`
	Sweep  SweepConfig  `yaml:"sweep"`
	Agent  AgentConfig  `yaml:"agent"`
	Notify NotifyConfig `yaml:"notify"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DBConfig selects and configures the storage backend. SQLite is the
// single-process default; MySQL serves shared deployments.
type DBConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" or "mysql"
	Path     string `yaml:"path"`   // sqlite database file
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// SweepConfig controls the pending-request timeout sweeper.
type SweepConfig struct {
	IntervalMinutes int    `yaml:"interval_minutes"`
	Schedule        string `yaml:"schedule"` // optional 5-field cron expression, overrides interval
	TimeoutHours    int    `yaml:"timeout_hours"`
}

// AgentConfig holds settings for voice-agent workers.
type AgentConfig struct {
	ServerURL         string `yaml:"server_url"`
	ReconnectDelaySec int    `yaml:"reconnect_delay_sec"`
}

// NotifyConfig holds supervisor notification channel settings. An empty
// token disables the corresponding adapter.
type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig configures the Slack notification adapter.
type SlackConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// DiscordConfig configures the Discord notification adapter.
type DiscordConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a Config with all defaults applied, for running
// without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.DB.Driver == "" {
		c.DB.Driver = "sqlite"
	}
	if c.DB.Path == "" {
		c.DB.Path = "blown.db"
	}
	if c.DB.Host == "" {
		c.DB.Host = "127.0.0.1"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 3306
	}
	if c.Sweep.IntervalMinutes == 0 {
		c.Sweep.IntervalMinutes = 60
	}
	if c.Sweep.TimeoutHours == 0 {
		c.Sweep.TimeoutHours = 24
	}
	if c.Agent.ServerURL == "" {
		c.Agent.ServerURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	if c.Agent.ReconnectDelaySec == 0 {
		c.Agent.ReconnectDelaySec = 5
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	switch c.DB.Driver {
	case "sqlite":
	case "mysql":
		if c.DB.Database == "" {
			errs = append(errs, "db.database is required for mysql")
		}
		if c.DB.User == "" {
			errs = append(errs, "db.user is required for mysql")
		}
	default:
		errs = append(errs, fmt.Sprintf("db.driver %q is not supported (sqlite, mysql)", c.DB.Driver))
	}
	if c.Sweep.IntervalMinutes < 0 {
		errs = append(errs, "sweep.interval_minutes must not be negative")
	}
	if c.Sweep.TimeoutHours < 0 {
		errs = append(errs, "sweep.timeout_hours must not be negative")
	}
	if c.Notify.Slack.Token != "" && c.Notify.Slack.Channel == "" {
		errs = append(errs, "notify.slack.channel is required when a slack token is set")
	}
	if c.Notify.Discord.Token != "" && c.Notify.Discord.Channel == "" {
		errs = append(errs, "notify.discord.channel is required when a discord token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
