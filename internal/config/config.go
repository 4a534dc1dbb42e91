// Package config provides YAML-based configuration loading for Switchyard.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file the CLI reads when --config is not given.
const DefaultPath = "switchyard.yaml"

// EnvPrefix prefixes every environment override, e.g. SWITCHYARD_DATABASE_DSN.
const EnvPrefix = "SWITCHYARD"

// Config is the top-level Switchyard configuration, loaded from switchyard.yaml.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// DatabaseConfig selects and addresses the backing store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // mysql or sqlite
	DSN      string `yaml:"dsn"`    // overrides the discrete MySQL fields when set
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Path     string `yaml:"path"` // sqlite file
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	Dev      bool   `yaml:"dev"`
}

// AuthConfig maps static API tokens to user emails.
type AuthConfig struct {
	Tokens map[string]string `yaml:"tokens"`
}

// NotifyConfig configures the chat notifier.
type NotifyConfig struct {
	Platform        string        `yaml:"platform"` // slack, discord or empty to disable
	Channel         string        `yaml:"channel"`
	PollIntervalSec int           `yaml:"poll_interval_sec"`
	Slack           SlackConfig   `yaml:"slack"`
	Discord         DiscordConfig `yaml:"discord"`
	Digest          DigestConfig  `yaml:"digest"`
}

// SlackConfig holds Slack credentials.
type SlackConfig struct {
	BotToken string `yaml:"bot_token"`
}

// DiscordConfig holds Discord credentials.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
}

// DigestConfig schedules the periodic project summary.
type DigestConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // 5-field cron expression
}

// Load reads a YAML config file from path, applies environment overrides and
// returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return parse(data, envOverrides())
}

// Parse unmarshals YAML bytes into a validated Config. Environment
// overrides are not applied.
func Parse(data []byte) (*Config, error) {
	return parse(data, nil)
}

func parse(data []byte, env *viper.Viper) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if env != nil {
		cfg.applyEnv(env)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envOverrides returns a viper instance bound to the SWITCHYARD_* variables.
func envOverrides() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	return v
}

var envKeys = []string{
	"database.driver",
	"database.dsn",
	"database.host",
	"database.port",
	"database.name",
	"database.user",
	"database.password",
	"database.path",
	"server.port",
	"server.log_level",
	"notify.platform",
	"notify.channel",
	"notify.slack.bot_token",
	"notify.discord.bot_token",
	"notify.digest.schedule",
}

// applyEnv overlays any environment values that are set.
func (c *Config) applyEnv(v *viper.Viper) {
	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	setInt := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	setString("database.driver", &c.Database.Driver)
	setString("database.dsn", &c.Database.DSN)
	setString("database.host", &c.Database.Host)
	setInt("database.port", &c.Database.Port)
	setString("database.name", &c.Database.Name)
	setString("database.user", &c.Database.User)
	setString("database.password", &c.Database.Password)
	setString("database.path", &c.Database.Path)
	setInt("server.port", &c.Server.Port)
	setString("server.log_level", &c.Server.LogLevel)
	setString("notify.platform", &c.Notify.Platform)
	setString("notify.channel", &c.Notify.Channel)
	setString("notify.slack.bot_token", &c.Notify.Slack.BotToken)
	setString("notify.discord.bot_token", &c.Notify.Discord.BotToken)
	setString("notify.digest.schedule", &c.Notify.Digest.Schedule)
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			c.Database.Path = "switchyard.db"
		}
	case "mysql":
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.Name == "" {
			c.Database.Name = "switchyard"
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Notify.PollIntervalSec == 0 {
		c.Notify.PollIntervalSec = 5
	}
	if c.Notify.Digest.Schedule == "" {
		c.Notify.Digest.Schedule = "0 9 * * *"
	}
}

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be mysql or sqlite", c.Database.Driver))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if !logLevels[c.Server.LogLevel] {
		errs = append(errs, fmt.Sprintf("server.log_level %q must be debug, info, warn or error", c.Server.LogLevel))
	}
	for token, email := range c.Auth.Tokens {
		if token == "" || email == "" {
			errs = append(errs, "auth.tokens entries need both a token and an email")
			break
		}
	}
	switch c.Notify.Platform {
	case "":
	case "slack":
		if c.Notify.Slack.BotToken == "" {
			errs = append(errs, "notify.slack.bot_token is required for platform slack")
		}
	case "discord":
		if c.Notify.Discord.BotToken == "" {
			errs = append(errs, "notify.discord.bot_token is required for platform discord")
		}
	default:
		errs = append(errs, fmt.Sprintf("notify.platform %q must be slack or discord", c.Notify.Platform))
	}
	if c.Notify.Platform != "" && c.Notify.Channel == "" {
		errs = append(errs, "notify.channel is required when a platform is set")
	}
	if c.Notify.PollIntervalSec < 0 {
		errs = append(errs, "notify.poll_interval_sec must not be negative")
	}
	if c.Notify.Digest.Enabled {
		if _, err := cron.ParseStandard(c.Notify.Digest.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("notify.digest.schedule %q: %v", c.Notify.Digest.Schedule, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
