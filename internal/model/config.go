package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// APIConfig holds the connection settings for the fleet backend.
type APIConfig struct {
	// BaseURL is the root of the REST API (e.g., https://fleet.example.com/api).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds a single HTTP round trip.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// MaxRetries is how many times a rate-limited request is retried.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// InboxConfig holds notification polling settings.
type InboxConfig struct {
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
	PageSize        int `mapstructure:"page_size" yaml:"page_size"`
}

// PrincipalConfig describes the signed-in operator. Authentication itself
// happens elsewhere; the console only needs the display name and roles.
type PrincipalConfig struct {
	Name  string   `mapstructure:"name" yaml:"name"`
	Roles []string `mapstructure:"roles" yaml:"roles"`
}

// LogConfig controls where and how verbosely the console logs.
type LogConfig struct {
	File  string `mapstructure:"file" yaml:"file"`
	Level string `mapstructure:"level" yaml:"level"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API       APIConfig       `mapstructure:"api" yaml:"api"`
	Inbox     InboxConfig     `mapstructure:"inbox" yaml:"inbox"`
	Principal PrincipalConfig `mapstructure:"principal" yaml:"principal"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// Operator returns the configured principal.
func (c *AppConfig) Operator() Principal {
	return Principal{Name: c.Principal.Name, Roles: c.Principal.Roles}
}

// PollInterval is the inbox refresh period.
func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.Inbox.PollIntervalSec) * time.Second
}

// RequestTimeout bounds one HTTP round trip.
func (c *AppConfig) RequestTimeout() time.Duration {
	return time.Duration(c.API.TimeoutSec) * time.Second
}

// configDir returns ~/.config/fleetconsole, or the working directory when
// the home directory cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "fleetconsole")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/fleetconsole/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			TimeoutSec: 30,
			MaxRetries: 3,
		},
		Inbox: InboxConfig{
			PollIntervalSec: 30,
			PageSize:        50,
		},
		Log: LogConfig{
			File:  filepath.Join(configDir(), "console.log"),
			Level: "info",
		},
	}
}

// setDefaults registers every key so environment overrides are picked up
// by Unmarshal even when the file does not mention them.
func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("api.base_url", "")
	v.SetDefault("api.timeout_sec", d.API.TimeoutSec)
	v.SetDefault("api.max_retries", d.API.MaxRetries)
	v.SetDefault("inbox.poll_interval_sec", d.Inbox.PollIntervalSec)
	v.SetDefault("inbox.page_size", d.Inbox.PageSize)
	v.SetDefault("principal.name", "")
	v.SetDefault("principal.roles", []string{})
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.level", d.Log.Level)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// FLEETCONSOLE_* environment variables override file values
// (FLEETCONSOLE_API_BASE_URL, FLEETCONSOLE_PRINCIPAL_ROLES="Admin,Chauffeur").
// If the file does not exist, defaults plus environment are used.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("FLEETCONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		_, missingFile := err.(*os.PathError)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !missingFile && !notFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Inbox.PollIntervalSec <= 0 {
		cfg.Inbox.PollIntervalSec = 30
	}
	if cfg.Inbox.PageSize <= 0 {
		cfg.Inbox.PageSize = 50
	}
	if cfg.API.TimeoutSec <= 0 {
		cfg.API.TimeoutSec = 30
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("inbox", cfg.Inbox)
	v.Set("principal", cfg.Principal)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
