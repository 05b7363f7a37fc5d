// Package config provides configuration loading and validation for the archiver.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Wait policy names accepted by WaitPolicy.
const (
	WaitPolicyFixed = "fixed"
	WaitPolicyPoll  = "poll"
)

// Config holds the process configuration. Values come from an optional
// YAML file and are overridden by environment variables of the same name
// in upper case (BROWSER_URL, DATABASE_URL, ...).
type Config struct {
	BrowserURL      string        `mapstructure:"browser_url" validate:"required,url"` // DevTools endpoint of the remote browser
	BrowserLocal    bool          `mapstructure:"browser_local"`                       // Launch a local headless Chrome instead
	DatabaseURL     string        `mapstructure:"database_url" validate:"required"`    // postgres:// or sqlite:// DSN
	ProfilePath     string        `mapstructure:"profile_path"`                        // Optional site profile override (YAML)
	LogLevel        string        `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	PageLoadTimeout time.Duration `mapstructure:"page_load_timeout" validate:"gt=0"`
	WaitPolicy      string        `mapstructure:"wait_policy" validate:"oneof=fixed poll"`
	PollTimeout     time.Duration `mapstructure:"poll_timeout" validate:"gt=0"` // Upper bound for the poll wait policy
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		BrowserURL:      "http://chrome:9222",
		DatabaseURL:     "sqlite://archiver.db",
		LogLevel:        "info",
		PageLoadTimeout: 30 * time.Second,
		WaitPolicy:      WaitPolicyFixed,
		PollTimeout:     10 * time.Second,
		Port:            8000,
	}
}

// Load reads configuration from path (if non-empty) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	d := Defaults()
	v.SetDefault("browser_url", d.BrowserURL)
	v.SetDefault("browser_local", d.BrowserLocal)
	v.SetDefault("database_url", d.DatabaseURL)
	v.SetDefault("profile_path", d.ProfilePath)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("page_load_timeout", d.PageLoadTimeout)
	v.SetDefault("wait_policy", d.WaitPolicy)
	v.SetDefault("poll_timeout", d.PollTimeout)
	v.SetDefault("port", d.Port)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.WaitPolicy = strings.ToLower(strings.TrimSpace(cfg.WaitPolicy))

	return &cfg, nil
}

// Validate checks that the configuration has usable values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}
