// Package config loads service configuration from a YAML file with
// environment overrides. Defaults are set in code so the service starts with
// no config file at all.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/quarrylabs/inquest/internal/llm"
	"github.com/quarrylabs/inquest/internal/tracing"
)

// DefaultPath is used when CONFIG_PATH is not set.
const DefaultPath = "config/inquest.yaml"

// ServerConfig holds the listener ports: Port serves the websocket and REST
// API, AdminPort serves health and metrics.
type ServerConfig struct {
	Port      int `mapstructure:"port"`
	AdminPort int `mapstructure:"admin_port"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Config is the full service configuration.
type Config struct {
	Server     ServerConfig   `mapstructure:"server"`
	Generation llm.Config     `mapstructure:"generation"`
	Logging    LoggingConfig  `mapstructure:"logging"`
	Tracing    tracing.Config `mapstructure:"tracing"`
}

// Path returns the config file path in effect.
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads the config file (if present), applies environment overrides,
// and returns the merged configuration.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8000)
	v.SetDefault("server.admin_port", 8081)
	v.SetDefault("generation.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("generation.model", "deepseek-chat")
	v.SetDefault("generation.timeout_seconds", 120)
	v.SetDefault("generation.requests_per_second", 0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "inquest")

	v.SetEnvPrefix("INQUEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := Path()
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Provider-native variable names take precedence; they are what
	// deployments of the original service already export.
	if s := os.Getenv("DEEPSEEK_API_KEY"); s != "" {
		cfg.Generation.APIKey = s
	}
	if s := os.Getenv("DEEPSEEK_BASE_URL"); s != "" {
		cfg.Generation.BaseURL = s
	}
	if s := os.Getenv("DEEPSEEK_CHAT_MODEL"); s != "" {
		cfg.Generation.Model = s
	}

	return &cfg, nil
}
