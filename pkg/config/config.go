// Package config loads the demo application settings from an optional YAML
// file and converts them into the typed configs of the library packages.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Sternrassler/rickmorty-client/pkg/client"
	"github.com/Sternrassler/rickmorty-client/pkg/logging"
	"github.com/Sternrassler/rickmorty-client/pkg/publish"
	"github.com/Sternrassler/rickmorty-client/pkg/ratelimit"
	"github.com/spf13/viper"
)

// Config is the application configuration.
type Config struct {
	Client  ClientConfig  `mapstructure:"client"`
	Log     LogConfig     `mapstructure:"log"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ClientConfig configures the API gateway.
type ClientConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	UserAgent         string        `mapstructure:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Filter            FilterConfig  `mapstructure:"filter"`
}

// FilterConfig narrows the first page request.
type FilterConfig struct {
	Name    string `mapstructure:"name"`
	Status  string `mapstructure:"status"`
	Species string `mapstructure:"species"`
	Type    string `mapstructure:"type"`
	Gender  string `mapstructure:"gender"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// RedisConfig enables snapshot publishing when Addr is set.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads path as YAML on top of the defaults. An empty path or a missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	clientDefaults := client.DefaultConfig()
	v.SetDefault("client.base_url", clientDefaults.BaseURL)
	v.SetDefault("client.user_agent", clientDefaults.UserAgent)
	v.SetDefault("client.timeout", clientDefaults.Timeout)
	v.SetDefault("client.requests_per_second", clientDefaults.RateLimit.RequestsPerSecond)
	v.SetDefault("client.burst", clientDefaults.RateLimit.Burst)

	v.SetDefault("log.level", logging.DefaultConfig().Level)
	v.SetDefault("log.pretty", false)

	v.SetDefault("redis.key_prefix", publish.DefaultConfig().KeyPrefix)
}

// Validate checks values the library constructors would otherwise reject late.
func (c *Config) Validate() error {
	if c.Client.UserAgent == "" {
		return fmt.Errorf("client.user_agent is required")
	}
	if c.Client.Timeout <= 0 {
		return fmt.Errorf("client.timeout must be > 0 (got %s)", c.Client.Timeout)
	}
	if c.Client.RequestsPerSecond < 0 {
		return fmt.Errorf("client.requests_per_second must be >= 0 (got %v)", c.Client.RequestsPerSecond)
	}
	return nil
}

// ClientSettings converts the client section.
func (c *Config) ClientSettings() client.Config {
	return client.Config{
		BaseURL:   c.Client.BaseURL,
		UserAgent: c.Client.UserAgent,
		Timeout:   c.Client.Timeout,
		Filter: client.Filter{
			Name:    c.Client.Filter.Name,
			Status:  c.Client.Filter.Status,
			Species: c.Client.Filter.Species,
			Type:    c.Client.Filter.Type,
			Gender:  c.Client.Filter.Gender,
		},
		RateLimit: ratelimit.Config{
			RequestsPerSecond: c.Client.RequestsPerSecond,
			Burst:             c.Client.Burst,
		},
	}
}

// LoggingSettings converts the log section. Output is left to the caller.
func (c *Config) LoggingSettings() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Log.Level
	cfg.Pretty = c.Log.Pretty
	return cfg
}

// PublisherSettings converts the redis section.
func (c *Config) PublisherSettings() publish.Config {
	return publish.Config{
		KeyPrefix: c.Redis.KeyPrefix,
		TTL:       c.Redis.TTL,
	}
}
