// Package config loads the bustrack server configuration from an optional YAML
// file and BUSTRACK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "BUSTRACK"

// Config is the full server configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Cognito CognitoConfig `mapstructure:"cognito"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Fleet   FleetConfig   `mapstructure:"fleet"`
	Events  EventsConfig  `mapstructure:"events"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	Env            string   `mapstructure:"env"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// Requests per second allowed per client IP on /auth routes; zero disables limiting
	AuthRateLimit float64 `mapstructure:"auth_rate_limit"`
	AuthRateBurst int     `mapstructure:"auth_rate_burst"`
}

type CognitoConfig struct {
	Region       string        `mapstructure:"region"`
	UserPoolID   string        `mapstructure:"user_pool_id"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	Endpoint     string        `mapstructure:"endpoint"`
	Timeout      time.Duration `mapstructure:"timeout"`
	// How long a challenge session stays unusable after it was consumed
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// Issuer returns the token issuer URL of the user pool
func (c CognitoConfig) Issuer() string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", c.Region, c.UserPoolID)
}

// JWKSURL returns the signing key set URL of the user pool
func (c CognitoConfig) JWKSURL() string {
	return c.Issuer() + "/.well-known/jwks.json"
}

type RedisConfig struct {
	URL           string `mapstructure:"url"`
	SessionPrefix string `mapstructure:"session_prefix"`
}

type FleetConfig struct {
	BusListURL       string        `mapstructure:"bus_list_url"`
	BusCreateURL     string        `mapstructure:"bus_create_url"`
	DriverBusURL     string        `mapstructure:"driver_bus_url"`
	LocationStoreURL string        `mapstructure:"location_store_url"`
	LocationListURL  string        `mapstructure:"location_list_url"`
	UserCreateURL    string        `mapstructure:"user_create_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

type EventsConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	AuthTopic     string `mapstructure:"auth_topic"`
	LocationTopic string `mapstructure:"location_topic"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":7161")
	v.SetDefault("server.env", "dev")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.auth_rate_limit", 5.0)
	v.SetDefault("server.auth_rate_burst", 10)

	v.SetDefault("cognito.region", "us-east-1")
	v.SetDefault("cognito.user_pool_id", "")
	v.SetDefault("cognito.client_id", "")
	v.SetDefault("cognito.client_secret", "")
	v.SetDefault("cognito.endpoint", "")
	v.SetDefault("cognito.timeout", 10*time.Second)
	v.SetDefault("cognito.session_ttl", 3*time.Minute)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.session_prefix", "bustrack:session:")

	v.SetDefault("fleet.bus_list_url", "")
	v.SetDefault("fleet.bus_create_url", "")
	v.SetDefault("fleet.driver_bus_url", "")
	v.SetDefault("fleet.location_store_url", "")
	v.SetDefault("fleet.location_list_url", "")
	v.SetDefault("fleet.user_create_url", "")
	v.SetDefault("fleet.timeout", 10*time.Second)

	v.SetDefault("events.enabled", true)
	v.SetDefault("events.auth_topic", "auth.events")
	v.SetDefault("events.location_topic", "fleet.locations")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration. path may be empty, in which case only defaults and
// environment variables are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &cfg, nil
}

// Validate reports every missing required setting
func (c *Config) Validate() error {
	var errs []error
	if c.Cognito.Region == "" {
		errs = append(errs, errors.New("cognito.region is required"))
	}
	if c.Cognito.ClientID == "" {
		errs = append(errs, errors.New("cognito.client_id is required"))
	}
	if c.Cognito.UserPoolID == "" {
		errs = append(errs, errors.New("cognito.user_pool_id is required"))
	}
	if c.Cognito.Timeout <= 0 {
		errs = append(errs, errors.New("cognito.timeout must be positive"))
	}
	if c.Redis.URL == "" {
		errs = append(errs, errors.New("redis.url is required"))
	}
	return errors.Join(errs...)
}

// IsDev reports whether the server runs in a development environment
func (c *Config) IsDev() bool {
	return strings.EqualFold(c.Server.Env, "dev")
}
