// Package config defines the data structures related to configuration and
// includes functions for loading and validating the config.
package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iwvelando/venture-calc/pkg/constants"
	"github.com/iwvelando/venture-calc/pkg/validation"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for venture-calc.
type Configuration struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging,omitempty"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output,omitempty"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server,omitempty"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store,omitempty"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level,omitempty"`           // debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format,omitempty"`         // json, console
	OutputFile string `mapstructure:"outputFile" yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format,omitempty"` // pretty, csv, json
}

// ServerConfig holds runtime parameters for the HTTP API.
type ServerConfig struct {
	Address     string          `mapstructure:"address" yaml:"address,omitempty"`
	MaxBodySize string          `mapstructure:"maxBodySize" yaml:"maxBodySize,omitempty"`
	RateLimit   RateLimitConfig `mapstructure:"rateLimit" yaml:"rateLimit,omitempty"`
	Version     string          `mapstructure:"version" yaml:"version,omitempty"`
}

// RateLimitConfig bounds how many calculations one client may run per window.
type RateLimitConfig struct {
	Requests int    `mapstructure:"requests" yaml:"requests,omitempty"`
	Window   string `mapstructure:"window" yaml:"window,omitempty"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path,omitempty"`
}

// CacheConfig selects and configures the calculation result cache.
type CacheConfig struct {
	Backend       string `mapstructure:"backend" yaml:"backend,omitempty"` // memory, redis, none
	RedisAddress  string `mapstructure:"redisAddress" yaml:"redisAddress,omitempty"`
	RedisPassword string `mapstructure:"redisPassword" yaml:"redisPassword,omitempty"`
	RedisDB       int    `mapstructure:"redisDB" yaml:"redisDB,omitempty"`
	TTL           string `mapstructure:"ttl" yaml:"ttl,omitempty"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yml")
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputFile", "")
	v.SetDefault("output.format", constants.OutputFormatPretty)
	v.SetDefault("server.address", constants.DefaultServerAddress)
	v.SetDefault("server.maxBodySize", fmt.Sprintf("%d", constants.DefaultMaxBodySizeBytes))
	v.SetDefault("server.rateLimit.requests", constants.DefaultRateLimitRequests)
	v.SetDefault("server.rateLimit.window", constants.DefaultRateLimitWindow)
	v.SetDefault("server.version", "dev")
	v.SetDefault("store.path", constants.DefaultStorePath)
	v.SetDefault("cache.backend", constants.CacheBackendMemory)
	v.SetDefault("cache.redisAddress", constants.DefaultRedisAddress)
	v.SetDefault("cache.redisPassword", "")
	v.SetDefault("cache.redisDB", 0)
	v.SetDefault("cache.ttl", constants.DefaultCacheTTL)
	return v
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}
	return &configuration, nil
}

// Default returns the configuration used when no file is supplied. Environment
// overrides still apply.
func Default() *Configuration {
	conf, err := decode(newViper())
	if err != nil {
		// Defaults are static and always decode.
		panic(err)
	}
	return conf
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("yml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %s", err)
	}
	return decode(v)
}

// LoadConfigurationFromReader loads YAML configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config data, %s", err)
	}
	return decode(v)
}

// Validate checks enumerated values and durations.
func (c *Configuration) Validate() error {
	if err := validation.ValidateLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if err := validation.ValidateLogFormat(c.Logging.Format); err != nil {
		return err
	}
	if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
		return err
	}
	if err := validation.ValidateCacheBackend(c.Cache.Backend); err != nil {
		return err
	}

	if _, err := c.Cache.TTLDuration(); err != nil {
		return err
	}
	if _, err := c.Server.RateLimit.WindowDuration(); err != nil {
		return err
	}
	if c.Server.RateLimit.Requests < 0 {
		return fmt.Errorf("invalid rate limit requests: %d", c.Server.RateLimit.Requests)
	}
	return nil
}

// TTLDuration parses the cache TTL. Zero means entries never expire.
func (c CacheConfig) TTLDuration() (time.Duration, error) {
	if strings.TrimSpace(c.TTL) == "" {
		return 0, nil
	}
	ttl, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, fmt.Errorf("invalid cache ttl %q: %w", c.TTL, err)
	}
	if ttl < 0 {
		return 0, fmt.Errorf("invalid cache ttl %q: must not be negative", c.TTL)
	}
	return ttl, nil
}

// WindowDuration parses the rate limit window.
func (r RateLimitConfig) WindowDuration() (time.Duration, error) {
	window, err := time.ParseDuration(r.Window)
	if err != nil {
		return 0, fmt.Errorf("invalid rate limit window %q: %w", r.Window, err)
	}
	if window <= 0 {
		return 0, fmt.Errorf("invalid rate limit window %q: must be positive", r.Window)
	}
	return window, nil
}
