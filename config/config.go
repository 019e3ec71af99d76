package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Default values
const (
	DefaultListenAddress        = ":8080"
	DefaultSS58Prefix    uint16 = 42
	DefaultMaxMessageAge        = 5 * time.Minute
	DefaultClockSkew            = time.Minute
	DefaultRateLimit            = 10.0
	DefaultRateBurst            = 20
	DefaultLogLevel             = "info"
)

// Environment variable names
const (
	EnvListenAddress = "KEYPASS_LISTEN_ADDRESS"
	EnvSS58Prefix    = "KEYPASS_SS58_PREFIX"
	EnvMaxMessageAge = "KEYPASS_MAX_MESSAGE_AGE"
	EnvClockSkew     = "KEYPASS_CLOCK_SKEW"
	EnvRateLimit     = "KEYPASS_RATE_LIMIT"
	EnvRateBurst     = "KEYPASS_RATE_BURST"
	EnvLogLevel      = "KEYPASS_LOG_LEVEL"
)

// Config holds the configuration of the verification service.
type Config struct {
	ListenAddress string

	// SS58Prefix is the network prefix used when addresses are re-encoded
	// from DIDs.
	SS58Prefix    uint16
	MaxMessageAge time.Duration
	ClockSkew     time.Duration

	// RateLimit is the sustained number of requests per second allowed per
	// client. A negative value disables rate limiting.
	RateLimit float64
	RateBurst int
	LogLevel  string
}

// New creates a new Config instance with the provided values.
// If a value is empty/zero, it will use the default value.
// Pass an empty Config{} to use all defaults. Load honours an explicit zero
// SS58 prefix.
func New(cfg Config) *Config {
	result := &Config{
		ListenAddress: DefaultListenAddress,
		SS58Prefix:    DefaultSS58Prefix,
		MaxMessageAge: DefaultMaxMessageAge,
		ClockSkew:     DefaultClockSkew,
		RateLimit:     DefaultRateLimit,
		RateBurst:     DefaultRateBurst,
		LogLevel:      DefaultLogLevel,
	}

	if cfg.ListenAddress != "" {
		result.ListenAddress = cfg.ListenAddress
	}
	if cfg.SS58Prefix != 0 {
		result.SS58Prefix = cfg.SS58Prefix
	}
	if cfg.MaxMessageAge != 0 {
		result.MaxMessageAge = cfg.MaxMessageAge
	}
	if cfg.ClockSkew != 0 {
		result.ClockSkew = cfg.ClockSkew
	}
	if cfg.RateLimit != 0 {
		result.RateLimit = cfg.RateLimit
	}
	if cfg.RateBurst != 0 {
		result.RateBurst = cfg.RateBurst
	}
	if cfg.LogLevel != "" {
		result.LogLevel = cfg.LogLevel
	}

	return result
}

type fileConfig struct {
	ListenAddress string        `yaml:"listenAddress"`
	SS58Prefix    *uint16       `yaml:"ss58Prefix"`
	MaxMessageAge time.Duration `yaml:"maxMessageAge"`
	ClockSkew     time.Duration `yaml:"clockSkew"`
	RateLimit     float64       `yaml:"rateLimit"`
	RateBurst     int           `yaml:"rateBurst"`
	LogLevel      string        `yaml:"logLevel"`
}

// Load reads the YAML file at path on top of the defaults and then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := New(Config{})

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		var parsed fileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg.merge(parsed)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) merge(src fileConfig) {
	if src.ListenAddress != "" {
		c.ListenAddress = src.ListenAddress
	}
	if src.SS58Prefix != nil {
		c.SS58Prefix = *src.SS58Prefix
	}
	if src.MaxMessageAge != 0 {
		c.MaxMessageAge = src.MaxMessageAge
	}
	if src.ClockSkew != 0 {
		c.ClockSkew = src.ClockSkew
	}
	if src.RateLimit != 0 {
		c.RateLimit = src.RateLimit
	}
	if src.RateBurst != 0 {
		c.RateBurst = src.RateBurst
	}
	if src.LogLevel != "" {
		c.LogLevel = src.LogLevel
	}
}

// ApplyEnv overrides c with the KEYPASS_* environment variables that are set.
func (c *Config) ApplyEnv() error {
	if v := env(EnvListenAddress); v != "" {
		c.ListenAddress = v
	}
	if v := env(EnvSS58Prefix); v != "" {
		prefix, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSS58Prefix, err)
		}
		c.SS58Prefix = uint16(prefix)
	}
	if v := env(EnvMaxMessageAge); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxMessageAge, err)
		}
		c.MaxMessageAge = d
	}
	if v := env(EnvClockSkew); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvClockSkew, err)
		}
		c.ClockSkew = d
	}
	if v := env(EnvRateLimit); v != "" {
		limit, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRateLimit, err)
		}
		c.RateLimit = limit
	}
	if v := env(EnvRateBurst); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRateBurst, err)
		}
		c.RateBurst = burst
	}
	if v := env(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate checks values that have no sensible fallback.
func (c *Config) Validate() error {
	if c.SS58Prefix > 16383 {
		return fmt.Errorf("ss58 prefix %d out of range", c.SS58Prefix)
	}
	if c.MaxMessageAge <= 0 {
		return fmt.Errorf("max message age must be positive")
	}
	if c.ClockSkew < 0 {
		return fmt.Errorf("clock skew must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst <= 0 {
		return fmt.Errorf("rate burst must be positive when rate limiting is enabled")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the zerolog level named by LogLevel.
func (c *Config) Level() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}
