package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pior/memcached"
	"github.com/pior/memcached/cache"
	"github.com/pior/memcached/protocol"
)

// Config holds every server setting.
type Config struct {
	// Transport
	Addr         string        `yaml:"addr"`
	MaxFrameSize int           `yaml:"max_frame_size"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	CloseOnError bool          `yaml:"close_on_error"`

	// Cache
	Capacity      int           `yaml:"capacity"`
	MaxTTL        time.Duration `yaml:"max_ttl"`
	PurgeInterval time.Duration `yaml:"purge_interval"`
	MaxKeyLength  int           `yaml:"max_key_length"`
	CASTokens     string        `yaml:"cas_tokens"`

	// Observability
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
}

// Default returns a Config with the stock limits.
func Default() *Config {
	return &Config{
		Addr:          ":11211",
		MaxFrameSize:  memcached.DefaultMaxFrameSize,
		Capacity:      cache.DefaultCapacity,
		MaxTTL:        cache.DefaultMaxTTL,
		PurgeInterval: cache.DefaultPurgeInterval,
		MaxKeyLength:  protocol.MaxKeyLength,
		CASTokens:     memcached.VersionsCounter,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// LoadFile loads a YAML file over the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv applies MEMCACHED_* environment overrides.
func ApplyEnv(cfg *Config) error {
	var errs []error

	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}
	flag := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = b
		}
	}

	str("MEMCACHED_ADDR", &cfg.Addr)
	num("MEMCACHED_MAX_FRAME_SIZE", &cfg.MaxFrameSize)
	dur("MEMCACHED_READ_TIMEOUT", &cfg.ReadTimeout)
	dur("MEMCACHED_WRITE_TIMEOUT", &cfg.WriteTimeout)
	flag("MEMCACHED_CLOSE_ON_ERROR", &cfg.CloseOnError)
	num("MEMCACHED_CAPACITY", &cfg.Capacity)
	dur("MEMCACHED_MAX_TTL", &cfg.MaxTTL)
	dur("MEMCACHED_PURGE_INTERVAL", &cfg.PurgeInterval)
	num("MEMCACHED_MAX_KEY_LENGTH", &cfg.MaxKeyLength)
	str("MEMCACHED_CAS_TOKENS", &cfg.CASTokens)
	str("MEMCACHED_METRICS_ADDR", &cfg.MetricsAddr)
	str("MEMCACHED_LOG_LEVEL", &cfg.LogLevel)
	str("MEMCACHED_LOG_FORMAT", &cfg.LogFormat)

	return errors.Join(errs...)
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.MaxFrameSize <= 0 {
		errs = append(errs, fmt.Errorf("max_frame_size must be positive, got %d", c.MaxFrameSize))
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("capacity must be positive, got %d", c.Capacity))
	}
	if c.MaxTTL <= 0 {
		errs = append(errs, fmt.Errorf("max_ttl must be positive, got %s", c.MaxTTL))
	}
	if c.PurgeInterval <= 0 {
		errs = append(errs, fmt.Errorf("purge_interval must be positive, got %s", c.PurgeInterval))
	}
	if c.MaxKeyLength <= 0 {
		errs = append(errs, fmt.Errorf("max_key_length must be positive, got %d", c.MaxKeyLength))
	}
	if _, err := memcached.NewVersionGenerator(c.CASTokens); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}

	return errors.Join(errs...)
}

// CacheConfig returns the cache settings.
func (c *Config) CacheConfig() cache.Config {
	return cache.Config{
		Capacity:      c.Capacity,
		MaxTTL:        c.MaxTTL,
		PurgeInterval: c.PurgeInterval,
	}
}

// ServerConfig returns the transport settings.
func (c *Config) ServerConfig() memcached.ServerConfig {
	return memcached.ServerConfig{
		MaxFrameSize: c.MaxFrameSize,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		CloseOnError: c.CloseOnError,
	}
}

// ProcessorConfig returns the command processing settings.
func (c *Config) ProcessorConfig() (memcached.ProcessorConfig, error) {
	versions, err := memcached.NewVersionGenerator(c.CASTokens)
	if err != nil {
		return memcached.ProcessorConfig{}, err
	}
	return memcached.ProcessorConfig{
		Parser:   protocol.NewParser(protocol.ParserConfig{MaxKeyLength: c.MaxKeyLength}),
		Versions: versions,
	}, nil
}
