package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Errors
var (
	ErrConfigNotFound    = errors.New("config: file not found")
	ErrInvalidFormat     = errors.New("config: invalid format")
	ErrUnsupportedFormat = errors.New("config: unsupported format")
	ErrValidationFailed  = errors.New("config: validation failed")
	ErrMissingEnvVar     = errors.New("config: missing environment variable")
)

// Duration wraps time.Duration so YAML and JSON configs can use values
// like "250ms" or "5s".
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration from a string or an integer nanosecond
// count.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("%w: bad duration %q", ErrInvalidFormat, s)
		}
		d.Duration = parsed
		return nil
	}

	var n int64
	if err := value.Decode(&n); err == nil {
		d.Duration = time.Duration(n)
		return nil
	}
	return fmt.Errorf("%w: bad duration", ErrInvalidFormat)
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// UnmarshalJSON parses a duration from a string or an integer nanosecond
// count.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("%w: bad duration %q", ErrInvalidFormat, s)
		}
		d.Duration = parsed
		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		d.Duration = time.Duration(n)
		return nil
	}
	return fmt.Errorf("%w: bad duration", ErrInvalidFormat)
}

// MarshalJSON renders the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

// Config is the top-level configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Cache   CacheConfig   `yaml:"cache" json:"cache"`
	Retry   RetryConfig   `yaml:"retry" json:"retry"`
	Store   StoreConfig   `yaml:"store" json:"store"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is the minimum level: trace, debug, info, warn, error.
	Level string `yaml:"level" json:"level"`
	// Format is the handler format: console or json.
	Format string `yaml:"format" json:"format"`
}

// CacheConfig configures the in-memory cache store.
type CacheConfig struct {
	// Capacity is the maximum number of entries.
	Capacity int `yaml:"capacity" json:"capacity"`
	// Policy selects the eviction policy: lru, fifo or lfu.
	Policy string `yaml:"policy" json:"policy"`
	// DefaultTTL applies to operations that do not set their own TTL.
	DefaultTTL Duration `yaml:"default_ttl" json:"default_ttl"`
}

// RetryConfig configures the retry policy.
type RetryConfig struct {
	MaxAttempts    int      `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay      Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay       Duration `yaml:"max_delay" json:"max_delay"`
	JitterFraction float64  `yaml:"jitter_fraction" json:"jitter_fraction"`
}

// StoreConfig selects the storage backend.
type StoreConfig struct {
	// Driver is one of: memory, sqlite, postgres.
	Driver string `yaml:"driver" json:"driver"`
	// DSN is the backend connection string. Unused by the memory driver.
	DSN string `yaml:"dsn" json:"dsn"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Cache: CacheConfig{
			Capacity:   1000,
			Policy:     "lru",
			DefaultTTL: Duration{5 * time.Minute},
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			BaseDelay:      Duration{100 * time.Millisecond},
			MaxDelay:       Duration{time.Second},
			JitterFraction: 0.5,
		},
		Store: StoreConfig{
			Driver: "memory",
		},
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	var errs []error

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q", c.Logging.Format))
	}

	if c.Cache.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("cache.capacity: must be positive, got %d", c.Cache.Capacity))
	}
	switch c.Cache.Policy {
	case "", "lru", "fifo", "lfu":
	default:
		errs = append(errs, fmt.Errorf("cache.policy: unknown policy %q", c.Cache.Policy))
	}
	if c.Cache.DefaultTTL.Duration < 0 {
		errs = append(errs, fmt.Errorf("cache.default_ttl: must not be negative"))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts: must be at least 1, got %d", c.Retry.MaxAttempts))
	}
	if c.Retry.BaseDelay.Duration < 0 || c.Retry.MaxDelay.Duration < 0 {
		errs = append(errs, fmt.Errorf("retry: delays must not be negative"))
	}
	if c.Retry.JitterFraction < 0 || c.Retry.JitterFraction > 1 {
		errs = append(errs, fmt.Errorf("retry.jitter_fraction: must be in [0, 1], got %v", c.Retry.JitterFraction))
	}

	switch c.Store.Driver {
	case "", "memory", "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver))
	}
	if (c.Store.Driver == "sqlite" || c.Store.Driver == "postgres") && c.Store.DSN == "" {
		errs = append(errs, fmt.Errorf("store.dsn: required for driver %q", c.Store.Driver))
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrValidationFailed}, errs...)...)
	}
	return nil
}
