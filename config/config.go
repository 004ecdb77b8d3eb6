// Package config loads the settings of the fused binary from FUSE_*
// environment variables, optionally layered over a YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/watt-toolkit/fuse/core"
)

// Serving modes.
const (
	ModeCGI  = "cgi"
	ModeSCGI = "scgi"
	ModeHTTP = "http"
)

// Config holds host configuration.
type Config struct {
	Mode         string        `yaml:"mode"`
	Addr         string        `yaml:"addr"`
	MetricsAddr  string        `yaml:"metrics_addr"`
	LogLevel     string        `yaml:"log_level"`
	MaxBody      int64         `yaml:"max_body"`
	MaxConns     int64         `yaml:"max_conns"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	RateLimit    float64       `yaml:"rate_limit"`
	RateBurst    int           `yaml:"rate_burst"`
}

// Default returns the built-in configuration. The mode is cgi when the
// process was started by a web server (GATEWAY_INTERFACE is set).
func Default() *Config {
	mode := ModeSCGI
	if os.Getenv("GATEWAY_INTERFACE") != "" {
		mode = ModeCGI
	}
	return &Config{
		Mode:         mode,
		Addr:         "127.0.0.1:4000",
		LogLevel:     "info",
		MaxBody:      core.DefaultMaxBodySize,
		MaxConns:     256,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// FUSE_CONFIG (if any), then FUSE_* environment variables.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("FUSE_CONFIG"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.overlayEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile returns the defaults overlaid with the YAML file at path.
// Keys missing from the file keep their default.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.overlayFile(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) overlayEnv() error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, set func(string) error) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			if err := set(v); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
		}
	}

	str("FUSE_MODE", &c.Mode)
	str("FUSE_ADDR", &c.Addr)
	str("FUSE_METRICS_ADDR", &c.MetricsAddr)
	str("FUSE_LOG_LEVEL", &c.LogLevel)
	num("FUSE_MAX_BODY", func(v string) (err error) {
		c.MaxBody, err = strconv.ParseInt(v, 10, 64)
		return err
	})
	num("FUSE_MAX_CONNS", func(v string) (err error) {
		c.MaxConns, err = strconv.ParseInt(v, 10, 64)
		return err
	})
	num("FUSE_READ_TIMEOUT", func(v string) (err error) {
		c.ReadTimeout, err = time.ParseDuration(v)
		return err
	})
	num("FUSE_WRITE_TIMEOUT", func(v string) (err error) {
		c.WriteTimeout, err = time.ParseDuration(v)
		return err
	})
	num("FUSE_RATE_LIMIT", func(v string) (err error) {
		c.RateLimit, err = strconv.ParseFloat(v, 64)
		return err
	})
	num("FUSE_RATE_BURST", func(v string) (err error) {
		c.RateBurst, err = strconv.Atoi(v)
		return err
	})
	return errors.Join(errs...)
}

// Validate reports settings the hosts cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Mode {
	case ModeCGI, ModeSCGI, ModeHTTP:
	default:
		errs = append(errs, fmt.Errorf("unknown mode %q", c.Mode))
	}
	if c.Mode != ModeCGI && c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.MaxConns < 0 {
		errs = append(errs, errors.New("max_conns must not be negative"))
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		errs = append(errs, errors.New("rate limit must not be negative"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Level parses LogLevel ("debug", "info", "warn", "error").
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level: %w", err)
	}
	return level, nil
}
