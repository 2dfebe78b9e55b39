// Package config loads server settings from defaults, an optional YAML
// file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the server settings.
type Config struct {
	Addr      string `yaml:"addr"`
	AdminAddr string `yaml:"admin_addr"`
	// MaxConns caps concurrently served connections; 0 is unlimited.
	MaxConns int `yaml:"max_conns"`
	// IdleTimeout closes connections with no input for this long; 0 disables it.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	StrictItems bool          `yaml:"strict_items"`
	LogLevel    string        `yaml:"log_level"`

	DatabaseURL  string `yaml:"database_url"`
	RedisAddr    string `yaml:"redis_addr"`
	RedisChannel string `yaml:"redis_channel"`
	// PublishQueue and PublishTimeout bound delivery to the journal and
	// Redis; zero values take the server defaults.
	PublishQueue   int           `yaml:"publish_queue"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`

	OTELHost         string  `yaml:"otel_host"`
	TraceProbability float64 `yaml:"trace_probability"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Addr:             ":9999",
		AdminAddr:        ":9090",
		LogLevel:         "info",
		RedisChannel:     "orderhub:orders",
		TraceProbability: 1.0,
	}
}

// Load reads the YAML file at path, when given, over the defaults and then
// applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides cfg from ORDERHUB_* variables. DATABASE_URL,
// REDIS_ADDR and OTEL_HOST are honored as well.
func ApplyEnv(cfg *Config) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := os.LookupEnv(k); ok {
				*dst = v
			}
		}
	}
	str(&cfg.Addr, "ORDERHUB_ADDR")
	str(&cfg.AdminAddr, "ORDERHUB_ADMIN_ADDR")
	str(&cfg.LogLevel, "ORDERHUB_LOG_LEVEL")
	str(&cfg.DatabaseURL, "DATABASE_URL", "ORDERHUB_DATABASE_URL")
	str(&cfg.RedisAddr, "REDIS_ADDR", "ORDERHUB_REDIS_ADDR")
	str(&cfg.RedisChannel, "ORDERHUB_REDIS_CHANNEL")
	str(&cfg.OTELHost, "OTEL_HOST", "ORDERHUB_OTEL_HOST")

	if v, ok := os.LookupEnv("ORDERHUB_MAX_CONNS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ORDERHUB_MAX_CONNS: %w", err)
		}
		cfg.MaxConns = n
	}
	if v, ok := os.LookupEnv("ORDERHUB_IDLE_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ORDERHUB_IDLE_TIMEOUT: %w", err)
		}
		cfg.IdleTimeout = d
	}
	if v, ok := os.LookupEnv("ORDERHUB_STRICT_ITEMS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ORDERHUB_STRICT_ITEMS: %w", err)
		}
		cfg.StrictItems = b
	}
	if v, ok := os.LookupEnv("ORDERHUB_TRACE_PROBABILITY"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("ORDERHUB_TRACE_PROBABILITY: %w", err)
		}
		cfg.TraceProbability = f
	}
	return nil
}

// Validate reports settings the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("max_conns must not be negative, got %d", c.MaxConns))
	}
	if c.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("idle_timeout must not be negative, got %s", c.IdleTimeout))
	}
	if c.PublishQueue < 0 {
		errs = append(errs, fmt.Errorf("publish_queue must not be negative, got %d", c.PublishQueue))
	}
	if c.PublishTimeout < 0 {
		errs = append(errs, fmt.Errorf("publish_timeout must not be negative, got %s", c.PublishTimeout))
	}
	if c.TraceProbability < 0 || c.TraceProbability > 1 {
		errs = append(errs, fmt.Errorf("trace_probability must be within [0,1], got %v", c.TraceProbability))
	}
	return errors.Join(errs...)
}
