package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Backend struct {
		BaseURL       string        `yaml:"base_url"`
		Token         string        `yaml:"token"`
		Timeout       time.Duration `yaml:"timeout"`
		TimeoutPerDay time.Duration `yaml:"timeout_per_day"`
		TimeoutCap    time.Duration `yaml:"timeout_cap"`
		MaxAttempts   int           `yaml:"max_attempts"`
		BackoffBase   time.Duration `yaml:"backoff_base"`
		BackoffCap    time.Duration `yaml:"backoff_cap"`
		EarliestDate  string        `yaml:"earliest_date"`
	} `yaml:"backend"`
	Cache struct {
		Type  string        `yaml:"type"` // memory or redis
		TTL   time.Duration `yaml:"ttl"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Analysis struct {
		Pacing           time.Duration `yaml:"pacing"`
		Parallelism      int           `yaml:"parallelism"`
		Window           int           `yaml:"window"`
		PercentileWindow int           `yaml:"percentile_window"`
		AlertThreshold   float64       `yaml:"alert_threshold"`
		Horizons         []int         `yaml:"horizons"`
	} `yaml:"analysis"`
	Alerts struct {
		KafkaEnabled bool          `yaml:"kafka_enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic"`
		Compression  string        `yaml:"compression"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"alerts"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("BACKEND_BASE_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("HF_TOKEN"); v != "" {
		c.Backend.Token = v
	}
	if v := os.Getenv("METRICS_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Backend.Timeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Alerts.Brokers = strings.Split(v, ",")
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = 60 * time.Second
	}
	if c.Backend.TimeoutPerDay <= 0 {
		c.Backend.TimeoutPerDay = 500 * time.Millisecond
	}
	if c.Backend.TimeoutCap <= 0 {
		c.Backend.TimeoutCap = 120 * time.Second
	}
	if c.Backend.MaxAttempts <= 0 {
		c.Backend.MaxAttempts = 3
	}
	if c.Backend.BackoffBase <= 0 {
		c.Backend.BackoffBase = time.Second
	}
	if c.Backend.BackoffCap <= 0 {
		c.Backend.BackoffCap = 8 * time.Second
	}
	if c.Backend.EarliestDate == "" {
		c.Backend.EarliestDate = "2024-09-01"
	}
	if c.Cache.Type == "" {
		c.Cache.Type = "memory"
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = 5 * time.Minute
	}
	if c.Analysis.Pacing <= 0 {
		c.Analysis.Pacing = 500 * time.Millisecond
	}
	if c.Analysis.Parallelism <= 0 {
		c.Analysis.Parallelism = 1
	}
	if c.Analysis.Window <= 0 {
		c.Analysis.Window = 60
	}
	if c.Analysis.PercentileWindow <= 0 {
		c.Analysis.PercentileWindow = 365
	}
	if c.Analysis.AlertThreshold <= 0 {
		c.Analysis.AlertThreshold = 1.0
	}
	if len(c.Analysis.Horizons) == 0 {
		c.Analysis.Horizons = []int{1, 2, 5, 10, 20}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Cache.Type != "memory" && c.Cache.Type != "redis" {
		return fmt.Errorf("cache.type must be 'memory' or 'redis', got '%s'", c.Cache.Type)
	}
	if c.Alerts.KafkaEnabled && len(c.Alerts.Brokers) == 0 {
		return fmt.Errorf("alerts.brokers cannot be empty when kafka is enabled")
	}
	for _, h := range c.Analysis.Horizons {
		if h <= 0 {
			return fmt.Errorf("analysis.horizons must be positive, got %d", h)
		}
	}
	return nil
}
