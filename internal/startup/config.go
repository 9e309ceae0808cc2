package startup

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"bandwidth-proxy/internal/fetch"
	"bandwidth-proxy/internal/headers"
	"bandwidth-proxy/internal/logging"
	"bandwidth-proxy/internal/policy"
	"bandwidth-proxy/internal/streaming"
	"bandwidth-proxy/internal/transcoder"
	"bandwidth-proxy/internal/workers"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. It is loaded once at startup
// and read-only afterwards.
type Config struct {
	Port            string `yaml:"port"`
	MetricsPort     string `yaml:"metricsPort"`
	MetricsEnabled  bool   `yaml:"metricsEnabled"`
	LogHealthChecks bool   `yaml:"logHealthChecks"`

	// BypassThreshold is the body size below which images are returned untouched
	BypassThreshold uint64 `yaml:"bypassThreshold"`

	FetchHeaders     []string      `yaml:"fetchHeaders"`
	FetchConcurrency int           `yaml:"fetchConcurrency"`
	FetchTimeout     time.Duration `yaml:"fetchTimeout"`
	FetchMaxAttempts int           `yaml:"fetchMaxAttempts"`
	FetchThrottle    time.Duration `yaml:"fetchThrottle"`

	MaxWidth int `yaml:"maxWidth"`
	// CodecWorkers is the decode/encode pool size (0 = one per CPU)
	CodecWorkers int `yaml:"codecWorkers"`

	// WriteTimeout bounds each chunk written to a client
	WriteTimeout time.Duration `yaml:"writeTimeout"`

	// Source records where the configuration was read from, for logging
	Source string `yaml:"-"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:             "3000",
		MetricsPort:      "9090",
		MetricsEnabled:   true,
		LogHealthChecks:  true,
		BypassThreshold:  policy.DefaultBypassThreshold,
		FetchHeaders:     append([]string(nil), headers.DefaultWhitelist...),
		FetchConcurrency: fetch.DefaultConcurrency,
		FetchTimeout:     fetch.DefaultTimeout,
		FetchMaxAttempts: fetch.DefaultMaxAttempts,
		FetchThrottle:    fetch.DefaultThrottleDelay,
		MaxWidth:         transcoder.DefaultMaxWidth,
		WriteTimeout:     streaming.DefaultConfig().WriteTimeout,
		Source:           "defaults",
	}
}

// LoadConfig builds the configuration from defaults, then the YAML file named
// by CONFIG_FILE (if any), then environment variables.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logConfig(cfg)
	return cfg, nil
}

func loadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
		cfg.Source = path
	}

	cfg.applyEnv()

	if cfg.CodecWorkers <= 0 {
		cfg.CodecWorkers = workers.ForCPU(0)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile overlays the YAML document at path onto c. Keys absent from the
// file keep their current values.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.MetricsPort = getEnv("METRICS_PORT", c.MetricsPort)
	c.MetricsEnabled = getEnvBool("METRICS_ENABLED", c.MetricsEnabled)
	c.LogHealthChecks = getEnvBool("LOG_HEALTH_CHECKS", c.LogHealthChecks)
	c.BypassThreshold = getEnvUint64("BYPASS_THRESHOLD", c.BypassThreshold)
	c.FetchHeaders = getEnvList("FETCH_HEADERS", c.FetchHeaders)
	c.FetchConcurrency = getEnvInt("FETCH_CONCURRENCY", c.FetchConcurrency)
	c.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", c.FetchTimeout)
	c.FetchMaxAttempts = getEnvInt("FETCH_MAX_ATTEMPTS", c.FetchMaxAttempts)
	c.FetchThrottle = getEnvDuration("FETCH_THROTTLE", c.FetchThrottle)
	c.MaxWidth = getEnvInt("MAX_WIDTH", c.MaxWidth)
	c.CodecWorkers = getEnvInt(workers.EnvOverride, c.CodecWorkers)
	c.WriteTimeout = getEnvDuration("WRITE_TIMEOUT", c.WriteTimeout)
}

// Validate rejects values the proxy cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if err := validatePort("PORT", c.Port); err != nil {
		errs = append(errs, err)
	}
	if c.MetricsEnabled {
		if err := validatePort("METRICS_PORT", c.MetricsPort); err != nil {
			errs = append(errs, err)
		}
		if c.MetricsPort == c.Port {
			errs = append(errs, fmt.Errorf("METRICS_PORT must differ from PORT (%s)", c.Port))
		}
	}
	if c.BypassThreshold == 0 {
		errs = append(errs, errors.New("BYPASS_THRESHOLD must be at least 1 byte"))
	}
	if c.FetchConcurrency < 1 {
		errs = append(errs, fmt.Errorf("FETCH_CONCURRENCY must be at least 1, got %d", c.FetchConcurrency))
	}
	if c.FetchMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("FETCH_MAX_ATTEMPTS must be at least 1, got %d", c.FetchMaxAttempts))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("FETCH_TIMEOUT must be positive, got %v", c.FetchTimeout))
	}
	if c.FetchThrottle < 0 {
		errs = append(errs, fmt.Errorf("FETCH_THROTTLE must not be negative, got %v", c.FetchThrottle))
	}
	if c.MaxWidth < 1 {
		errs = append(errs, fmt.Errorf("MAX_WIDTH must be at least 1, got %d", c.MaxWidth))
	}
	if c.WriteTimeout < 0 {
		errs = append(errs, fmt.Errorf("WRITE_TIMEOUT must not be negative, got %v", c.WriteTimeout))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func validatePort(name, port string) error {
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("%s must be a port number, got %q", name, port)
	}
	return nil
}

// PolicyConfig returns the bypass thresholds.
func (c *Config) PolicyConfig() policy.Config {
	pc := policy.DefaultConfig()
	pc.BypassThreshold = c.BypassThreshold
	return pc
}

// FetchConfig returns the upstream fetch settings.
func (c *Config) FetchConfig() fetch.Config {
	fc := fetch.DefaultConfig()
	fc.Timeout = c.FetchTimeout
	fc.MaxAttempts = c.FetchMaxAttempts
	fc.ThrottleDelay = c.FetchThrottle
	fc.Headers = c.FetchHeaders
	return fc
}

// TranscodeLimits returns the dimension and quality limits.
func (c *Config) TranscodeLimits() transcoder.Limits {
	limits := transcoder.DefaultLimits()
	limits.MaxWidth = c.MaxWidth
	return limits
}

// StreamConfig returns the client write settings.
func (c *Config) StreamConfig() streaming.Config {
	sc := streaming.DefaultConfig()
	sc.WriteTimeout = c.WriteTimeout
	return sc
}

func logConfig(c *Config) {
	logging.Info("  Source:              %s", c.Source)
	logging.Info("  PORT:                %s", c.Port)
	logging.Info("  METRICS_PORT:        %s", c.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", c.MetricsEnabled)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", c.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
	logging.Info("  BYPASS_THRESHOLD:    %s", logging.FormatBytes(c.BypassThreshold))
	logging.Info("  FETCH_HEADERS:       %v", c.FetchHeaders)
	logging.Info("  FETCH_CONCURRENCY:   %d", c.FetchConcurrency)
	logging.Info("  FETCH_TIMEOUT:       %v", c.FetchTimeout)
	logging.Info("  FETCH_MAX_ATTEMPTS:  %d", c.FetchMaxAttempts)
	logging.Info("  FETCH_THROTTLE:      %v", c.FetchThrottle)
	logging.Info("  MAX_WIDTH:           %d", c.MaxWidth)
	logging.Info("  CODEC_WORKERS:       %d", c.CodecWorkers)
	logging.Info("  WRITE_TIMEOUT:       %v", c.WriteTimeout)
	logging.Info("")
}
