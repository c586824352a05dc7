package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/tube-cutter/internal/cutting"
)

const (
	defaultPort           = "8080"
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50
	defaultLogLevel       = "info"
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port                 string
	StockCapacity        float64
	DataFile             string
	LogLevel             string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int
	TrustedProxies       []netip.Prefix
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Port                 string        `yaml:"port"`
	StockCapacity        float64       `yaml:"stock_capacity"`
	DataFile             string        `yaml:"data_file"`
	LogLevel             string        `yaml:"log_level"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
	TrustedProxies       []string      `yaml:"trusted_proxies"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Port           *string
	StockCapacity  *float64
	DataFile       *string
	LogLevel       *string
	RateLimitRPS   *float64
	RateLimitBurst *int
	TrustedProxies []string
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	applyEnvConfig(&cfg)

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	if overrides != nil {
		if err := applyCLIOverrides(&cfg, overrides); err != nil {
			return Config{}, err
		}
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		StockCapacity:        cutting.DefaultCapacity,
		LogLevel:             defaultLogLevel,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies the fields present in the YAML file.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}
	if yamlCfg.StockCapacity != 0 {
		cfg.StockCapacity = yamlCfg.StockCapacity
	}
	if yamlCfg.DataFile != "" {
		cfg.DataFile = yamlCfg.DataFile
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}

	durations := []struct {
		key   string
		raw   string
		field *time.Duration
	}{
		{"shutdown_grace_period", yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{"read_header_timeout", yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{"write_timeout", yamlCfg.WriteTimeout, &cfg.WriteTimeout},
		{"idle_timeout", yamlCfg.IdleTimeout, &cfg.IdleTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		value, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.field = value
	}

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}
	if yamlCfg.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}
	if yamlCfg.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}
	if len(yamlCfg.TrustedProxies) > 0 {
		prefixes, err := parseProxies(yamlCfg.TrustedProxies)
		if err != nil {
			return fmt.Errorf("trusted_proxies: %w", err)
		}
		cfg.TrustedProxies = prefixes
	}
	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Port = port
	}

	if raw := strings.TrimSpace(os.Getenv("STOCK_CAPACITY")); raw != "" {
		if value, err := parseCapacity(raw); err == nil {
			cfg.StockCapacity = value
		}
	}

	if path := strings.TrimSpace(os.Getenv("DATA_FILE")); path != "" {
		cfg.DataFile = path
	}

	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}

	if rps := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := strings.TrimSpace(os.Getenv("RATE_LIMIT_BURST")); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}

	if proxies := strings.TrimSpace(os.Getenv("TRUSTED_PROXIES")); proxies != "" {
		if prefixes, err := parseProxies(strings.Split(proxies, ",")); err == nil {
			cfg.TrustedProxies = prefixes
		}
	}
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) error {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if overrides.StockCapacity != nil {
		cfg.StockCapacity = *overrides.StockCapacity
	}

	if overrides.DataFile != nil && *overrides.DataFile != "" {
		cfg.DataFile = *overrides.DataFile
	}

	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}

	if len(overrides.TrustedProxies) > 0 {
		prefixes, err := parseProxies(overrides.TrustedProxies)
		if err != nil {
			return fmt.Errorf("trusted proxies: %w", err)
		}
		cfg.TrustedProxies = prefixes
	}
	return nil
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if !cutting.ValidLength(cfg.StockCapacity) {
		return fmt.Errorf("STOCK_CAPACITY must be a finite number > 0")
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	return nil
}

// parseCapacity parses a positive stock capacity.
func parseCapacity(raw string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", raw)
	}
	if !cutting.ValidLength(value) {
		return 0, fmt.Errorf("stock capacity must be a finite positive number, got %v", value)
	}
	return value, nil
}

// parseProxies parses IP addresses and CIDR ranges. A bare address is treated
// as a single-host range.
func parseProxies(raw []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(raw))
	for _, entry := range raw {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid proxy range %q", entry)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy address %q", entry)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}
