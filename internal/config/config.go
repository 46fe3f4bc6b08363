package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort           = "8080"
	defaultRateLimitRPS   = 10.0
	defaultRateLimitBurst = 20
	defaultMaxSteps       = 0 // unlimited
	defaultMaxCallDepth   = 10_000
	defaultMaxSourceBytes = 64 << 10
	defaultCacheSize      = 256
	defaultLogLevel       = "info"

	defaultPlaygroundMaxSteps     = 1_000_000
	defaultPlaygroundMaxCallDepth = 512
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	// Run flags, shared by the CLI and the playground defaults.
	Debug        bool
	DryRun       bool
	Time         bool
	Color        bool
	MaxSteps     int64
	MaxCallDepth int
	LogLevel     string

	// Playground server. Playground runs use their own budgets.
	Port                   string
	PlaygroundMaxSteps     int64
	PlaygroundMaxCallDepth int
	RunTimeout             time.Duration
	MaxSourceBytes         int
	CacheSize              int
	ShutdownGracePeriod    time.Duration
	ReadHeaderTimeout      time.Duration
	WriteTimeout           time.Duration
	IdleTimeout            time.Duration
	EnableRequestLogging   bool
	RateLimitRPS           float64
	RateLimitBurst         int
}

// yamlConfig represents the YAML configuration file structure. Pointer
// fields distinguish "unset" from the zero value.
type yamlConfig struct {
	Debug                *bool         `yaml:"debug"`
	DryRun               *bool         `yaml:"dry_run"`
	Time                 *bool         `yaml:"time"`
	Color                *bool         `yaml:"color"`
	MaxSteps             *int64        `yaml:"max_steps"`
	MaxCallDepth         *int          `yaml:"max_call_depth"`
	LogLevel             string        `yaml:"log_level"`
	PlaygroundMaxSteps   *int64        `yaml:"playground_max_steps"`
	PlaygroundCallDepth  *int          `yaml:"playground_max_call_depth"`
	Port                 string        `yaml:"port"`
	RunTimeout           string        `yaml:"run_timeout"`
	MaxSourceBytes       *int          `yaml:"max_source_bytes"`
	CacheSize            *int          `yaml:"cache_size"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides. Nil fields were not set on
// the command line.
type CLIOverrides struct {
	ConfigFile string
	// EnvFile defaults to .env in the working directory.
	EnvFile string

	Debug          *bool
	DryRun         *bool
	Time           *bool
	Color          *bool
	MaxSteps       *int64
	LogLevel       *string
	Port           *string
	RateLimitRPS   *float64
	RateLimitBurst *int
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	loadEnvFile(overrides)
	cfg := defaultConfig()

	// Apply environment variables
	applyEnvConfig(&cfg)

	// Load from YAML file if specified (overrides environment)
	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	// Apply CLI overrides (highest precedence)
	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadEnvFile merges a dotenv file into the process environment. Variables
// that are already set win, and a missing file is not an error.
func loadEnvFile(overrides *CLIOverrides) {
	if overrides != nil && overrides.EnvFile != "" {
		_ = godotenv.Load(overrides.EnvFile)
		return
	}
	_ = godotenv.Load()
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Color:                  true,
		MaxSteps:               defaultMaxSteps,
		MaxCallDepth:           defaultMaxCallDepth,
		LogLevel:               defaultLogLevel,
		Port:                   defaultPort,
		PlaygroundMaxSteps:     defaultPlaygroundMaxSteps,
		PlaygroundMaxCallDepth: defaultPlaygroundMaxCallDepth,
		RunTimeout:             5 * time.Second,
		MaxSourceBytes:         defaultMaxSourceBytes,
		CacheSize:              defaultCacheSize,
		ShutdownGracePeriod:    10 * time.Second,
		ReadHeaderTimeout:      5 * time.Second,
		WriteTimeout:           15 * time.Second,
		IdleTimeout:            60 * time.Second,
		EnableRequestLogging:   true,
		RateLimitRPS:           defaultRateLimitRPS,
		RateLimitBurst:         defaultRateLimitBurst,
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

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	setBool(&cfg.Debug, yamlCfg.Debug)
	setBool(&cfg.DryRun, yamlCfg.DryRun)
	setBool(&cfg.Time, yamlCfg.Time)
	setBool(&cfg.Color, yamlCfg.Color)
	setBool(&cfg.EnableRequestLogging, yamlCfg.EnableRequestLogging)

	if yamlCfg.MaxSteps != nil {
		cfg.MaxSteps = *yamlCfg.MaxSteps
	}
	if yamlCfg.MaxCallDepth != nil {
		cfg.MaxCallDepth = *yamlCfg.MaxCallDepth
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.PlaygroundMaxSteps != nil {
		cfg.PlaygroundMaxSteps = *yamlCfg.PlaygroundMaxSteps
	}
	if yamlCfg.PlaygroundCallDepth != nil {
		cfg.PlaygroundMaxCallDepth = *yamlCfg.PlaygroundCallDepth
	}
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}
	if yamlCfg.MaxSourceBytes != nil {
		cfg.MaxSourceBytes = *yamlCfg.MaxSourceBytes
	}
	if yamlCfg.CacheSize != nil {
		cfg.CacheSize = *yamlCfg.CacheSize
	}

	durations := []struct {
		key   string
		raw   string
		field *time.Duration
	}{
		{"run_timeout", yamlCfg.RunTimeout, &cfg.RunTimeout},
		{"shutdown_grace_period", yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{"read_header_timeout", yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{"write_timeout", yamlCfg.WriteTimeout, &cfg.WriteTimeout},
		{"idle_timeout", yamlCfg.IdleTimeout, &cfg.IdleTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.field = parsed
	}

	if yamlCfg.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}
	if yamlCfg.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}
	return nil
}

// applyEnvConfig applies environment variable configuration. Malformed
// values are ignored.
func applyEnvConfig(cfg *Config) {
	envBool("OXIDO_DEBUG", &cfg.Debug)
	envBool("OXIDO_DRY_RUN", &cfg.DryRun)
	envBool("OXIDO_TIME", &cfg.Time)
	envBool("OXIDO_COLOR", &cfg.Color)
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		cfg.Color = false
	}

	if steps := env("OXIDO_MAX_STEPS"); steps != "" {
		if value, err := strconv.ParseInt(steps, 10, 64); err == nil && value >= 0 {
			cfg.MaxSteps = value
		}
	}
	envPositiveInt("OXIDO_MAX_CALL_DEPTH", &cfg.MaxCallDepth)
	if steps := env("OXIDO_PLAYGROUND_MAX_STEPS"); steps != "" {
		if value, err := strconv.ParseInt(steps, 10, 64); err == nil && value > 0 {
			cfg.PlaygroundMaxSteps = value
		}
	}
	envPositiveInt("OXIDO_PLAYGROUND_MAX_CALL_DEPTH", &cfg.PlaygroundMaxCallDepth)
	envPositiveInt("OXIDO_MAX_SOURCE_BYTES", &cfg.MaxSourceBytes)
	envPositiveInt("OXIDO_CACHE_SIZE", &cfg.CacheSize)

	if level := env("OXIDO_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if port := env("PORT"); port != "" {
		cfg.Port = port
	}
	if timeout := env("OXIDO_RUN_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			cfg.RunTimeout = d
		}
	}

	if rps := env("RATE_LIMIT_RPS"); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}
	if burst := env("RATE_LIMIT_BURST"); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	setBool(&cfg.Debug, overrides.Debug)
	setBool(&cfg.DryRun, overrides.DryRun)
	setBool(&cfg.Time, overrides.Time)
	setBool(&cfg.Color, overrides.Color)

	if overrides.MaxSteps != nil && *overrides.MaxSteps >= 0 {
		cfg.MaxSteps = *overrides.MaxSteps
	}
	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}
	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}
	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be >= 0")
	}
	if cfg.MaxCallDepth <= 0 {
		return fmt.Errorf("max_call_depth must be positive")
	}
	if cfg.PlaygroundMaxSteps <= 0 {
		return fmt.Errorf("playground_max_steps must be positive")
	}
	if cfg.PlaygroundMaxCallDepth <= 0 {
		return fmt.Errorf("playground_max_call_depth must be positive")
	}
	if cfg.MaxSourceBytes <= 0 {
		return fmt.Errorf("max_source_bytes must be positive")
	}
	if cfg.CacheSize <= 0 {
		return fmt.Errorf("cache_size must be positive")
	}
	if cfg.RunTimeout <= 0 {
		return fmt.Errorf("run_timeout must be positive")
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envBool(key string, dst *bool) {
	if raw := env(key); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			*dst = value
		}
	}
}

func envPositiveInt(key string, dst *int) {
	if raw := env(key); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			*dst = value
		}
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
