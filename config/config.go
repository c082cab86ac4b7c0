package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Sources   SourcesConfig
	Pipeline  PipelineConfig
	Matcher   MatcherConfig
	Ranker    RankerConfig
	Assistant AssistantConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// SourcesConfig holds marketplace adapter configuration.
// Enabled order doubles as source priority for deterministic matching.
type SourcesConfig struct {
	Enabled        []string          `mapstructure:"enabled"`
	BaseURLs       map[string]string `mapstructure:"base_urls"`
	Timeout        time.Duration     `mapstructure:"timeout"`
	RetryAttempts  int               `mapstructure:"retry_attempts"`
	RetryBackoff   time.Duration     `mapstructure:"retry_backoff"`
	MaxResults     int               `mapstructure:"max_results"`
	RequestsPerSec float64           `mapstructure:"requests_per_sec"`
}

// PipelineConfig holds the overall query pipeline configuration
type PipelineConfig struct {
	Deadline          time.Duration      `mapstructure:"deadline"`
	CanonicalCurrency string             `mapstructure:"canonical_currency"`
	CurrencyRates     map[string]float64 `mapstructure:"currency_rates"` // units of canonical currency per 1 unit
}

// MatcherConfig holds similarity scoring configuration
type MatcherConfig struct {
	Threshold       float64 `mapstructure:"threshold"`
	BrandModelBonus float64 `mapstructure:"brand_model_bonus"`
	SpecGateCap     float64 `mapstructure:"spec_gate_cap"`
	AmbiguousBand   float64 `mapstructure:"ambiguous_band"`
}

// RankerConfig holds price ranking configuration
type RankerConfig struct {
	OutlierMultiplier float64 `mapstructure:"outlier_multiplier"`
	MaxCheaperOptions int     `mapstructure:"max_cheaper_options"`
}

// AssistantConfig holds the optional AI match-assist service configuration
type AssistantConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type string        `mapstructure:"type"` // "memory"
	TTL  time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute per client IP
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pakbuy/")

	// Environment variable settings
	v.SetEnvPrefix("PAKBUY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "5001")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"chrome-extension://*"})

	// Source defaults
	v.SetDefault("sources.enabled", []string{"priceoye", "mega", "daraz"})
	v.SetDefault("sources.base_urls", map[string]string{
		"priceoye": "https://priceoye.pk",
		"mega":     "https://www.mega.pk",
		"daraz":    "https://www.daraz.pk",
	})
	v.SetDefault("sources.timeout", "15s")
	v.SetDefault("sources.retry_attempts", 2)
	v.SetDefault("sources.retry_backoff", "500ms")
	v.SetDefault("sources.max_results", 5)
	v.SetDefault("sources.requests_per_sec", 2.0)

	// Pipeline defaults
	v.SetDefault("pipeline.deadline", "20s")
	v.SetDefault("pipeline.canonical_currency", "PKR")
	v.SetDefault("pipeline.currency_rates", map[string]float64{
		"PKR": 1.0,
		"USD": 278.0,
		"AED": 75.7,
	})

	// Matcher defaults
	v.SetDefault("matcher.threshold", 0.75)
	v.SetDefault("matcher.brand_model_bonus", 0.15)
	v.SetDefault("matcher.spec_gate_cap", 0.30)
	v.SetDefault("matcher.ambiguous_band", 0.10)

	// Ranker defaults
	v.SetDefault("ranker.outlier_multiplier", 2.0)
	v.SetDefault("ranker.max_cheaper_options", 5)

	// Assistant defaults
	v.SetDefault("assistant.enabled", false)
	v.SetDefault("assistant.base_url", "http://localhost:5000")
	v.SetDefault("assistant.timeout", "3s")

	// Cache defaults: short TTL, prices go stale quickly
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", "10m")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 60)
}

// validate validates the configuration
func validate(config *Config) error {
	if len(config.Sources.Enabled) == 0 {
		return fmt.Errorf("at least one marketplace source must be enabled")
	}

	for _, source := range config.Sources.Enabled {
		if _, ok := config.Sources.BaseURLs[source]; !ok {
			return fmt.Errorf("no base URL configured for source: %s", source)
		}
	}

	if config.Cache.Type != "memory" {
		return fmt.Errorf("cache type must be 'memory', got: %s", config.Cache.Type)
	}

	if config.Matcher.Threshold <= 0 || config.Matcher.Threshold > 1 {
		return fmt.Errorf("matcher threshold must be in (0,1], got: %v", config.Matcher.Threshold)
	}

	if config.Ranker.OutlierMultiplier <= 1 {
		return fmt.Errorf("outlier multiplier must be > 1, got: %v", config.Ranker.OutlierMultiplier)
	}

	if rate, ok := config.Pipeline.CurrencyRates[config.Pipeline.CanonicalCurrency]; !ok || rate != 1.0 {
		return fmt.Errorf("currency_rates must map the canonical currency %s to 1.0", config.Pipeline.CanonicalCurrency)
	}

	return nil
}
