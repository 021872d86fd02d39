package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	DatabaseURL string `mapstructure:"database_url"`

	// Backend credentials. Search and extraction keys are mandatory before a
	// refresh run starts; the scrape key is optional (plain-fetch fallback).
	SearchAPIKey    string `mapstructure:"search_api_key"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	FirecrawlAPIKey string `mapstructure:"firecrawl_api_key"`

	// CronSecret authenticates the refresh trigger endpoint. Empty is only
	// acceptable in development mode.
	CronSecret string `mapstructure:"cron_secret"`

	ListenAddress string `mapstructure:"listen_address"`
	CatalogFile   string `mapstructure:"catalog_file"`
	WebhooksFile  string `mapstructure:"webhooks_file"`

	BatchSize          int           `mapstructure:"batch_size"`
	PairDelayMs        int64         `mapstructure:"pair_delay_ms"`
	RunBudgetSeconds   int64         `mapstructure:"run_budget_seconds"`
	MaxContentChars    int           `mapstructure:"max_content_chars"`
	PairDelay          time.Duration `mapstructure:"-"`
	RunBudget          time.Duration `mapstructure:"-"`
	PricesCacheSeconds int64         `mapstructure:"prices_cache_seconds"`
	PricesCacheTTL     time.Duration `mapstructure:"-"`

	PageCachePath       string        `mapstructure:"page_cache_path"`
	PageCacheTTLSeconds int64         `mapstructure:"page_cache_ttl_seconds"`
	PageCacheTTL        time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	// Every key needs a registered default; viper only unmarshals known keys,
	// so env-only values would otherwise never reach the struct.
	v.SetDefault("app_name", "pepdex-price-harvester")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("database_url", "")
	v.SetDefault("search_api_key", "")
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("firecrawl_api_key", "")
	v.SetDefault("cron_secret", "")
	v.SetDefault("listen_address", ":8080")
	v.SetDefault("catalog_file", "./configs/catalog.yaml")
	v.SetDefault("webhooks_file", "")
	v.SetDefault("batch_size", 300)
	v.SetDefault("pair_delay_ms", 500)
	v.SetDefault("run_budget_seconds", 300)
	v.SetDefault("max_content_chars", 8000)
	v.SetDefault("prices_cache_seconds", 60)
	v.SetDefault("page_cache_path", "") // disabled unless set
	v.SetDefault("page_cache_ttl_seconds", int64((6*time.Hour)/time.Second))

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, fmt.Errorf("database_url is required")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("invalid batch_size (must be positive)")
	}
	if cfg.PairDelayMs < 0 {
		return nil, fmt.Errorf("invalid pair_delay_ms (must be >= 0)")
	}
	if cfg.RunBudgetSeconds <= 0 {
		return nil, fmt.Errorf("invalid run_budget_seconds (must be positive seconds)")
	}
	if cfg.MaxContentChars <= 0 {
		return nil, fmt.Errorf("invalid max_content_chars (must be positive)")
	}
	if cfg.PricesCacheSeconds <= 0 {
		return nil, fmt.Errorf("invalid prices_cache_seconds (must be positive seconds)")
	}
	if cfg.PageCacheTTLSeconds <= 0 {
		return nil, fmt.Errorf("invalid page_cache_ttl_seconds (must be positive seconds)")
	}

	cfg.PairDelay = time.Duration(cfg.PairDelayMs) * time.Millisecond
	cfg.RunBudget = time.Duration(cfg.RunBudgetSeconds) * time.Second
	cfg.PricesCacheTTL = time.Duration(cfg.PricesCacheSeconds) * time.Second
	cfg.PageCacheTTL = time.Duration(cfg.PageCacheTTLSeconds) * time.Second

	return &cfg, nil
}

// Development reports whether the app runs with relaxed auth for local work.
func (c *Config) Development() bool {
	return c.Env == "development"
}

// ValidateRefreshCredentials checks the credentials a refresh run cannot start
// without. Called before any batch work; a failure here is fatal to the run,
// never a per-pair error.
func (c *Config) ValidateRefreshCredentials() error {
	if strings.TrimSpace(c.AnthropicAPIKey) == "" {
		return fmt.Errorf("anthropic_api_key not configured")
	}
	if strings.TrimSpace(c.SearchAPIKey) == "" {
		return fmt.Errorf("search_api_key not configured")
	}
	return nil
}
