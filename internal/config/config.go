// Package config defines the top-level configuration for the arbitrage
// scanner and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ARBSCAN_* environment
// variables.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	SPAPI    SPAPIConfig    `toml:"spapi"`
	Keepa    KeepaConfig    `toml:"keepa"`
	Scan     ScanConfig     `toml:"scan"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for scan-report
// archival. Archival is optional; leave Bucket empty to disable.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// SPAPIConfig holds Amazon Selling Partner API endpoint and credentials.
type SPAPIConfig struct {
	Host        string `toml:"host"`
	AccessToken string `toml:"access_token"`
}

// KeepaConfig holds the secondary catalog provider credentials. Keepa is
// queried only when the primary catalog lookup fails; leave APIKey empty to
// disable the fallback.
type KeepaConfig struct {
	Host   string `toml:"host"`
	APIKey string `toml:"api_key"`
}

// MarketplaceConfig describes one Amazon region. ConversionRate is a static
// multiplier into the home currency; it is a known simplification, not a
// live FX lookup.
type MarketplaceConfig struct {
	Code           string  `toml:"code"`
	Name           string  `toml:"name"`
	MarketplaceID  string  `toml:"marketplace_id"`
	Currency       string  `toml:"currency"`
	ConversionRate float64 `toml:"conversion_rate"`
}

// ScanConfig holds the arbitrage scan parameters.
type ScanConfig struct {
	HomeMarketplace    string              `toml:"home_marketplace"`
	SourceMarketplaces []string            `toml:"source_marketplaces"`
	Marketplaces       []MarketplaceConfig `toml:"marketplaces"`

	// BatchSize is the maximum number of ASINs per pricing call; the
	// external API enforces a hard cap of 20.
	BatchSize int `toml:"batch_size"`

	VATRate               float64 `toml:"vat_rate"`
	DigitalServicesFeePct float64 `toml:"digital_services_fee_pct"`

	PricingInterval duration `toml:"pricing_interval"`
	FeesInterval    duration `toml:"fees_interval"`
	CatalogInterval duration `toml:"catalog_interval"`
	// SourceStagger delays each source marketplace's first call so the
	// concurrent fan-out does not burst the limiter.
	SourceStagger duration `toml:"source_stagger"`

	RetryMaxAttempts int      `toml:"retry_max_attempts"`
	RetryBackoff     duration `toml:"retry_backoff"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "1200ms", "5s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// maxPricingBatch is the hard per-call identifier cap enforced by the
// competitive pricing API.
const maxPricingBatch = 20

// Defaults returns a Config populated with reasonable default values. These
// match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbscan",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "",
			Region:         "eu-west-2",
			Bucket:         "",
			UseSSL:         true,
			ForcePathStyle: false,
		},
		SPAPI: SPAPIConfig{
			Host: "https://sellingpartnerapi-eu.amazon.com",
		},
		Keepa: KeepaConfig{
			Host: "https://api.keepa.com",
		},
		Scan: ScanConfig{
			HomeMarketplace:    "UK",
			SourceMarketplaces: []string{"DE", "FR", "IT", "ES"},
			Marketplaces: []MarketplaceConfig{
				{Code: "UK", Name: "United Kingdom", MarketplaceID: "A1F83G8C2ARO7P", Currency: "GBP", ConversionRate: 1.0},
				{Code: "DE", Name: "Germany", MarketplaceID: "A1PA6795UKMFR9", Currency: "EUR", ConversionRate: 0.86},
				{Code: "FR", Name: "France", MarketplaceID: "A13V1IB3VIYZZH", Currency: "EUR", ConversionRate: 0.86},
				{Code: "IT", Name: "Italy", MarketplaceID: "APJ6JRA9NG5V4", Currency: "EUR", ConversionRate: 0.86},
				{Code: "ES", Name: "Spain", MarketplaceID: "A1RKKUPIHCS9HS", Currency: "EUR", ConversionRate: 0.86},
			},
			BatchSize:             20,
			VATRate:               0.20,
			DigitalServicesFeePct: 0.02,
			PricingInterval:       duration{1200 * time.Millisecond},
			FeesInterval:          duration{1100 * time.Millisecond},
			CatalogInterval:       duration{600 * time.Millisecond},
			SourceStagger:         duration{250 * time.Millisecond},
			RetryMaxAttempts:      2,
			RetryBackoff:          duration{2 * time.Second},
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity_found", "scan_failed"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 — only validated when archival is enabled.
	if c.S3.Bucket != "" && c.S3.Region == "" {
		errs = append(errs, "s3: region must not be empty when bucket is set")
	}

	// SP-API
	if c.SPAPI.Host == "" {
		errs = append(errs, "spapi: host must not be empty")
	}

	// Scan
	byCode := make(map[string]MarketplaceConfig, len(c.Scan.Marketplaces))
	for _, m := range c.Scan.Marketplaces {
		if m.Code == "" || m.MarketplaceID == "" || m.Currency == "" {
			errs = append(errs, fmt.Sprintf("scan: marketplace %q must have code, marketplace_id and currency", m.Code))
			continue
		}
		if m.ConversionRate <= 0 {
			errs = append(errs, fmt.Sprintf("scan: marketplace %s conversion_rate must be > 0", m.Code))
		}
		byCode[m.Code] = m
	}
	if _, ok := byCode[c.Scan.HomeMarketplace]; !ok {
		errs = append(errs, fmt.Sprintf("scan: home_marketplace %q is not in the marketplaces list", c.Scan.HomeMarketplace))
	}
	for _, code := range c.Scan.SourceMarketplaces {
		if _, ok := byCode[code]; !ok {
			errs = append(errs, fmt.Sprintf("scan: source marketplace %q is not in the marketplaces list", code))
		}
		if code == c.Scan.HomeMarketplace {
			errs = append(errs, fmt.Sprintf("scan: source marketplace %q duplicates the home marketplace", code))
		}
	}
	if len(c.Scan.SourceMarketplaces) == 0 {
		errs = append(errs, "scan: at least one source marketplace is required")
	}
	if c.Scan.BatchSize < 1 || c.Scan.BatchSize > maxPricingBatch {
		errs = append(errs, fmt.Sprintf("scan: batch_size must be 1-%d, got %d", maxPricingBatch, c.Scan.BatchSize))
	}
	if c.Scan.VATRate < 0 || c.Scan.VATRate >= 1 {
		errs = append(errs, fmt.Sprintf("scan: vat_rate must be in [0,1), got %v", c.Scan.VATRate))
	}
	if c.Scan.DigitalServicesFeePct < 0 || c.Scan.DigitalServicesFeePct >= 1 {
		errs = append(errs, fmt.Sprintf("scan: digital_services_fee_pct must be in [0,1), got %v", c.Scan.DigitalServicesFeePct))
	}
	if c.Scan.RetryMaxAttempts < 1 {
		errs = append(errs, "scan: retry_max_attempts must be >= 1")
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// MarketplaceByCode returns the configured marketplace for a code, or false
// when the code is unknown.
func (c *Config) MarketplaceByCode(code string) (MarketplaceConfig, bool) {
	for _, m := range c.Scan.Marketplaces {
		if m.Code == code {
			return m, true
		}
	}
	return MarketplaceConfig{}, false
}
