package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBSCAN_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBSCAN_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "ARBSCAN_DATABASE_DSN")
	setStr(&cfg.Database.Host, "ARBSCAN_DATABASE_HOST")
	setInt(&cfg.Database.Port, "ARBSCAN_DATABASE_PORT")
	setStr(&cfg.Database.Database, "ARBSCAN_DATABASE_NAME")
	setStr(&cfg.Database.User, "ARBSCAN_DATABASE_USER")
	setStr(&cfg.Database.Password, "ARBSCAN_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "ARBSCAN_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "ARBSCAN_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "ARBSCAN_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "ARBSCAN_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ARBSCAN_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBSCAN_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBSCAN_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBSCAN_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBSCAN_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBSCAN_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ARBSCAN_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBSCAN_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBSCAN_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBSCAN_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBSCAN_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARBSCAN_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARBSCAN_S3_FORCE_PATH_STYLE")

	// ── SP-API ──
	setStr(&cfg.SPAPI.Host, "ARBSCAN_SPAPI_HOST")
	setStr(&cfg.SPAPI.AccessToken, "ARBSCAN_SPAPI_ACCESS_TOKEN")

	// ── Keepa ──
	setStr(&cfg.Keepa.Host, "ARBSCAN_KEEPA_HOST")
	setStr(&cfg.Keepa.APIKey, "ARBSCAN_KEEPA_API_KEY")

	// ── Scan ──
	setStr(&cfg.Scan.HomeMarketplace, "ARBSCAN_SCAN_HOME_MARKETPLACE")
	setStringSlice(&cfg.Scan.SourceMarketplaces, "ARBSCAN_SCAN_SOURCE_MARKETPLACES")
	setInt(&cfg.Scan.BatchSize, "ARBSCAN_SCAN_BATCH_SIZE")
	setFloat64(&cfg.Scan.VATRate, "ARBSCAN_SCAN_VAT_RATE")
	setFloat64(&cfg.Scan.DigitalServicesFeePct, "ARBSCAN_SCAN_DIGITAL_SERVICES_FEE_PCT")
	setDuration(&cfg.Scan.PricingInterval, "ARBSCAN_SCAN_PRICING_INTERVAL")
	setDuration(&cfg.Scan.FeesInterval, "ARBSCAN_SCAN_FEES_INTERVAL")
	setDuration(&cfg.Scan.CatalogInterval, "ARBSCAN_SCAN_CATALOG_INTERVAL")
	setDuration(&cfg.Scan.SourceStagger, "ARBSCAN_SCAN_SOURCE_STAGGER")
	setInt(&cfg.Scan.RetryMaxAttempts, "ARBSCAN_SCAN_RETRY_MAX_ATTEMPTS")
	setDuration(&cfg.Scan.RetryBackoff, "ARBSCAN_SCAN_RETRY_BACKOFF")

	// ── Server ──
	setInt(&cfg.Server.Port, "ARBSCAN_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "ARBSCAN_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "ARBSCAN_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBSCAN_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBSCAN_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBSCAN_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBSCAN_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "ARBSCAN_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
