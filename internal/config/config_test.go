package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "UK", cfg.Scan.HomeMarketplace)
	assert.Equal(t, []string{"DE", "FR", "IT", "ES"}, cfg.Scan.SourceMarketplaces)
	assert.Equal(t, 20, cfg.Scan.BatchSize)
	assert.InDelta(t, 0.20, cfg.Scan.VATRate, 1e-9)

	home, ok := cfg.MarketplaceByCode("UK")
	require.True(t, ok)
	assert.Equal(t, "A1F83G8C2ARO7P", home.MarketplaceID)
	assert.InDelta(t, 1.0, home.ConversionRate, 1e-9)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "verbose"
	cfg.Scan.BatchSize = 25
	cfg.Scan.VATRate = 1.5
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "batch_size")
	assert.Contains(t, err.Error(), "vat_rate")
	assert.Contains(t, err.Error(), "server: port")
}

func TestValidateMarketplaceReferences(t *testing.T) {
	cfg := Defaults()
	cfg.Scan.HomeMarketplace = "US"
	cfg.Scan.SourceMarketplaces = []string{"DE", "NL"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `home_marketplace "US"`)
	assert.Contains(t, err.Error(), `source marketplace "NL"`)
}

func TestValidateRejectsHomeAsSource(t *testing.T) {
	cfg := Defaults()
	cfg.Scan.SourceMarketplaces = []string{"UK"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicates the home marketplace")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ARBSCAN_DATABASE_PASSWORD", "s3cret")
	t.Setenv("ARBSCAN_SCAN_BATCH_SIZE", "10")
	t.Setenv("ARBSCAN_SCAN_PRICING_INTERVAL", "2s")
	t.Setenv("ARBSCAN_SCAN_SOURCE_MARKETPLACES", "DE, FR")
	t.Setenv("ARBSCAN_REDIS_TLS_ENABLED", "true")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, 10, cfg.Scan.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Scan.PricingInterval.Duration)
	assert.Equal(t, []string{"DE", "FR"}, cfg.Scan.SourceMarketplaces)
	assert.True(t, cfg.Redis.TLSEnabled)
}

func TestEnvOverridesIgnoreUnset(t *testing.T) {
	cfg := Defaults()
	before := cfg.Scan.BatchSize
	applyEnvOverrides(&cfg)
	assert.Equal(t, before, cfg.Scan.BatchSize)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Database.Password = "hunter2"
	cfg.SPAPI.AccessToken = "token"
	cfg.Notify.TelegramToken = ""

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Database.Password)
	assert.Equal(t, "***", red.SPAPI.AccessToken)
	assert.Empty(t, red.Notify.TelegramToken)

	// Original is untouched.
	assert.Equal(t, "hunter2", cfg.Database.Password)

	red.Scan.SourceMarketplaces[0] = "XX"
	assert.Equal(t, "DE", cfg.Scan.SourceMarketplaces[0])
}

func TestDurationText(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("1200ms")))
	assert.Equal(t, 1200*time.Millisecond, d.Duration)

	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1.2s", string(out))
}
