package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8082", cfg.Server.Port)
	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, []string{"localhost:19092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "^VIX", cfg.Quote.VIXSymbol)
	assert.Equal(t, ".TW", cfg.Quote.MarketSuffix)
	assert.Equal(t, 5*time.Minute, cfg.Quote.CacheTTL)
	assert.Equal(t, 140.0, cfg.Thresholds.MaintenanceAlertPct)
	assert.Equal(t, 0.62, cfg.Thresholds.CNNCutoff)
	assert.Equal(t, 0.50, cfg.Thresholds.CBOECutoff)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", BackendCSV)
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092")
	t.Setenv("MAINTENANCE_ALERT_PCT", "150")
	t.Setenv("QUOTE_CACHE_TTL", "30s")
	t.Setenv("QUOTE_MAX_PARALLEL", "8")

	cfg := Load()

	assert.Equal(t, BackendCSV, cfg.Storage.Backend)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 150.0, cfg.Thresholds.MaintenanceAlertPct)
	assert.Equal(t, 30*time.Second, cfg.Quote.CacheTTL)
	assert.Equal(t, 8, cfg.Quote.MaxParallel)
}

func TestLoad_BadNumbersFallBack(t *testing.T) {
	t.Setenv("MAINTENANCE_ALERT_PCT", "plenty")
	t.Setenv("QUOTE_MAX_PARALLEL", "-")

	cfg := Load()

	assert.Equal(t, 140.0, cfg.Thresholds.MaintenanceAlertPct)
	assert.Equal(t, 4, cfg.Quote.MaxParallel)
}

func TestConnectionString(t *testing.T) {
	d := DatabaseConfig{
		Host: "db", Port: "5432", User: "u", Password: "p",
		DBName: "invest_command", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://u:p@db:5432/invest_command?sslmode=disable", d.ConnectionString())
}
