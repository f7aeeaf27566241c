package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Database   DatabaseConfig
	Kafka      KafkaConfig
	Redis      RedisConfig
	Quote      QuoteConfig
	Thresholds Thresholds
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendCSV      = "csv"
)

// StorageConfig selects the table-store backend.
type StorageConfig struct {
	Backend string
	CSVDir  string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// KafkaConfig holds Kafka/Redpanda configuration
type KafkaConfig struct {
	Brokers        []string
	Topic          string
	TradesTopic    string
	PositionsTopic string
	ConsumerGroup  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// QuoteConfig holds market-data client configuration.
type QuoteConfig struct {
	BaseURL      string
	VIXSymbol    string
	MarketSuffix string
	CacheTTL     time.Duration
	MaxParallel  int
}

// Thresholds carries the alert cutoffs that the rule engine and the
// valuator evaluate against. Threaded explicitly so both stay pure
// functions instead of reading ambient globals.
type Thresholds struct {
	MaintenanceAlertPct float64
	CNNCutoff           float64
	CBOECutoff          float64
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8082"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", BackendPostgres),
			CSVDir:  getEnv("CSV_DIR", "./data"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "postgres"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "invest"),
			Password: getEnv("DB_PASSWORD", "invest5"),
			DBName:   getEnv("DB_NAME", "invest_command"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Brokers:        parseBrokers(getEnv("KAFKA_BROKERS", "localhost:19092")),
			Topic:          getEnv("KAFKA_TOPIC", "advisory-events"),
			TradesTopic:    getEnv("KAFKA_TRADES_TOPIC", "trading.orders"),
			PositionsTopic: getEnv("KAFKA_POSITIONS_TOPIC", "trading.positions"),
			ConsumerGroup:  getEnv("KAFKA_CONSUMER_GROUP", "invest-command"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       0,
		},
		Quote: QuoteConfig{
			BaseURL:      getEnv("QUOTE_BASE_URL", "https://query1.finance.yahoo.com"),
			VIXSymbol:    getEnv("QUOTE_VIX_SYMBOL", "^VIX"),
			MarketSuffix: getEnv("QUOTE_MARKET_SUFFIX", ".TW"),
			CacheTTL:     getDuration("QUOTE_CACHE_TTL", 5*time.Minute),
			MaxParallel:  getInt("QUOTE_MAX_PARALLEL", 4),
		},
		Thresholds: Thresholds{
			MaintenanceAlertPct: getFloat("MAINTENANCE_ALERT_PCT", 140),
			CNNCutoff:           getFloat("CNN_PC_CUTOFF", 0.62),
			CBOECutoff:          getFloat("CBOE_PC_CUTOFF", 0.50),
		},
	}
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// Address returns the Redis address in host:port format
func (r *RedisConfig) Address() string {
	return r.Host + ":" + r.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// parseBrokers splits a comma-separated broker list
func parseBrokers(brokers string) []string {
	parts := strings.Split(brokers, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
