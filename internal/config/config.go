package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds service configuration.
type Config struct {
	DatabaseURL     string
	DBMaxConns      int32
	ServerAddr      string
	StoreBackend    string
	LogLevel        string
	LogPretty       bool
	ShutdownTimeout time.Duration

	JWTSecret string
	JWTIssuer string

	RabbitURL      string
	NotifyExchange string

	NotifyTimeout       time.Duration
	NotifyRetryInterval time.Duration
	NotifyRetryBatch    int
}

// Load reads configuration from environment.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:         DatabaseURL(),
		DBMaxConns:          int32(parseInt(getenv("DB_MAX_CONNS", "10"), 10)),
		ServerAddr:          getenv("SERVER_ADDR", "0.0.0.0:8080"),
		StoreBackend:        strings.ToLower(getenv("STORE_BACKEND", BackendPostgres)),
		LogLevel:            getenv("LOG_LEVEL", "info"),
		LogPretty:           parseBool(getenv("LOG_PRETTY", "false"), false),
		ShutdownTimeout:     parseDuration(getenv("SHUTDOWN_TIMEOUT", "15s"), 15*time.Second),
		JWTSecret:           os.Getenv("AUTH_JWT_SECRET"),
		JWTIssuer:           os.Getenv("AUTH_JWT_ISSUER"),
		RabbitURL:           os.Getenv("RABBIT_URL"),
		NotifyExchange:      getenv("NOTIFY_EXCHANGE", "colit.notifications"),
		NotifyTimeout:       parseDuration(getenv("NOTIFY_TIMEOUT", "10s"), 10*time.Second),
		NotifyRetryInterval: parseDuration(getenv("NOTIFY_RETRY_INTERVAL", "1m"), time.Minute),
		NotifyRetryBatch:    parseInt(getenv("NOTIFY_RETRY_BATCH", "100"), 100),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DatabaseURL returns DATABASE_URL, or a DSN assembled from the POSTGRES_*
// variables when it is unset.
func DatabaseURL() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	user := getenv("POSTGRES_USER", "colit")
	pass := getenv("POSTGRES_PASSWORD", "colit_pass")
	db := getenv("POSTGRES_DB", "colit")
	host := getenv("POSTGRES_HOST", "localhost")
	port := getenv("POSTGRES_PORT", "5432")
	sslmode := getenv("DATABASE_SSLMODE", "disable")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, sslmode)
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendMemory, c.StoreBackend)
	}
	if c.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET is required")
	}
	return nil
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseDuration(val string, def time.Duration) time.Duration {
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def
	}
	return d
}

func parseBool(val string, def bool) bool {
	if val == "" {
		return def
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return b
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
