package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Storage drivers.
const (
	DriverMySQL     = "mysql"
	DriverFirestore = "firestore"
)

// Config holds all service configuration, loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string
	Storage   StorageConfig
	Redis     RedisConfig
}

// StorageConfig selects and configures the authoritative ledger.
type StorageConfig struct {
	Driver           string // mysql | firestore
	MySQLDSN         string
	MySQLMaxConns    int
	MySQLMaxIdle     int
	MySQLMaxLifetime time.Duration
	FirestoreProject string
}

// RedisConfig configures the optional stock mirror / notification fan-out.
type RedisConfig struct {
	Enabled bool
	Addr    string
}

func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:  getEnv("HTTP_ADDR", ":8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
		Storage: StorageConfig{
			Driver:           getEnv("STORAGE_DRIVER", DriverMySQL),
			MySQLDSN:         getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/partsledger?parseTime=true&clientFoundRows=true"),
			MySQLMaxConns:    getEnvInt("MYSQL_MAX_CONNS", 50),
			MySQLMaxIdle:     getEnvInt("MYSQL_MAX_IDLE", 25),
			MySQLMaxLifetime: getEnvDuration("MYSQL_MAX_LIFETIME", 5*time.Minute),
			FirestoreProject: getEnv("FIRESTORE_PROJECT", ""),
		},
		Redis: RedisConfig{
			Enabled: getEnvBool("REDIS_ENABLED", false),
			Addr:    getEnv("REDIS_ADDR", "localhost:6379"),
		},
	}

	switch cfg.Storage.Driver {
	case DriverMySQL:
	case DriverFirestore:
		if cfg.Storage.FirestoreProject == "" {
			return nil, fmt.Errorf("FIRESTORE_PROJECT is required with STORAGE_DRIVER=firestore")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.Storage.Driver)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
