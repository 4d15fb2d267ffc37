package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	KurrentDB KurrentDBConfig
	Auth      AuthConfig
	Registry  RegistryConfig
	Notify    NotifyConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	// QueryTimeout bounds every repository call so a slow dependency
	// surfaces Unavailable instead of hanging the request
	QueryTimeout time.Duration
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// KurrentDBConfig holds configuration for KurrentDB (EventStoreDB).
type KurrentDBConfig struct {
	Host     string
	Port     int
	Insecure bool
	Username string
	Password string
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// RegistryConfig configures the legacy national registry adapter
// (SQL Server) used to import static geography seed data.
type RegistryConfig struct {
	Enabled      bool
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	SSLMode      string
	PollInterval time.Duration
}

// NotifyConfig configures the notification dispatcher.
type NotifyConfig struct {
	Enabled    bool
	Workers    int
	BufferSize int
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "platform"),
			Password:     getEnv("DB_PASSWORD", "platform"),
			Database:     getEnv("DB_NAME", "platform"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			QueryTimeout: getEnvDuration("DB_QUERY_TIMEOUT", 5*time.Second),
		},
		KurrentDB: KurrentDBConfig{
			Host:     getEnv("KURRENTDB_HOST", "localhost"),
			Port:     getEnvInt("KURRENTDB_PORT", 2113),
			Insecure: getEnvBool("KURRENTDB_INSECURE", true),
			Username: getEnv("KURRENTDB_USERNAME", ""),
			Password: getEnv("KURRENTDB_PASSWORD", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
			Issuer:    getEnv("JWT_ISSUER", "eventgrid"),
		},
		Registry: RegistryConfig{
			Enabled:      getEnvBool("REGISTRY_ENABLED", false),
			Host:         getEnv("REGISTRY_HOST", "localhost"),
			Port:         getEnvInt("REGISTRY_PORT", 1433),
			User:         getEnv("REGISTRY_USER", ""),
			Password:     getEnv("REGISTRY_PASSWORD", ""),
			Database:     getEnv("REGISTRY_DB", "national_registry"),
			SSLMode:      getEnv("REGISTRY_SSLMODE", "disable"),
			PollInterval: getEnvDuration("REGISTRY_POLL_INTERVAL", 6*time.Hour),
		},
		Notify: NotifyConfig{
			Enabled:    getEnvBool("NOTIFY_ENABLED", true),
			Workers:    getEnvInt("NOTIFY_WORKERS", 4),
			BufferSize: getEnvInt("NOTIFY_BUFFER_SIZE", 256),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
