package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	CORS           CORSConfig
	OfficialSource OfficialSourceConfig
	Scheduler      SchedulerConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string
	Host string
	Addr string // Combined host:port for convenience
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Path string
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// OfficialSourceConfig holds the official distribution source settings.
// The API token is stored sealed in system settings; FernetKey seals and
// unseals it. Token, when set, rotates the stored value on boot.
type OfficialSourceConfig struct {
	BaseURL   string
	FernetKey string
	Token     string
}

// SchedulerConfig holds job queue and cron settings.
type SchedulerConfig struct {
	ReconcileCron string
	QueueSize     int
	MaxAttempts   int
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "5001"),
			Host: getEnv("SERVER_HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/fibratrack.db"),
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost",
			},
		},
		OfficialSource: OfficialSourceConfig{
			BaseURL:   getEnv("OFFICIAL_SOURCE_URL", "https://api.fibradist.mx"),
			FernetKey: getEnv("FERNET_KEY", ""),
			Token:     getEnv("OFFICIAL_SOURCE_TOKEN", ""),
		},
		Scheduler: SchedulerConfig{
			ReconcileCron: getEnv("RECONCILE_CRON", "0 30 6 * * *"),
			QueueSize:     getEnvInt("RECALC_QUEUE_SIZE", 256),
			MaxAttempts:   getEnvInt("RECALC_MAX_ATTEMPTS", 3),
		},
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
