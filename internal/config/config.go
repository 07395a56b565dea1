// Package config loads process configuration from the environment, with
// an optional .env file for development setups.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	SocketPath   string
	DatabasePath string
	LogLevel     string
	LogFile      string
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in when present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		SocketPath:   getEnv("CONTENTHUB_SOCKET", "/tmp/contenthub.sock"),
		DatabasePath: getEnv("CONTENTHUB_DB", "contenthub.sqlite3"),
		LogLevel:     getEnv("CONTENTHUB_LOG_LEVEL", "info"),
		LogFile:      getEnv("CONTENTHUB_LOG_FILE", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
