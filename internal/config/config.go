package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	IngestPort     string
	ViewerPort     string
	DefaultFPS     float64
	MaxClients     int
	MaxConnsPerIP  int
	ConnRatePerSec float64
	ConnBurst      int
	LogLevel       string
	LogFormat      string
}

func Load() (*Config, error) {
	// .env is optional; system environment wins when both are set.
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		IngestPort:     getEnv("INGEST_PORT", "9871"),
		ViewerPort:     getEnv("VIEWER_PORT", "9870"),
		DefaultFPS:     getEnvFloat("DEFAULT_FPS", 30),
		MaxClients:     getEnvInt("MAX_CLIENTS", 50),
		MaxConnsPerIP:  getEnvInt("MAX_CONNS_PER_IP", 10),
		ConnRatePerSec: getEnvFloat("CONN_RATE_PER_SEC", 10),
		ConnBurst:      getEnvInt("CONN_BURST", 10),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
	}

	if cfg.IngestPort == cfg.ViewerPort {
		return nil, fmt.Errorf("INGEST_PORT and VIEWER_PORT must differ, both are %s", cfg.IngestPort)
	}
	if cfg.DefaultFPS <= 0 {
		return nil, fmt.Errorf("DEFAULT_FPS must be positive, got %g", cfg.DefaultFPS)
	}
	if cfg.MaxClients <= 0 {
		return nil, fmt.Errorf("MAX_CLIENTS must be positive, got %d", cfg.MaxClients)
	}
	if cfg.MaxConnsPerIP <= 0 {
		return nil, fmt.Errorf("MAX_CONNS_PER_IP must be positive, got %d", cfg.MaxConnsPerIP)
	}
	if cfg.ConnRatePerSec <= 0 {
		return nil, fmt.Errorf("CONN_RATE_PER_SEC must be positive, got %g", cfg.ConnRatePerSec)
	}
	if cfg.ConnBurst <= 0 {
		return nil, fmt.Errorf("CONN_BURST must be positive, got %d", cfg.ConnBurst)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
