package config

import (
	"os"
	"strconv"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port         int
	LogLevel     string
	BodyLimitMB  int
	UseOCR       bool

	// Storage
	StoreBackend string // "memory" or "dynamo"
	AWSRegion    string
	DynamoTable  string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:        getEnvInt("PORT", 8080),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		BodyLimitMB: getEnvInt("BODY_LIMIT_MB", 25),
		UseOCR:      getEnv("USE_OCR", "true") == "true",

		StoreBackend: getEnv("STORE_BACKEND", "memory"),
		AWSRegion:    getEnv("AWS_REGION", "eu-west-1"),
		DynamoTable:  getEnv("DYNAMO_TABLE", "finwise-ledger"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
