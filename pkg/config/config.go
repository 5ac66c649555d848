// Package config loads service configuration from the environment into an
// explicit value passed down from main; nothing here is package-level state.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds everything the server needs at startup.
type Config struct {
	ListenAddr     string
	DatabasePath   string
	JWTSecret      string
	TokenTTL       time.Duration
	AllowedOrigin  string
	RateLimitBurst int
}

// Load reads the configuration from environment variables, falling back to
// development defaults.
func Load() Config {
	return Config{
		ListenAddr:     getEnv("LISTEN_ADDR", ":8080"),
		DatabasePath:   getEnv("DATABASE_PATH", "moneylend.db"),
		JWTSecret:      getEnv("SECRET_KEY", "your_secret_key"),
		TokenTTL:       time.Duration(getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,
		AllowedOrigin:  getEnv("CORS_ALLOWED_ORIGIN", "*"),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 60),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
