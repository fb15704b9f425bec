// Package config reads service settings from the environment once at
// startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	SecretKey      string
	JWTAlgorithm   string
	TokenTTL       time.Duration
	Port           string
	DBPath         string
	LogLevel       string
	LogFormat      string
	AllowedOrigins []string
	TrustedProxies []string
	Environment    string
}

// Load reads an optional .env file and then the FLATMATE_* environment
// variables. Variables already set in the environment win over .env.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		SecretKey:    os.Getenv("FLATMATE_SECRET_KEY"),
		JWTAlgorithm: getEnv("FLATMATE_JWT_ALGORITHM", "HS256"),
		Port:         getEnv("FLATMATE_PORT", "8000"),
		DBPath:       getEnv("FLATMATE_DB_PATH", "flatmate.db"),
		LogLevel:     getEnv("FLATMATE_LOG_LEVEL", "info"),
		LogFormat:    getEnv("FLATMATE_LOG_FORMAT", "text"),
		Environment:  getEnv("FLATMATE_ENVIRONMENT", "development"),
	}
	if cfg.SecretKey == "" {
		return Config{}, errors.New("FLATMATE_SECRET_KEY is required")
	}

	minutes, err := strconv.Atoi(getEnv("FLATMATE_TOKEN_TTL_MINUTES", "11520"))
	if err != nil || minutes <= 0 {
		return Config{}, fmt.Errorf("FLATMATE_TOKEN_TTL_MINUTES must be a positive integer, got %q", os.Getenv("FLATMATE_TOKEN_TTL_MINUTES"))
	}
	cfg.TokenTTL = time.Duration(minutes) * time.Minute

	cfg.AllowedOrigins = splitList(getEnv("FLATMATE_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"))
	cfg.TrustedProxies = splitList(os.Getenv("FLATMATE_TRUSTED_PROXIES"))
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
