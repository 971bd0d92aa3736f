// Package config loads server configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full server configuration. Flags in cmd/server override
// the corresponding fields after Load.
type Config struct {
	Port     int
	LogLevel string

	// StoreURL selects the storage backend by scheme:
	// memory://, sqlite://path, postgres://..., redis://...
	StoreURL string

	// AuthProvider is "firebase" or "jwt".
	AuthProvider      string
	FirebaseProjectID string
	FirebaseAPIKey    string
	JWTSecret         string

	TLSCertFile string
	TLSKeyFile  string

	IdempotencyTTL      time.Duration
	RateLimitFailClosed bool
}

const (
	DefaultPort           = 8080
	DefaultStoreURL       = "memory://"
	DefaultIdempotencyTTL = 24 * time.Hour
)

// Load reads configuration from the environment. A missing .env file is
// not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %v", err)
	}

	cfg := &Config{
		Port:                getInt("CATJUMP_PORT", DefaultPort),
		LogLevel:            getString("CATJUMP_LOG_LEVEL", "info"),
		StoreURL:            getString("CATJUMP_STORE_URL", DefaultStoreURL),
		AuthProvider:        getString("CATJUMP_AUTH_PROVIDER", "jwt"),
		FirebaseProjectID:   getString("CATJUMP_FIREBASE_PROJECT_ID", ""),
		FirebaseAPIKey:      getString("CATJUMP_FIREBASE_API_KEY", ""),
		JWTSecret:           getString("CATJUMP_JWT_SECRET", ""),
		TLSCertFile:         getString("CATJUMP_TLS_CERT_FILE", ""),
		TLSKeyFile:          getString("CATJUMP_TLS_KEY_FILE", ""),
		IdempotencyTTL:      getDuration("CATJUMP_IDEMPOTENCY_TTL", DefaultIdempotencyTTL),
		RateLimitFailClosed: getBool("CATJUMP_RATELIMIT_FAIL_CLOSED", false),
	}

	switch cfg.AuthProvider {
	case "firebase":
		if cfg.FirebaseProjectID == "" {
			return nil, fmt.Errorf("CATJUMP_FIREBASE_PROJECT_ID is required for the firebase auth provider")
		}
	case "jwt":
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("CATJUMP_JWT_SECRET is required for the jwt auth provider")
		}
	default:
		return nil, fmt.Errorf("unknown auth provider: %s", cfg.AuthProvider)
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value == "true" || value == "1"
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
