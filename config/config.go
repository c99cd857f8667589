// Package config loads site-wide settings from the environment.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	DefaultUserAgent       = "friendsync/1.0"
	DefaultRetentionDays   = 0 // disabled unless set
	DefaultRetentionCount  = 0 // disabled unless set
	DefaultPollingInterval = 3600
)

type Config struct {
	DatabaseDSN string
	UserAgent   string

	// WebhookURL, when set, receives a JSON notice per retrieval outcome.
	WebhookURL string

	// Site-wide retention defaults, used when an account has retention
	// enabled but no own value configured. Zero means the dimension is
	// not retention-limited site-wide.
	RetentionDays  int
	RetentionCount int

	PollingInterval int
}

// Load reads configuration from a .env file if present and the process
// environment otherwise.
func Load() *Config {
	// .env is optional, env vars win either way
	_ = godotenv.Load()

	return &Config{
		DatabaseDSN:     getEnv("FRIENDSYNC_DB_DSN", "host=localhost user=friendsync dbname=friendsync sslmode=disable"),
		UserAgent:       getEnv("FRIENDSYNC_USER_AGENT", DefaultUserAgent),
		WebhookURL:      getEnv("FRIENDSYNC_WEBHOOK_URL", ""),
		RetentionDays:   getEnvInt("FRIENDSYNC_RETENTION_DAYS", DefaultRetentionDays),
		RetentionCount:  getEnvInt("FRIENDSYNC_RETENTION_COUNT", DefaultRetentionCount),
		PollingInterval: getEnvInt("FRIENDSYNC_POLLING_INTERVAL", DefaultPollingInterval),
	}
}

func getEnv(key string, fallback string) string {
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
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}
