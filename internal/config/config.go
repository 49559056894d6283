package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Local tier
	LocalDBPath string

	// Remote sync tier
	SyncBackend    string // "postgres", "mysql", "http" or "none"
	SyncURL        string // connection URL (sql backends) or base URL (http backend)
	SyncSecret     string // shared secret for the http backend's bearer tokens
	SyncTimeout    time.Duration
	SyncMaxPayload int // bytes; larger payloads stay local-only
	NoticeTTL      time.Duration

	// Reminder emails
	AWSRegion       string
	SESFromEmail    string
	SESFromName     string
	ReminderToEmail string
	WeakThreshold   int // items at or below this proficiency count as due
}

// Load reads configuration from environment variables with sensible
// defaults. A .env file in the working directory is applied first when
// present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		LocalDBPath:     getEnv("LOCAL_DB_PATH", "./vocadrill.db"),
		SyncBackend:     getEnv("SYNC_BACKEND", "none"),
		SyncURL:         getEnv("SYNC_URL", ""),
		SyncSecret:      getEnv("SYNC_SECRET", ""),
		SyncTimeout:     10 * time.Second,
		SyncMaxPayload:  getEnvInt("SYNC_MAX_PAYLOAD", 512*1024),
		NoticeTTL:       8 * time.Second,
		AWSRegion:       getEnv("AWS_REGION", "eu-west-1"),
		SESFromEmail:    getEnv("SES_FROM_EMAIL", ""),
		SESFromName:     getEnv("SES_FROM_NAME", "Vocadrill"),
		ReminderToEmail: getEnv("REMINDER_TO_EMAIL", ""),
		WeakThreshold:   getEnvInt("WEAK_THRESHOLD", -50),
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt reads an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
