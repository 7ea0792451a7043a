package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

type Config struct {
	DatabaseURI   string
	TelegramToken string
	AIAPIKey      string
	AIBaseURL     string
	AIModel       string
	DevMode       bool

	Location            *time.Location
	DispatchSchedule    string
	DispatchWorkers     int
	FreeReminderLimit   int
	SnoozeDuration      time.Duration
	MaxSnoozes          int
	ClassifierCacheSize int
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env file is optional in production
	}

	cfg := &Config{
		DatabaseURI:      os.Getenv("DATABASE_URI"),
		TelegramToken:    os.Getenv("TELEGRAM_TOKEN"),
		AIAPIKey:         os.Getenv("AI_API_KEY"),
		AIBaseURL:        getEnvOrDefault("AI_BASE_URL", "https://openrouter.ai/api/v1"),
		AIModel:          getEnvOrDefault("AI_MODEL", "openai/gpt-4o-mini"),
		DispatchSchedule: getEnvOrDefault("DISPATCH_SCHEDULE", "@every 1m"),
	}

	var err error
	if cfg.DevMode, err = getBool("DEV_MODE", false); err != nil {
		return nil, err
	}
	if cfg.Location, err = time.LoadLocation(getEnvOrDefault("TIMEZONE", "UTC")); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	if _, err := cron.ParseStandard(cfg.DispatchSchedule); err != nil {
		return nil, fmt.Errorf("invalid DISPATCH_SCHEDULE: %w", err)
	}
	if cfg.DispatchWorkers, err = getPositiveInt("DISPATCH_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.FreeReminderLimit, err = getPositiveInt("FREE_REMINDER_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.MaxSnoozes, err = getPositiveInt("MAX_SNOOZES", 2); err != nil {
		return nil, err
	}
	if cfg.ClassifierCacheSize, err = getPositiveInt("CLASSIFIER_CACHE_SIZE", 1024); err != nil {
		return nil, err
	}
	if cfg.SnoozeDuration, err = time.ParseDuration(getEnvOrDefault("SNOOZE_DURATION", "1h")); err != nil {
		return nil, fmt.Errorf("invalid SNOOZE_DURATION: %w", err)
	}
	if cfg.SnoozeDuration <= 0 {
		return nil, fmt.Errorf("invalid SNOOZE_DURATION: must be positive")
	}

	return cfg, nil
}

// UseMemoryStore reports whether to run without PostgreSQL.
func (c *Config) UseMemoryStore() bool {
	return c.DatabaseURI == "" && c.DevMode
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getPositiveInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s: %q is not a positive integer", key, value)
	}
	return n, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
