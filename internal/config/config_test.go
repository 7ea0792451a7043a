package config

import (
	"testing"
	"time"
)

var allKeys = []string{
	"DATABASE_URI", "TELEGRAM_TOKEN", "AI_API_KEY", "AI_BASE_URL", "AI_MODEL", "DEV_MODE",
	"TIMEZONE", "DISPATCH_SCHEDULE", "DISPATCH_WORKERS", "FREE_REMINDER_LIMIT",
	"SNOOZE_DURATION", "MAX_SNOOZES", "CLASSIFIER_CACHE_SIZE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Location != time.UTC {
		t.Fatalf("expected UTC, got %s", cfg.Location)
	}
	if cfg.DispatchSchedule != "@every 1m" || cfg.DispatchWorkers != 4 {
		t.Fatalf("unexpected dispatch defaults: %q %d", cfg.DispatchSchedule, cfg.DispatchWorkers)
	}
	if cfg.FreeReminderLimit != 5 || cfg.MaxSnoozes != 2 || cfg.SnoozeDuration != time.Hour {
		t.Fatalf("unexpected reminder defaults: %+v", cfg)
	}
	if cfg.ClassifierCacheSize != 1024 {
		t.Fatalf("unexpected cache size %d", cfg.ClassifierCacheSize)
	}
	if cfg.UseMemoryStore() {
		t.Fatalf("memory store must require DEV_MODE")
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEV_MODE", "true")
	t.Setenv("TIMEZONE", "America/Sao_Paulo")
	t.Setenv("DISPATCH_SCHEDULE", "*/5 * * * *")
	t.Setenv("FREE_REMINDER_LIMIT", "3")
	t.Setenv("SNOOZE_DURATION", "15m")
	t.Setenv("MAX_SNOOZES", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Location.String() != "America/Sao_Paulo" {
		t.Fatalf("unexpected location %s", cfg.Location)
	}
	if cfg.FreeReminderLimit != 3 || cfg.SnoozeDuration != 15*time.Minute || cfg.MaxSnoozes != 4 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if !cfg.UseMemoryStore() {
		t.Fatalf("expected memory store in dev mode without DATABASE_URI")
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"TIMEZONE":            "Mars/Olympus",
		"DISPATCH_SCHEDULE":   "every minute",
		"DISPATCH_WORKERS":    "0",
		"FREE_REMINDER_LIMIT": "five",
		"SNOOZE_DURATION":     "-1h",
		"MAX_SNOOZES":         "-2",
		"DEV_MODE":            "maybe",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected %s=%q to be rejected", key, value)
			}
		})
	}
}
