package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate checks values the decoder cannot: required fields, enums,
// durations and the timezone.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		errs = append(errs, fmt.Errorf("telegram.token is required (or set %s)", EnvTelegramToken))
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Conversation.Mode)) {
	case "", "freetext", "menu":
	default:
		errs = append(errs, fmt.Errorf("conversation.mode: unknown value %q", cfg.Conversation.Mode))
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "sqlite", "sqlite3", "file", "memory":
	case "postgres", "postgresql":
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			errs = append(errs, fmt.Errorf("storage.dsn is required for postgres (or set %s)", EnvStorageDSN))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown value %q", cfg.Storage.Driver))
	}
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" && !strings.EqualFold(tz, "local") {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
		}
	}
	for _, f := range durationFields(cfg) {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.Telegram.RatePerChat < 0 {
		errs = append(errs, errors.New("telegram.rate_per_chat must be >= 0"))
	}
	return errors.Join(errs...)
}
