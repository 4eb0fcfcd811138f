package config

import (
	"fmt"
	"strings"
	"time"
)

// durationField is one duration-valued config key.
type durationField struct {
	path string
	raw  string
}

// durationFields lists every duration key in a stable order so validation
// errors come out the same way on each reload.
func durationFields(cfg *Config) []durationField {
	return []durationField{
		{"telegram.poll_timeout", cfg.Telegram.PollTimeout},
		{"telegram.handler_timeout", cfg.Telegram.HandlerTimeout},
		{"scheduler.dispatch_timeout", cfg.Scheduler.DispatchTimeout},
		{"task_engine.default_timeout", cfg.TaskEngine.DefaultTimeout},
		{"task_engine.max_queue_delay", cfg.TaskEngine.MaxQueueDelay},
		{"storage.busy_timeout", cfg.Storage.BusyTimeout},
	}
}

// ParseDurationField parses the value of config key path ("30s", "1m").
// Blank is zero; negative values are rejected.
func ParseDurationField(path, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: duration must not be negative, got %s", path, d)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def standing in for a
// blank or zero value.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}
