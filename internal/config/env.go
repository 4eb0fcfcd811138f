package config

import (
	"os"
	"strings"
)

// Environment variables that override file values. Secrets usually live here
// (or in a .env file loaded at startup) rather than in the config file.
const (
	EnvTelegramToken = "SCHEDBOT_TELEGRAM_TOKEN"
	EnvStorageDSN    = "SCHEDBOT_STORAGE_DSN"
)

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvTelegramToken); ok && strings.TrimSpace(v) != "" {
		cfg.Telegram.Token = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvStorageDSN); ok && strings.TrimSpace(v) != "" {
		cfg.Storage.DSN = strings.TrimSpace(v)
	}
}
