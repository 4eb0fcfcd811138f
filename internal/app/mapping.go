package app

import (
	"strings"
	"time"

	"schedbot/internal/config"
	"schedbot/internal/conversation"
	"schedbot/internal/recurring"
	"schedbot/internal/storage"
	"schedbot/internal/task/engine"
	"schedbot/internal/task/scheduler"
	"schedbot/internal/transport/telegram/adapter"
	"schedbot/internal/transport/telegram/router"
	logx "schedbot/pkg/logx"
)

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     cfg.Logging.Telegram.ChatID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapAdapter(cfg *config.Config) (adapter.Config, error) {
	poll, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return adapter.Config{}, err
	}
	return adapter.Config{Token: cfg.Telegram.Token, PollTimeout: poll}, nil
}

func mapRouter(cfg *config.Config) (router.Options, error) {
	timeout, err := config.ParseDurationOrDefault("telegram.handler_timeout", cfg.Telegram.HandlerTimeout, 30*time.Second)
	if err != nil {
		return router.Options{}, err
	}
	return router.Options{
		Owners:         append([]int64(nil), cfg.Telegram.OwnerUserIDs...),
		Workers:        cfg.Telegram.Workers,
		ChatRate:       cfg.Telegram.RatePerChat,
		ChatBurst:      cfg.Telegram.BurstPerChat,
		DefaultTimeout: timeout,
	}, nil
}

func mapStorage(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" {
		driver = "sqlite"
	}
	out := storage.Config{Driver: driver, Path: strings.TrimSpace(sc.Path), DSN: strings.TrimSpace(sc.DSN)}
	switch driver {
	case "sqlite", "sqlite3":
		if out.Path == "" {
			out.Path = "./schedbot.db"
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		out.BusyTimeout = busy
	case "file":
		if out.Path == "" {
			out.Path = "./schedbot.json"
		}
	}
	return out, nil
}

// mapEngine maps task_engine. The engine only runs weekly deliveries, so it
// follows the scheduler's enabled flag.
func mapEngine(cfg *config.Config) (engine.Config, error) {
	te := cfg.TaskEngine
	def, err := config.ParseDurationField("task_engine.default_timeout", te.DefaultTimeout)
	if err != nil {
		return engine.Config{}, err
	}
	delay, err := config.ParseDurationField("task_engine.max_queue_delay", te.MaxQueueDelay)
	if err != nil {
		return engine.Config{}, err
	}
	workers := te.Workers
	if workers <= 0 {
		workers = 2
	}
	queue := te.QueueSize
	if queue <= 0 {
		queue = 256
	}
	history := te.HistorySize
	if history <= 0 {
		history = 200
	}
	retry := te.RetryMax
	if retry < 0 {
		retry = 0
	}
	return engine.Config{
		Enabled:        cfg.Scheduler.IsEnabled(),
		Workers:        workers,
		QueueSize:      queue,
		DefaultTimeout: def,
		MaxQueueDelay:  delay,
		HistorySize:    history,
		RetryMax:       retry,
	}, nil
}

func mapScheduler(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Enabled:  cfg.Scheduler.IsEnabled(),
		Timezone: strings.TrimSpace(cfg.Scheduler.Timezone),
	}
}

func mapRecurring(cfg *config.Config) (recurring.Config, error) {
	timeout, err := config.ParseDurationOrDefault("scheduler.dispatch_timeout", cfg.Scheduler.DispatchTimeout, 30*time.Second)
	if err != nil {
		return recurring.Config{}, err
	}
	return recurring.Config{DispatchTimeout: timeout}, nil
}

func mapConversation(cfg *config.Config) (conversation.Config, error) {
	mode, err := conversation.ParseMode(cfg.Conversation.Mode)
	if err != nil {
		return conversation.Config{}, err
	}
	return conversation.Config{Mode: mode}, nil
}
