package config

// Config is the whole bot configuration. Durations are Go duration strings
// ("500ms", "30s", "1m").
type Config struct {
	Telegram     TelegramConfig     `json:"telegram"`
	Logging      LoggingConfig      `json:"logging"`
	Conversation ConversationConfig `json:"conversation"`
	Scheduler    SchedulerConfig    `json:"scheduler"`
	TaskEngine   TaskEngineConfig   `json:"task_engine"`
	Storage      StorageConfig      `json:"storage"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// OwnerUserIDs are operators allowed to run /jobs.
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	PollTimeout  string  `json:"poll_timeout,omitempty"`

	// Workers is the number of ordered update lanes in the router.
	Workers int `json:"workers,omitempty"`
	// RatePerChat and BurstPerChat bound inbound updates per chat. 0 disables.
	RatePerChat  float64 `json:"rate_per_chat,omitempty"`
	BurstPerChat int     `json:"burst_per_chat,omitempty"`
	// HandlerTimeout bounds one command or conversation turn.
	HandlerTimeout string `json:"handler_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

type ConversationConfig struct {
	// Mode is "freetext" (default) or "menu".
	Mode string `json:"mode,omitempty"`
}

type SchedulerConfig struct {
	// Enabled defaults to true when omitted.
	Enabled *bool `json:"enabled,omitempty"`
	// Timezone is an IANA name; empty or "Local" uses the host zone.
	Timezone        string `json:"timezone,omitempty"`
	DispatchTimeout string `json:"dispatch_timeout,omitempty"`
}

// IsEnabled reports the effective value of Enabled.
func (s SchedulerConfig) IsEnabled() bool { return s.Enabled == nil || *s.Enabled }

type TaskEngineConfig struct {
	Workers        int    `json:"workers,omitempty"`
	QueueSize      int    `json:"queue_size,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	MaxQueueDelay  string `json:"max_queue_delay,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
	RetryMax       int    `json:"retry_max,omitempty"`
}

// StorageConfig selects the definition store.
//
//	"storage": { "driver": "sqlite", "path": "./schedbot.db" }
//	"storage": { "driver": "postgres", "dsn": "postgres://..." }
type StorageConfig struct {
	// Driver is sqlite (default), postgres, file or memory.
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}
