package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func noEnv(string) (string, bool) { return "", false }

func TestParseFormats(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := map[string]string{
		"c.json": `{"telegram":{"token":"t","owner_user_ids":[7]},"conversation":{"mode":"menu"},"scheduler":{"timezone":"UTC"}}`,
		"c.yaml": "telegram:\n  token: t\n  owner_user_ids: [7]\nconversation:\n  mode: menu\nscheduler:\n  timezone: UTC\n",
		"c.toml": "[telegram]\ntoken = \"t\"\nowner_user_ids = [7]\n\n[conversation]\nmode = \"menu\"\n\n[scheduler]\ntimezone = \"UTC\"\n",
	}
	for name, body := range files {
		m := NewManager(writeFile(t, dir, name, body))
		m.lookup = noEnv
		cfg, err := m.Parse()
		if err != nil {
			t.Fatalf("%s: Parse: %v", name, err)
		}
		if cfg.Telegram.Token != "t" || len(cfg.Telegram.OwnerUserIDs) != 1 || cfg.Telegram.OwnerUserIDs[0] != 7 {
			t.Fatalf("%s: telegram = %+v", name, cfg.Telegram)
		}
		if cfg.Conversation.Mode != "menu" || cfg.Scheduler.Timezone != "UTC" || !cfg.Scheduler.IsEnabled() {
			t.Fatalf("%s: cfg = %+v", name, cfg)
		}
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	m := NewManager(writeFile(t, t.TempDir(), "c.json", `{"telegram":{"token":"t"},"plugins":{}}`))
	m.lookup = noEnv
	if _, err := m.Parse(); err == nil || !strings.Contains(err.Error(), "plugins") {
		t.Fatalf("Parse error = %v, want unknown field", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Parallel()

	m := NewManager(writeFile(t, t.TempDir(), "c.json", `{"storage":{"driver":"postgres"}}`))
	m.lookup = func(k string) (string, bool) {
		switch k {
		case EnvTelegramToken:
			return "from-env", true
		case EnvStorageDSN:
			return "postgres://u@h/db", true
		}
		return "", false
	}
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Telegram.Token != "from-env" || cfg.Storage.DSN != "postgres://u@h/db" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"missing token", Config{}, "telegram.token"},
		{"bad mode", Config{Telegram: TelegramConfig{Token: "t"}, Conversation: ConversationConfig{Mode: "wizard"}}, "conversation.mode"},
		{"postgres without dsn", Config{Telegram: TelegramConfig{Token: "t"}, Storage: StorageConfig{Driver: "postgres"}}, "storage.dsn"},
		{"bad timezone", Config{Telegram: TelegramConfig{Token: "t"}, Scheduler: SchedulerConfig{Timezone: "Mars/Base"}}, "scheduler.timezone"},
		{"bad duration", Config{Telegram: TelegramConfig{Token: "t"}, Storage: StorageConfig{BusyTimeout: "soon"}}, "storage.busy_timeout"},
	}
	for _, tt := range tests {
		err := Validate(&tt.cfg)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Fatalf("%s: Validate = %v, want mention of %s", tt.name, err, tt.want)
		}
	}
	ok := Config{Telegram: TelegramConfig{Token: "t"}, Scheduler: SchedulerConfig{Timezone: "Local"}}
	if err := Validate(&ok); err != nil {
		t.Fatalf("Validate(valid) = %v", err)
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()

	a := &Config{Telegram: TelegramConfig{Token: "a"}, Conversation: ConversationConfig{Mode: "freetext"}}
	b := &Config{Telegram: TelegramConfig{Token: "a"}, Conversation: ConversationConfig{Mode: "menu"}, Scheduler: SchedulerConfig{Timezone: "UTC"}}
	c := Diff(a, b)
	if !c.Has("conversation") || !c.Has("scheduler") || c.Has("telegram") || c.Has("logging") {
		t.Fatalf("sections = %v", c.Sections)
	}
	if got := Diff(a, a); len(got.Sections) != 0 {
		t.Fatalf("Diff(a, a) = %v", got.Sections)
	}
}

func TestWatchPublishesChanges(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "c.json", `{"telegram":{"token":"t"},"conversation":{"mode":"freetext"}}`)
	m := NewManager(path)
	m.lookup = noEnv
	m.debounce = 20 * time.Millisecond
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	sub := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-sub:
			if cfg.Conversation.Mode != "menu" {
				t.Fatalf("published mode = %q", cfg.Conversation.Mode)
			}
			if m.Get().Conversation.Mode != "menu" {
				t.Fatalf("Get not updated")
			}
			return
		case <-tick.C:
			// rewrite until the watcher is up and sees it
			writeFile(t, dir, "c.json", `{"telegram":{"token":"t"},"conversation":{"mode":"menu"}}`)
		case <-deadline:
			t.Fatalf("no config published")
		}
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		def     time.Duration
		want    time.Duration
		wantErr string
	}{
		{raw: "", def: 5 * time.Second, want: 5 * time.Second},
		{raw: "  ", def: time.Second, want: time.Second},
		{raw: "0s", def: time.Second, want: time.Second},
		{raw: " 45s ", def: time.Second, want: 45 * time.Second},
		{raw: "1m30s", want: 90 * time.Second},
		{raw: "soon", wantErr: `scheduler.dispatch_timeout: invalid duration "soon"`},
		{raw: "-2s", wantErr: "scheduler.dispatch_timeout: duration must not be negative"},
	}
	for _, tt := range tests {
		got, err := ParseDurationOrDefault("scheduler.dispatch_timeout", tt.raw, tt.def)
		if tt.wantErr != "" {
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("ParseDurationOrDefault(%q) err = %v, want %q", tt.raw, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ParseDurationOrDefault(%q) = %v, %v, want %v", tt.raw, got, err, tt.want)
		}
	}
}

func TestValidateReportsEveryBadDuration(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Telegram:   TelegramConfig{Token: "t", PollTimeout: "x", HandlerTimeout: "-1s"},
		Scheduler:  SchedulerConfig{DispatchTimeout: "y"},
		TaskEngine: TaskEngineConfig{DefaultTimeout: "z", MaxQueueDelay: "-3m"},
		Storage:    StorageConfig{BusyTimeout: "w"},
	}
	err := Validate(&cfg)
	if err == nil {
		t.Fatalf("Validate accepted bad durations")
	}
	for _, f := range durationFields(&cfg) {
		if !strings.Contains(err.Error(), f.path) {
			t.Fatalf("Validate error %q does not mention %s", err, f.path)
		}
	}
}
