package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"schedbot/internal/schedule"
	logx "schedbot/pkg/logx"
)

// fileStore is the dependency-free backend: the whole table lives in memory
// and is rewritten to a JSON snapshot (temp file + rename) on every mutation.
type fileStore struct {
	*memStore
	path string
	log  logx.Logger
}

type fileSnapshot struct {
	NextID      int64            `json:"next_id"`
	Definitions []fileDefinition `json:"definitions"`
}

type fileDefinition struct {
	ID           int64     `json:"id"`
	OwnerID      int64     `json:"owner_id"`
	OriginChatID int64     `json:"origin_chat_id"`
	Body         string    `json:"body"`
	Day          int       `json:"day_of_week"`
	Hour         int       `json:"hour"`
	Minute       int       `json:"minute"`
	TargetID     string    `json:"target_id"`
	TargetLabel  string    `json:"target_label,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	mem := &memStore{defs: map[int64]schedule.Definition{}}
	if err := loadSnapshot(path, mem); err != nil {
		return nil, err
	}
	fs := &fileStore{memStore: mem, path: path, log: log}
	mem.persist = fs.writeSnapshotLocked
	log.Info("storage opened", logx.String("driver", "file"), logx.String("path", path), logx.Int("definitions", len(mem.defs)))
	return fs, nil
}

func loadSnapshot(path string, mem *memStore) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var snap fileSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return fail("load_snapshot", err)
	}
	mem.nextID = snap.NextID
	for _, d := range snap.Definitions {
		mem.defs[d.ID] = schedule.Definition{
			ID: d.ID, OwnerID: d.OwnerID, OriginChatID: d.OriginChatID, Body: d.Body,
			Day: schedule.Day(d.Day), Hour: d.Hour, Minute: d.Minute,
			TargetID: d.TargetID, TargetLabel: d.TargetLabel, CreatedAt: d.CreatedAt,
		}
		if d.ID > mem.nextID {
			mem.nextID = d.ID
		}
	}
	return nil
}

// writeSnapshotLocked is called with memStore.mu held.
func (s *fileStore) writeSnapshotLocked() error {
	snap := fileSnapshot{NextID: s.nextID, Definitions: make([]fileDefinition, 0, len(s.defs))}
	defs := make([]schedule.Definition, 0, len(s.defs))
	for _, d := range s.defs {
		defs = append(defs, d)
	}
	sortByID(defs)
	for _, d := range defs {
		snap.Definitions = append(snap.Definitions, fileDefinition{
			ID: d.ID, OwnerID: d.OwnerID, OriginChatID: d.OriginChatID, Body: d.Body,
			Day: int(d.Day), Hour: d.Hour, Minute: d.Minute,
			TargetID: d.TargetID, TargetLabel: d.TargetLabel, CreatedAt: d.CreatedAt,
		})
	}
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
