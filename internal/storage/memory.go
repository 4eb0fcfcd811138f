package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"schedbot/internal/schedule"
)

type memStore struct {
	mu     sync.Mutex
	nextID int64
	defs   map[int64]schedule.Definition

	// persist, when set, runs under mu after every mutation; an error
	// rolls the mutation back.
	persist func() error
}

// NewMemory returns a Store that keeps definitions in process memory.
func NewMemory() Store {
	return &memStore{defs: map[int64]schedule.Definition{}}
}

func (s *memStore) Close() error { return nil }

func (s *memStore) Create(ctx context.Context, def schedule.Definition) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fail("create", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	def.ID = s.nextID
	if def.CreatedAt.IsZero() {
		def.CreatedAt = time.Now().UTC()
	}
	s.defs[def.ID] = def
	if err := s.flush(); err != nil {
		delete(s.defs, def.ID)
		s.nextID--
		return 0, fail("create", err)
	}
	return def.ID, nil
}

func (s *memStore) Get(ctx context.Context, id int64) (schedule.Definition, error) {
	if err := ctx.Err(); err != nil {
		return schedule.Definition{}, fail("get", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.defs[id]
	if !ok {
		return schedule.Definition{}, ErrNotFound
	}
	return def, nil
}

func (s *memStore) ListByOwner(ctx context.Context, ownerID int64) ([]schedule.Definition, error) {
	if err := ctx.Err(); err != nil {
		return nil, fail("list_by_owner", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []schedule.Definition
	for _, d := range s.defs {
		if d.OwnerID == ownerID {
			out = append(out, d)
		}
	}
	sortByID(out)
	return out, nil
}

func (s *memStore) ListAll(ctx context.Context) ([]schedule.Definition, error) {
	if err := ctx.Err(); err != nil {
		return nil, fail("list_all", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schedule.Definition, 0, len(s.defs))
	for _, d := range s.defs {
		out = append(out, d)
	}
	sortByID(out)
	return out, nil
}

func (s *memStore) DeleteIfOwned(ctx context.Context, id, ownerID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fail("delete", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.defs[id]
	if !ok || def.OwnerID != ownerID {
		return false, nil
	}
	delete(s.defs, id)
	if err := s.flush(); err != nil {
		s.defs[id] = def
		return false, fail("delete", err)
	}
	return true, nil
}

func (s *memStore) flush() error {
	if s.persist == nil {
		return nil
	}
	return s.persist()
}

func sortByID(defs []schedule.Definition) {
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
}
