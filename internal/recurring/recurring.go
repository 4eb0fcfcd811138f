// Package recurring keeps one weekly trigger per stored definition and
// delivers the message when it fires.
package recurring

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"schedbot/internal/eventbus"
	"schedbot/internal/schedule"
	"schedbot/internal/storage"
	logx "schedbot/pkg/logx"
)

const namePrefix = "message_"

// Triggers is the cron side of the scheduler.
type Triggers interface {
	AddWeekly(name string, weekday time.Weekday, hour, minute int, timeout time.Duration, job func(ctx context.Context) error) error
	Remove(name string) bool
	Names() []string
}

type Config struct {
	// DispatchTimeout bounds one delivery plus the owner notification.
	DispatchTimeout time.Duration
}

type Service struct {
	cfg      Config
	store    storage.Store
	gateway  schedule.Gateway
	triggers Triggers
	bus      eventbus.Bus
	log      logx.Logger
}

// SkippedRow is a stored definition that could not be registered.
type SkippedRow struct {
	ID  int64
	Err error
}

// Report summarizes one RehydrateAll pass.
type Report struct {
	Registered []int64
	Skipped    []SkippedRow
	Removed    []int64
}

// DispatchEvent is published on the bus after each delivery attempt.
type DispatchEvent struct {
	ID       int64  `json:"id"`
	TargetID string `json:"target_id"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

func New(cfg Config, store storage.Store, gateway schedule.Gateway, triggers Triggers, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, store: store, gateway: gateway, triggers: triggers, bus: bus, log: log}
}

// TimerName is the trigger name used for a definition id.
func TimerName(id int64) string { return namePrefix + strconv.FormatInt(id, 10) }

func parseTimerName(name string) (int64, bool) {
	if !strings.HasPrefix(name, namePrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(name, namePrefix), 10, 64)
	return id, err == nil
}

// Register creates or replaces the weekly trigger for def.
func (s *Service) Register(def schedule.Definition) error {
	if def.ID <= 0 {
		return errors.New("recurring: definition has no id")
	}
	if err := def.Validate(); err != nil {
		return err
	}
	id := def.ID
	err := s.triggers.AddWeekly(TimerName(id), def.Day.Weekday(), def.Hour, def.Minute, s.cfg.DispatchTimeout,
		func(ctx context.Context) error { return s.Dispatch(ctx, id) })
	if err != nil {
		return fmt.Errorf("register %s: %w", TimerName(id), err)
	}
	s.log.Debug("definition registered", logx.Int64("id", id), logx.String("day", def.Day.String()), logx.String("time", def.Clock()))
	return nil
}

// Unregister removes the trigger for id. Absent ids are a no-op.
func (s *Service) Unregister(id int64) {
	if s.triggers.Remove(TimerName(id)) {
		s.log.Debug("definition unregistered", logx.Int64("id", id))
	}
}

// ActiveIDs lists the ids that currently have a trigger, ascending.
func (s *Service) ActiveIDs() []int64 {
	var ids []int64
	for _, name := range s.triggers.Names() {
		if id, ok := parseTimerName(name); ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// RehydrateAll registers every stored definition and drops triggers whose
// definition is gone. Invalid rows are skipped and reported; a storage error
// aborts the pass.
func (s *Service) RehydrateAll(ctx context.Context) (Report, error) {
	defs, err := s.store.ListAll(ctx)
	if err != nil {
		return Report{}, err
	}

	var rep Report
	stored := make(map[int64]bool, len(defs))
	for _, def := range defs {
		stored[def.ID] = true
		if err := s.Register(def); err != nil {
			rep.Skipped = append(rep.Skipped, SkippedRow{ID: def.ID, Err: err})
			s.log.Warn("skipping stored definition", logx.Int64("id", def.ID), logx.Err(err))
			continue
		}
		rep.Registered = append(rep.Registered, def.ID)
	}
	for _, id := range s.ActiveIDs() {
		if !stored[id] {
			s.Unregister(id)
			rep.Removed = append(rep.Removed, id)
		}
	}
	// A skipped row must not keep a trigger from an earlier registration.
	for _, sk := range rep.Skipped {
		s.Unregister(sk.ID)
	}

	s.log.Info("rehydrated definitions",
		logx.Int("registered", len(rep.Registered)),
		logx.Int("skipped", len(rep.Skipped)),
		logx.Int("removed", len(rep.Removed)))
	return rep, nil
}
